package auth

import "golang.org/x/crypto/bcrypt"

// ErrPasswordTooLong is returned by HashPassword for inputs over bcrypt's
// 72-byte limit. It is client input, not an internal failure.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword produces a salted bcrypt digest of the plaintext. The salt is
// randomized per call, so hashing the same password twice yields different
// digests that both verify.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether password produced digest. A malformed digest
// verifies as false, never as an error. bcrypt's comparison is constant-time
// with respect to content.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
