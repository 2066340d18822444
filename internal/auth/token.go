package auth

import (
	"errors"
	"log"
	"strconv"
	"time"

	"UserService/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only validation error callers ever see. Signature,
// issuer, audience and expiry failures are deliberately indistinguishable so
// a caller cannot probe which check rejected the token.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the claim set a validated token asserts.
type Identity struct {
	UserID   int64
	Username string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// TokenService issues and validates HMAC-signed bearer tokens. It is
// stateless: tokens are never persisted and cannot be revoked before expiry.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenService returns a TokenService, or an error when no signing key is
// configured. The error is meant to be fatal at process startup.
func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt: secret key is not configured")
	}
	return &TokenService{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      time.Duration(cfg.ExpiryMinutes) * time.Minute,
	}, nil
}

// Issue signs a token binding userID (subject) and username (name claim),
// valid for the configured TTL.
func (s *TokenService) Issue(userID int64, username string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Name: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate checks signature, issuer, audience and expiry, and returns the
// asserted identity. Any failure yields ErrInvalidToken; the reason is logged
// server-side as an authentication failure and never exposed to the caller.
func (s *TokenService) Validate(tokenString string) (Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		log.Printf("auth: token rejected: %v", err)
		return Identity{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		log.Printf("auth: token rejected: bad subject %q", claims.Subject)
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Username: claims.Name}, nil
}
