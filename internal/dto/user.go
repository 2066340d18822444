package dto

import (
	"time"

	dom "UserService/internal/domain"
)

// RegisterRequest is the JSON body for POST /api/users.
// Passwords are capped at 72 bytes, the bcrypt input limit.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=1,max=72"`
}

// LoginRequest is the JSON body for POST /api/users/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest is the JSON body for PUT /api/users/:id.
// Empty fields are left unchanged.
type UpdateUserRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

// ChangePasswordRequest is the JSON body for PUT /api/users/:id/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=1,max=72"`
}

// UserResponse is the outward representation of a user record.
// It never carries the password hash.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a domain user to its response shape.
func NewUserResponse(u dom.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ValidateTokenResponse echoes back the identity asserted by a valid token.
type ValidateTokenResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Valid    bool   `json:"valid"`
}
