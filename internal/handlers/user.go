package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"UserService/internal/auth"
	"UserService/internal/dto"
	"UserService/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler handles registration, login, token validation and the
// self-only profile operations.
type UserHandler struct {
	tokens  *auth.TokenService
	userSvc *service.UserService
}

// NewUserHandler returns a new UserHandler.
func NewUserHandler(tokens *auth.TokenService, userSvc *service.UserService) *UserHandler {
	return &UserHandler{tokens: tokens, userSvc: userSvc}
}

// Register godoc
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "New account"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		if errors.Is(err, service.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at most 72 bytes"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

// Login godoc
// @Summary      Login and obtain a bearer token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.ValidateCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}

// Logout godoc
// @Summary      Logout
// @Description  Tokens are stateless, so logout changes no server state; the client discards its token.
// @Tags         users
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Router       /users/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// ValidateToken godoc
// @Summary      Validate the presented bearer token
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.ValidateTokenResponse
// @Failure      401  {object}  map[string]string
// @Router       /users/validate-token [post]
func (h *UserHandler) ValidateToken(c *gin.Context) {
	// Reaching this handler means RequireAuth already accepted the token.
	c.JSON(http.StatusOK, dto.ValidateTokenResponse{
		UserID:   auth.UserIDFromContext(c),
		Username: auth.UsernameFromContext(c),
		Valid:    true,
	})
}

// List godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}   dto.UserResponse
// @Failure      500  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userSvc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

// GetByID godoc
// @Summary      Get a user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  dto.UserResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.userSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// Update godoc
// @Summary      Update own profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int                    true  "User ID"
// @Param        body  body  dto.UpdateUserRequest  true  "Fields to update"
// @Success      200   {object}  dto.UserResponse
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.UpdateProfile(c.Request.Context(), auth.UserIDFromContext(c), id, req.Email)
	if err != nil {
		h.writeMutationError(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// ChangePassword godoc
// @Summary      Change own password
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  int                        true  "User ID"
// @Param        body  body  dto.ChangePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users/{id}/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.userSvc.ChangePassword(c.Request.Context(), auth.UserIDFromContext(c), id, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
			return
		}
		if errors.Is(err, service.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at most 72 bytes"})
			return
		}
		h.writeMutationError(c, err, "password change failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete godoc
// @Summary      Delete own account
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  int  true  "User ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.userSvc.Delete(c.Request.Context(), auth.UserIDFromContext(c), id); err != nil {
		h.writeMutationError(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// writeMutationError maps pipeline errors to status codes. Unexpected errors
// (store unreachable, publish failure) get a generic body: internal detail is
// never echoed to the caller.
func (h *UserHandler) writeMutationError(c *gin.Context, err error, generic string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}
