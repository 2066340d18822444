package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"UserService/internal/auth"
	"UserService/internal/config"
	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeUserRepo struct {
	nextID int64
	users  map[int64]dom.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int64]dom.User{}}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (dom.User, error) {
	u, ok := f.users[id]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (dom.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return dom.User{}, pgx.ErrNoRows
}

func (f *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := f.GetByUsername(context.Background(), username)
	return err == nil, nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]dom.User, error) {
	var list []dom.User
	for _, u := range f.users {
		list = append(list, u)
	}
	return list, nil
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, passwordHash string) (dom.User, error) {
	u := dom.User{ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.nextID++
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) UpdateEmail(_ context.Context, id int64, email string) (dom.User, error) {
	u, ok := f.users[id]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	u.Email = email
	f.users[id] = u
	return u, nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

type fakePublisher struct {
	published []events.UserEvent
}

func (f *fakePublisher) PublishUserEvent(_ context.Context, e events.UserEvent) error {
	f.published = append(f.published, e)
	return nil
}

type testEnv struct {
	router *gin.Engine
	tokens *auth.TokenService
	repo   *fakeUserRepo
	pub    *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenService(config.JWTConfig{
		SecretKey:     "test-secret",
		Issuer:        "userservice",
		Audience:      "userservice_clients",
		ExpiryMinutes: 60,
	})
	require.NoError(t, err)

	repo := newFakeUserRepo()
	pub := &fakePublisher{}
	h := NewUserHandler(tokens, service.NewUserService(repo, pub, nil))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/users", h.Register)
	api.POST("/users/login", h.Login)
	api.GET("/users", h.List)
	protected := api.Group("", auth.RequireAuth(tokens))
	protected.POST("/users/logout", h.Logout)
	protected.POST("/users/validate-token", h.ValidateToken)
	protected.GET("/users/:id", h.GetByID)
	protected.PUT("/users/:id", h.Update)
	protected.PUT("/users/:id/password", h.ChangePassword)
	protected.DELETE("/users/:id", h.Delete)

	return &testEnv{router: r, tokens: tokens, repo: repo, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestRegister_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "alice@example.com", "password": "pw123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.Username)

	// Stored hash differs from the plaintext; one UserCreated event with email.
	require.NotEqual(t, "pw123", env.repo.users[resp.ID].PasswordHash)
	require.Len(t, env.pub.published, 1)
	require.Equal(t, events.TypeUserCreated, env.pub.published[0].EventType)
	require.Equal(t, "alice@example.com", env.pub.published[0].Email)

	// Response body must never carry the hash.
	require.NotContains(t, w.Body.String(), env.repo.users[resp.ID].PasswordHash)
}

func TestRegister_Conflict(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "b@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, env.repo.users, 1)
	require.Len(t, env.pub.published, 1)
}

func TestRegister_OverlongPassword(t *testing.T) {
	env := newTestEnv(t)

	// bcrypt only digests the first 72 bytes; anything longer is a client
	// error, not a server one.
	w := env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": strings.Repeat("x", 80),
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Empty(t, env.repo.users)
	require.Empty(t, env.pub.published)
}

func TestChangePassword_OverlongNewPassword(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "old-pw",
	})
	tok, err := env.tokens.Issue(1, "alice")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/api/users/1/password", tok, gin.H{
		"current_password": "old-pw", "new_password": strings.Repeat("x", 80),
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// The old password still works.
	w = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"username": "alice", "password": "old-pw",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw123",
	})
	env.pub.published = nil

	w := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"username": "alice", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotContains(t, w.Body.String(), "token")
	require.Empty(t, env.pub.published)
}

func TestLogin_TokenWorks(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw123",
	})

	w := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"username": "alice", "password": "pw123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	w = env.do(t, http.MethodPost, "/api/users/validate-token", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var v struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
		Valid    bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	require.True(t, v.Valid)
	require.Equal(t, "alice", v.Username)
}

func TestDelete_OtherUsersAccount(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw",
	})
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "bob", "email": "b@example.com", "password": "pw",
	})
	env.pub.published = nil

	// User 1's token, user 2's record: forbidden, record 2 untouched, no event.
	tok, err := env.tokens.Issue(1, "alice")
	require.NoError(t, err)

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", 2), tok, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, env.repo.users, int64(2))
	require.Empty(t, env.pub.published)

	// Deleting a nonexistent id is a 404, still no event.
	w = env.do(t, http.MethodDelete, "/api/users/999", tok, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, env.pub.published)

	// Own account deletes fine.
	w = env.do(t, http.MethodDelete, "/api/users/1", tok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotContains(t, env.repo.users, int64(1))
	require.Len(t, env.pub.published, 1)
	require.Equal(t, events.TypeUserDeleted, env.pub.published[0].EventType)
}

func TestChangePassword_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "old-pw",
	})
	tok, err := env.tokens.Issue(1, "alice")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/api/users/1/password", tok, gin.H{
		"current_password": "bad", "new_password": "new-pw",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/users/1/password", tok, gin.H{
		"current_password": "old-pw", "new_password": "new-pw",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	// Old password no longer logs in, new one does.
	w = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"username": "alice", "password": "old-pw",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"username": "alice", "password": "new-pw",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestList_NeverLeaksHashes(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw",
	})

	w := env.do(t, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "password")
	require.NotContains(t, w.Body.String(), "$2a$")
}

func TestLogout_NoServerStateChange(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/users", "", gin.H{
		"username": "alice", "email": "a@example.com", "password": "pw",
	})
	tok, err := env.tokens.Issue(1, "alice")
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/users/logout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Stateless tokens: the same token still validates after logout.
	w = env.do(t, http.MethodPost, "/api/users/validate-token", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
