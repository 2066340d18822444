package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"UserService/internal/auth"
	"UserService/internal/cache"
	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/repo"
	"UserService/internal/utils"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrNotFound           = errors.New("user not found")
	ErrForbidden          = errors.New("operation not allowed on another user's account")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
)

// UserService orchestrates account mutations against the record store and
// publishes a domain event after each successful mutation. The store write
// and the publish are not atomic: a failed publish leaves the mutation
// committed and is surfaced to the caller without retry.
type UserService struct {
	repo  repo.UserRepo
	pub   events.Publisher
	cache *cache.UserCache
	sf    singleflight.Group
}

// NewUserService returns a new UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, pub events.Publisher, c *cache.UserCache) *UserService {
	return &UserService{repo: r, pub: pub, cache: c}
}

// ValidateCredentials checks username and password; returns user if valid.
// Unknown username and wrong password are indistinguishable to the caller.
func (s *UserService) ValidateCredentials(ctx context.Context, username, password string) (dom.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("auth: failed login attempt for %q", username)
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		log.Printf("auth: failed login attempt for %q", username)
		return dom.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates a new user with a hashed password and publishes a
// UserCreated event. A taken username returns ErrUsernameTaken with no
// record inserted and no event published.
func (s *UserService) Register(ctx context.Context, username, email, password string) (dom.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return dom.User{}, err
	}
	if taken {
		return dom.User{}, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return dom.User{}, ErrPasswordTooLong
		}
		return dom.User{}, err
	}
	u, err := s.repo.Create(ctx, username, email, hash)
	if err != nil {
		// Unique index backstop: two concurrent registers can both pass
		// the UsernameExists check.
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrUsernameTaken
		}
		return dom.User{}, err
	}
	s.invalidateCache(ctx, u.ID)
	if err := s.publish(ctx, events.UserEvent{
		EventType: events.TypeUserCreated,
		UserID:    u.ID,
		Email:     u.Email,
	}); err != nil {
		return dom.User{}, err
	}
	log.Printf("user created and event published: id=%d", u.ID)
	return u, nil
}

// GetByID returns the user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (dom.User, error) {
	if s.cache != nil {
		key := "user:" + strconv.FormatInt(id, 10)
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if u, err := s.cache.GetByID(ctx, id); err == nil && u != nil {
				return *u, nil
			}
			u, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return dom.User{}, err
			}
			_ = s.cache.SetByID(ctx, u)
			return u, nil
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return dom.User{}, ErrNotFound
			}
			return dom.User{}, err
		}
		return v.(dom.User), nil
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]dom.User, error) {
	if s.cache != nil {
		v, err, _ := s.sf.Do("list", func() (interface{}, error) {
			if list, err := s.cache.GetList(ctx); err == nil && list != nil {
				return list, nil
			}
			list, err := s.repo.List(ctx)
			if err != nil {
				return nil, err
			}
			_ = s.cache.SetList(ctx, list)
			return list, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dom.User), nil
	}
	return s.repo.List(ctx)
}

// UpdateProfile applies non-empty profile fields to the target account and
// publishes a UserUpdated event. Only the account owner may update it.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, id int64, email string) (dom.User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	if actorID != id {
		return dom.User{}, ErrForbidden
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = existing.Email
	}
	u, err := s.repo.UpdateEmail(ctx, id, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	s.invalidateCache(ctx, id)
	if err := s.publish(ctx, events.UserEvent{
		EventType: events.TypeUserUpdated,
		UserID:    u.ID,
		Email:     u.Email,
	}); err != nil {
		return dom.User{}, err
	}
	log.Printf("user updated and event published: id=%d", u.ID)
	return u, nil
}

// ChangePassword verifies the current password, replaces the stored hash and
// publishes a UserPasswordChanged event. Only the account owner may change it.
func (s *UserService) ChangePassword(ctx context.Context, actorID, id int64, currentPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if actorID != id {
		return ErrForbidden
	}
	if !auth.VerifyPassword(currentPassword, u.PasswordHash) {
		log.Printf("auth: wrong current password for user id=%d", id)
		return ErrWrongPassword
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	s.invalidateCache(ctx, id)
	if err := s.publish(ctx, events.UserEvent{
		EventType: events.TypeUserPasswordChanged,
		UserID:    id,
	}); err != nil {
		return err
	}
	log.Printf("user password changed and event published: id=%d", id)
	return nil
}

// Delete removes the target account and publishes a UserDeleted event.
// Only the account owner may delete it.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if actorID != id {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	s.invalidateCache(ctx, id)
	if err := s.publish(ctx, events.UserEvent{
		EventType: events.TypeUserDeleted,
		UserID:    id,
	}); err != nil {
		return err
	}
	log.Printf("user deleted and event published: id=%d", id)
	return nil
}

// publish hands the event to the broker. The record-store mutation has
// already committed by the time publish runs, so the request context is
// detached from cancellation: a client abort must not leave a committed
// mutation without its event attempt. A publish error is logged and returned;
// the mutation is never rolled back.
func (s *UserService) publish(ctx context.Context, e events.UserEvent) error {
	if err := s.pub.PublishUserEvent(context.WithoutCancel(ctx), e); err != nil {
		log.Printf("events: publish %s for user id=%d failed: %v", e.EventType, e.UserID, err)
		return err
	}
	return nil
}

func (s *UserService) invalidateCache(ctx context.Context, id int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
}
