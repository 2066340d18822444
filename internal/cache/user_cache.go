package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	dom "UserService/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyUser = "user:id:"
	keyList = "user:list"
)

// UserCache caches user profiles and the user list in Redis.
// Cached values never include the password hash.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

type cachedUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toCached(u dom.User) cachedUser {
	return cachedUser{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (c cachedUser) toDomain() dom.User {
	return dom.User{ID: c.ID, Username: c.Username, Email: c.Email, CreatedAt: c.CreatedAt}
}

// GetByID returns the cached user or (nil, nil) on miss.
func (c *UserCache) GetByID(ctx context.Context, id int64) (*dom.User, error) {
	b, err := c.rdb.Get(ctx, keyUser+strconv.FormatInt(id, 10)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cu cachedUser
	if err := json.Unmarshal(b, &cu); err != nil {
		return nil, err
	}
	u := cu.toDomain()
	return &u, nil
}

// SetByID stores the user in cache.
func (c *UserCache) SetByID(ctx context.Context, u dom.User) error {
	b, err := json.Marshal(toCached(u))
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyUser+strconv.FormatInt(u.ID, 10), b, c.ttl).Err()
}

// GetList returns the cached user list or nil on miss.
func (c *UserCache) GetList(ctx context.Context) ([]dom.User, error) {
	b, err := c.rdb.Get(ctx, keyList).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cus []cachedUser
	if err := json.Unmarshal(b, &cus); err != nil {
		return nil, err
	}
	list := make([]dom.User, 0, len(cus))
	for _, cu := range cus {
		list = append(list, cu.toDomain())
	}
	return list, nil
}

// SetList stores the user list in cache.
func (c *UserCache) SetList(ctx context.Context, list []dom.User) error {
	cus := make([]cachedUser, 0, len(list))
	for _, u := range list {
		cus = append(cus, toCached(u))
	}
	b, err := json.Marshal(cus)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyList, b, c.ttl).Err()
}

// Invalidate removes the user's entry and the list (cache invalidation on write).
func (c *UserCache) Invalidate(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, keyUser+strconv.FormatInt(id, 10), keyList).Err()
}
