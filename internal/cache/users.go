// Package cache holds the Redis-backed user cache consulted by the auth
// middleware on every authenticated request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/annnsvm/contactsd/internal/models"
)

// ErrMiss is returned by UserCache.Get when the user is not cached.
var ErrMiss = errors.New("cache miss")

// kvStore is the subset of redis commands the cache uses; an interface so
// tests can run without a Redis server.
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// redisKV adapts *redis.Client to kvStore.
type redisKV struct {
	client *redis.Client
}

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// UserCache stores users as JSON under user:<username> with a TTL.
type UserCache struct {
	kv  kvStore
	ttl time.Duration
}

// NewUserCache builds a UserCache over the shared redis client.
func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{kv: &redisKV{client: client}, ttl: ttl}
}

// Get returns the cached user or ErrMiss.
func (c *UserCache) Get(ctx context.Context, username string) (*models.User, error) {
	raw, err := c.kv.Get(ctx, userKey(username))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var user models.User
	if jsonErr := json.Unmarshal([]byte(raw), &user); jsonErr != nil {
		// A corrupt entry is treated as a miss so the DB copy wins.
		return nil, ErrMiss
	}
	return &user, nil
}

// Set stores the user for the configured TTL.
func (c *UserCache) Set(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshalling user %s: %w", user.Username, err)
	}
	return c.kv.Set(ctx, userKey(user.Username), string(raw), c.ttl)
}

// Invalidate drops the cached entry, forcing the next resolve to hit the DB.
// Called after mutations (avatar, password, role) so stale identities do not
// outlive the change.
func (c *UserCache) Invalidate(ctx context.Context, username string) error {
	return c.kv.Del(ctx, userKey(username))
}

func userKey(username string) string {
	return "user:" + username
}

// userSource is satisfied by *repository.UserRepository.
type userSource interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Resolver answers "who is this username" for the auth middleware:
// cache first, database on miss, write-back after a DB hit. Cache failures
// are soft — Redis being down degrades to DB lookups, never to 500s.
type Resolver struct {
	cache *UserCache
	users userSource
}

// NewResolver wires the cache in front of the user repository.
func NewResolver(cache *UserCache, users userSource) *Resolver {
	return &Resolver{cache: cache, users: users}
}

// Resolve returns the user for username, consulting the cache first.
func (r *Resolver) Resolve(ctx context.Context, username string) (*models.User, error) {
	user, err := r.cache.Get(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrMiss) {
		slog.DebugContext(ctx, "user cache unavailable", "err", err)
	}

	user, err = r.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if setErr := r.cache.Set(ctx, user); setErr != nil {
		slog.DebugContext(ctx, "user cache write failed", "err", setErr)
	}
	return user, nil
}
