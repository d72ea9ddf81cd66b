package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annnsvm/contactsd/internal/models"
)

// fakeKV is an in-memory kvStore.
type fakeKV struct {
	data   map[string]string
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	val, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return val, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

// fakeUsers is a userSource backed by a map.
type fakeUsers struct {
	users map[string]*models.User
	calls int
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.calls++
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, errors.New("record not found")
}

func alice() *models.User {
	return &models.User{ID: 1, Username: "alice", Email: "alice@example.com", Role: models.RoleUser}
}

func TestUserCache_RoundTrip(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	c := &UserCache{kv: kv, ttl: time.Hour}
	ctx := context.Background()

	_, err := c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, alice()))

	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice(), got)

	require.NoError(t, c.Invalidate(ctx, "alice"))
	_, err = c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestUserCache_CorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.data["user:alice"] = "{not json"
	c := &UserCache{kv: kv, ttl: time.Hour}

	_, err := c.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestResolver_MissThenHit(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	c := &UserCache{kv: kv, ttl: time.Hour}
	users := &fakeUsers{users: map[string]*models.User{"alice": alice()}}
	r := NewResolver(c, users)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, 1, users.calls)

	// Write-back happened: the second resolve must be served from cache.
	var cached models.User
	require.NoError(t, json.Unmarshal([]byte(kv.data["user:alice"]), &cached))
	assert.Equal(t, "alice", cached.Username)

	_, err = r.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, users.calls)
}

func TestResolver_RedisDownFallsThroughToDB(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	c := &UserCache{kv: kv, ttl: time.Hour}
	users := &fakeUsers{users: map[string]*models.User{"alice": alice()}}
	r := NewResolver(c, users)

	got, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestResolver_UnknownUser(t *testing.T) {
	t.Parallel()

	r := NewResolver(&UserCache{kv: newFakeKV(), ttl: time.Hour}, &fakeUsers{users: map[string]*models.User{}})

	_, err := r.Resolve(context.Background(), "nobody")
	assert.Error(t, err)
}
