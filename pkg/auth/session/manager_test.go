package session

import (
	"context"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	redisclient "github.com/angelmondragon/farmlink-backend/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redislib.Nil
}

func (m *memStore) GetDel(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	if err == nil {
		err = m.Del(ctx, key)
	}
	return v, err
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func (m *memStore) has(accessID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.AccessSessionKey(accessID)]
	return ok
}

func newTestManager() (*Manager, *memStore) {
	store := &memStore{data: map[string]string{}}
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestRotateConsumesTheOldSession(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-123")
	require.NoError(t, err)
	assert.Equal(t, digest(token), store.data[store.AccessSessionKey("access-123")], "only the digest is stored")

	_, _, err = manager.Rotate(ctx, "access-123", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.True(t, store.has("access-123"), "a wrong token leaves the session alone")

	nextID, nextToken, err := manager.Rotate(ctx, "access-123", token)
	require.NoError(t, err)
	assert.False(t, store.has("access-123"))
	assert.Equal(t, digest(nextToken), store.data[store.AccessSessionKey(nextID)])

	_, _, err = manager.Rotate(ctx, "access-123", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "rotated tokens are single use")
}

// lossyStore drops the key right before GETDEL, as a concurrent rotation would.
type lossyStore struct{ *memStore }

func (l lossyStore) GetDel(ctx context.Context, key string) (string, error) {
	_ = l.memStore.Del(ctx, key)
	return l.memStore.GetDel(ctx, key)
}

func TestRotateLosingTheRaceOpensNothing(t *testing.T) {
	manager, store := newTestManager()
	manager.store = lossyStore{store}
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-1")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Empty(t, store.data)
}

func TestRevokeEndsSession(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Generate(ctx, "access-9")
	require.NoError(t, err)
	active, err := manager.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, manager.Revoke(ctx, "access-9"))
	active, err = manager.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.False(t, active)

	_, _, err = manager.Rotate(ctx, "access-9", "anything")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestNewManagerValidates(t *testing.T) {
	cfg := config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30}
	_, err := NewManager(&redisclient.Client{}, cfg)
	assert.Error(t, err, "refresh ttl shorter than access ttl")
	_, err = NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err, "nil client")
}
