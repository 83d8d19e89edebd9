package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrCorruptShellState is returned by Get when a saved state can no longer be decoded.
var ErrCorruptShellState = errors.New("corrupt shell state")

// ShellStore persists shell states by session id. Get returns nil, nil for an unknown session.
type ShellStore interface {
	Get(ctx context.Context, sessionId string) (*ShellState, error)
	Save(ctx context.Context, sessionId string, state ShellState) error
	Delete(ctx context.Context, sessionId string) error
}

type memoryShellItem struct {
	state     ShellState
	expiresAt time.Time
}

type MemoryShellStore struct {
	mutex sync.Mutex
	items map[string]memoryShellItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryShellStore keeps states in process memory; ttl <= 0 keeps them forever.
func NewMemoryShellStore(ttl time.Duration) *MemoryShellStore {
	return &MemoryShellStore{
		items: make(map[string]memoryShellItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryShellStore) Get(ctx context.Context, sessionId string) (*ShellState, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	item, ok := m.items[sessionId]
	if !ok {
		return nil, nil
	}
	if m.expired(item) {
		delete(m.items, sessionId)
		return nil, nil
	}
	state := item.state.clone()
	return &state, nil
}

func (m *MemoryShellStore) Save(ctx context.Context, sessionId string, state ShellState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	item := memoryShellItem{state: state.clone()}
	if m.ttl > 0 {
		item.expiresAt = m.now().Add(m.ttl)
	}
	m.items[sessionId] = item
	return nil
}

func (m *MemoryShellStore) Delete(ctx context.Context, sessionId string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.items, sessionId)
	return nil
}

// Sweep drops expired states and returns how many were removed.
func (m *MemoryShellStore) Sweep() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	removed := 0
	for key, item := range m.items {
		if m.expired(item) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryShellStore) expired(item memoryShellItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}

const redisShellKeyPrefix = "shell:"

// RedisShellStore keeps states as JSON strings; Redis expires them.
type RedisShellStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisShellStore(rdb *redis.Client, ttl time.Duration) *RedisShellStore {
	return &RedisShellStore{rdb: rdb, ttl: ttl}
}

func (r *RedisShellStore) Get(ctx context.Context, sessionId string) (*ShellState, error) {
	value, err := r.rdb.Get(ctx, redisShellKeyPrefix+sessionId).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get shell state")
	}
	var state ShellState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, errors.Wrapf(ErrCorruptShellState, "session %s: %s", sessionId, err.Error())
	}
	return &state, nil
}

func (r *RedisShellStore) Save(ctx context.Context, sessionId string, state ShellState) error {
	jsonBytes, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode shell state")
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrap(r.rdb.Set(ctx, redisShellKeyPrefix+sessionId, string(jsonBytes), ttl).Err(), "redis set shell state")
}

func (r *RedisShellStore) Delete(ctx context.Context, sessionId string) error {
	return errors.Wrap(r.rdb.Del(ctx, redisShellKeyPrefix+sessionId).Err(), "redis del shell state")
}
