package redis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is an in-memory Client for tests. Keys expire against Now,
// which tests may replace to move time forward.
type MockClient struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time

	Now     func() time.Time
	PingErr error
	SetErr  error
	GetErr  error

	Sets int
	Gets int
}

// NewMockClient creates an empty mock store
func NewMockClient() *MockClient {
	return &MockClient{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		Now:     time.Now,
	}
}

func (m *MockClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}

	switch v := value.(type) {
	case string:
		m.values[key] = v
	case []byte:
		m.values[key] = string(v)
	default:
		m.values[key] = fmt.Sprint(v)
	}
	if ttl > 0 {
		m.expires[key] = m.Now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

func (m *MockClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return "", m.GetErr
	}
	if m.expiredLocked(key) {
		return "", ErrNotFound
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MockClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.expires, k)
	}
	return nil
}

// TTL follows Redis: -2 for a missing key, -1 for a key without expiry
func (m *MockClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok || m.expiredLocked(key) {
		return -2, nil
	}
	exp, ok := m.expires[key]
	if !ok {
		return -1, nil
	}
	return exp.Sub(m.Now()), nil
}

func (m *MockClient) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockClient) Close() error {
	return nil
}

// Keys returns the live keys, for assertions
func (m *MockClient) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		if !m.expiredLocked(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *MockClient) expiredLocked(key string) bool {
	exp, ok := m.expires[key]
	return ok && !m.Now().Before(exp)
}
