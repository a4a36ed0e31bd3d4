package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	hash    map[string]string
	set     map[string]struct{}
	expires time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Memory is an in-memory Store implementation used by registry tests in
// place of Redis.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source, for deterministic tests of
// TTL expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) getLocked(key string) (*memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &memEntry{hash: make(map[string]string, len(fields))}
	for k, v := range fields {
		e.hash[k] = v
	}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok || e.hash == nil {
		return "", false, nil
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok || e.hash == nil || len(e.hash) == 0 {
		return nil, false, nil
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) SAdd(_ context.Context, key string, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok {
		e = &memEntry{set: make(map[string]struct{})}
		m.entries[key] = e
	}
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	e.set[member] = struct{}{}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok || e.set == nil {
		return nil
	}
	delete(e.set, member)
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok || e.set == nil {
		return nil, nil
	}
	out := make([]string, 0, len(e.set))
	for member := range e.set {
		out = append(out, member)
	}
	return out, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key)
	if !ok {
		return nil
	}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) KeysWithPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var keys []string
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) FlushPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
