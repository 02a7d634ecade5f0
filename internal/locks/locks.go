// Package locks serializes work on shared resources. A repository working
// tree can only host one merge or checkout at a time, and duplicate hook
// deliveries must not run the same handler concurrently.
package locks

import "sync"

// Manager hands out one mutex per key. Locks are never released from the
// map; the key space (repos, run/phase pairs) is small and bounded by the
// process lifetime.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (m *Manager) Lock(key string) {
	m.get(key).Lock()
}

// Unlock releases the mutex for key.
func (m *Manager) Unlock(key string) {
	m.get(key).Unlock()
}

// Do runs fn while holding the key's mutex.
func (m *Manager) Do(key string, fn func() error) error {
	lock := m.get(key)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (m *Manager) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}
