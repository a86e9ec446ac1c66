// apps/go-server/internal/store/memory.go
//
// In-memory registry of running game sessions.
// Sessions are ephemeral by nature (no scores are persisted), so this is the
// only Store implementation.
//
// Characteristics:
//   - Stores *session.Session values keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Optional capacity limit; Save fails with ErrFull when reached.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/robalobadob/snake/apps/go-server/internal/session"
)

var (
	// ErrNotFound is returned by Get/Delete for unknown IDs.
	ErrNotFound = errors.New("not found")
	// ErrFull is returned by Save when the capacity limit is reached.
	ErrFull = errors.New("session limit reached")
)

// Store defines the registry interface for running sessions.
type Store interface {
	// Save adds a session. Re-saving an existing ID replaces it.
	Save(ctx context.Context, s *session.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete removes a session by ID and returns it so the caller can stop it.
	Delete(ctx context.Context, id string) (*session.Session, error)

	// List returns all sessions ordered by creation time.
	List(ctx context.Context) []*session.Session
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex                // guards sessions map
	sessions map[string]*session.Session // keyed by Session.ID
	limit    int                         // 0 = unlimited
}

// NewMemoryStore constructs a new in-memory Store holding at most limit
// sessions (0 means no limit).
func NewMemoryStore(limit int) Store {
	return &memory{sessions: make(map[string]*session.Session), limit: limit}
}

// Save adds or replaces the session in the map.
func (m *memory) Save(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; !exists && m.limit > 0 && len(m.sessions) >= m.limit {
		return ErrFull
	}
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

// Delete removes a session by ID.
func (m *memory) Delete(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.sessions, id)
	return s, nil
}

// List snapshots the registry, oldest first.
func (m *memory) List(ctx context.Context) []*session.Session {
	m.mu.RLock()
	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}
