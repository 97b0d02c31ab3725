// Package session holds editing sessions. A session owns exactly one
// document, the snapshot it is compared against and its revision history.
package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/revision"
)

// Session is one open document.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Original is the snapshot changes are measured against. It moves
	// forward every time a revision is finalized.
	Original string `json:"original"`
	Current  string `json:"current"`
	// Number is the revision number offered by the next draft.
	Number    string            `json:"number"`
	Revisions []revision.Record `json:"revisions"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Revisions = slices.Clone(s.Revisions)
	return &c
}

// Store persists sessions. Get returns apperr.ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: %s: %w", id, apperr.ErrNotFound)
	}
	return s.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	sortSessions(out)
	return out, nil
}

// sortSessions orders by creation time, newest first.
func sortSessions(list []*Session) {
	slices.SortFunc(list, func(a, b *Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
