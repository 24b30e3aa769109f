package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

// Manager is a thread-safe in-memory session registry with TTL eviction.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *slog.Logger
}

func NewManager(ttl time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
	}
}

// Create registers a new session for doc.
func (m *Manager) Create(doc snapshot.Document, info pdfinfo.Info) *Session {
	return m.CreateWithID(uuid.NewString(), doc, info)
}

// CreateWithID registers a session under a known id, replacing any session
// already using it.
func (m *Manager) CreateWithID(id string, doc snapshot.Document, info pdfinfo.Info) *Session {
	s := newSession(id, doc, info, m.log)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt()) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
