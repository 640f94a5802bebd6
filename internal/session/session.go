// Package session keeps per-user interactive state: the index built from the
// uploaded document and the last generated quiz.
package session

import (
	"errors"
	"sync"
	"time"

	"quizforge/internal/index"
	"quizforge/internal/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is one browser's working state. Index and Quiz are never mutated
// after being set, so snapshots can be shared across requests.
type Session struct {
	ID         uuid.UUID
	Index      *index.Index
	SourceName string
	Request    models.QuizRequest
	Quiz       *models.Quiz
	QuizID     uuid.UUID // archive id of Quiz, uuid.Nil when not archived
	PDFURL     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasIndex reports whether a document has been indexed in this session.
func (s Session) HasIndex() bool { return s.Index != nil }

// Registry holds sessions in memory and expires idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. Sessions idle for longer than ttl are
// removed by Sweep; ttl <= 0 disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session), ttl: ttl, now: time.Now}
}

func (r *Registry) Create() Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &Session{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	r.sessions[s.ID] = s
	return *s
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id uuid.UUID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Update applies fn to the stored session under the registry lock.
func (r *Registry) Update(id uuid.UUID, fn func(*Session)) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	fn(s)
	s.ID = id
	s.UpdatedAt = r.now()
	return *s, nil
}

func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
