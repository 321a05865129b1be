package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
)

// entry pairs a session with the lock serializing its mutations.
type entry struct {
	mu   sync.Mutex
	sess *schema.Session
}

// Store is a thread-safe in-memory session store. Turn history is
// append-only; sessions never expire implicitly, but an idle-eviction sweep
// can be started for long-running deployments.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	idleTimeout time.Duration
	stopSweep   chan struct{}
	sweepOnce   sync.Once
	now         func() time.Time
}

// New creates an in-memory session store. idleTimeout of zero disables
// eviction entirely.
func New(idleTimeout time.Duration) *Store {
	return &Store{
		entries:     make(map[string]*entry),
		idleTimeout: idleTimeout,
		stopSweep:   make(chan struct{}),
		now:         time.Now,
	}
}

// GetOrCreate returns the session for id, or a fresh session when the id is
// empty or unknown. An unknown id is never an error; clients losing their id
// simply start over.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*schema.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if e, ok := s.entries[id]; ok {
			e.mu.Lock()
			e.sess.LastUsedAt = s.now()
			snapshot := clone(e.sess)
			e.mu.Unlock()
			return snapshot, nil
		}
	}

	now := s.now()
	sess := &schema.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	s.entries[sess.ID] = &entry{sess: sess}
	return clone(sess), nil
}

// Get returns the session for id, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*schema.Session, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.sess), nil
}

// AppendTurn appends one turn to the session's history. Mutations are
// serialized per session id so concurrent requests on the same session never
// interleave history.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, turn schema.Turn) error {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Turns = append(e.sess.Turns, turn)
	e.sess.LastUsedAt = s.now()
	return nil
}

// SetDocumentScope replaces the session's selected-document set.
func (s *Store) SetDocumentScope(ctx context.Context, sessionID string, documentIDs []string) error {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.DocumentIDs = append([]string(nil), documentIDs...)
	e.sess.LastUsedAt = s.now()
	return nil
}

// List returns snapshots of every live session.
func (s *Store) List(ctx context.Context) ([]*schema.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*schema.Session, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		sessions = append(sessions, clone(e.sess))
		e.mu.Unlock()
	}
	return sessions, nil
}

// Delete removes a session and its history.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// StartSweep launches the idle-eviction goroutine. Safe to call once; no-op
// when eviction is disabled.
func (s *Store) StartSweep(interval time.Duration) {
	if s.idleTimeout <= 0 {
		return
	}
	s.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.evictIdle()
				case <-s.stopSweep:
					return
				}
			}
		}()
	})
}

// StopSweep halts the eviction goroutine.
func (s *Store) StopSweep() {
	select {
	case <-s.stopSweep:
	default:
		close(s.stopSweep)
	}
}

func (s *Store) evictIdle() {
	cutoff := s.now().Add(-s.idleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		idle := e.sess.LastUsedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.entries, id)
		}
	}
}

// clone snapshots a session so callers can read history without racing
// concurrent appends.
func clone(sess *schema.Session) *schema.Session {
	cp := *sess
	cp.DocumentIDs = append([]string(nil), sess.DocumentIDs...)
	cp.Turns = append([]schema.Turn(nil), sess.Turns...)
	return &cp
}

var _ interfaces.SessionStore = (*Store)(nil)
