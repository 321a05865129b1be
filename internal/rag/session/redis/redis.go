package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
)

const keyPrefix = "legalmind:session:"

// Store persists sessions in Redis so turn history survives restarts.
// Per-session serialization relies on optimistic WATCH transactions; the
// idle timeout maps directly onto key TTLs, so eviction needs no sweep.
type Store struct {
	client      *redis.Client
	idleTimeout time.Duration
}

// New creates a Redis-backed session store. idleTimeout of zero keeps
// sessions until explicitly deleted.
func New(client *redis.Client, idleTimeout time.Duration) *Store {
	return &Store{client: client, idleTimeout: idleTimeout}
}

func key(id string) string {
	return keyPrefix + id
}

// GetOrCreate returns the stored session for id, or a fresh session for an
// empty or unknown id.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*schema.Session, error) {
	if id != "" {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			s.touch(ctx, id)
			return sess, nil
		}
	}

	now := time.Now()
	sess := &schema.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session for id, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*schema.Session, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var sess schema.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// AppendTurn appends one turn via an optimistic transaction so concurrent
// appends to the same session never interleave.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, turn schema.Turn) error {
	return s.update(ctx, sessionID, func(sess *schema.Session) {
		sess.Turns = append(sess.Turns, turn)
	})
}

// SetDocumentScope replaces the session's selected-document set.
func (s *Store) SetDocumentScope(ctx context.Context, sessionID string, documentIDs []string) error {
	return s.update(ctx, sessionID, func(sess *schema.Session) {
		sess.DocumentIDs = append([]string(nil), documentIDs...)
	})
}

// List returns every live session.
func (s *Store) List(ctx context.Context) ([]*schema.Session, error) {
	var sessions []*schema.Session
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess schema.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			continue
		}
		sessions = append(sessions, &sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and its history.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}

func (s *Store) update(ctx context.Context, sessionID string, mutate func(*schema.Session)) error {
	k := key(sessionID)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if err == redis.Nil {
			return nil // unknown session, nothing to mutate
		}
		if err != nil {
			return err
		}
		var sess schema.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		mutate(&sess)
		sess.LastUsedAt = time.Now()
		encoded, err := json.Marshal(&sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, encoded, s.idleTimeout)
			return nil
		})
		return err
	}

	// A handful of optimistic retries covers realistic same-session
	// contention.
	for i := 0; i < 5; i++ {
		err := s.client.Watch(ctx, txn, k)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("append to session %s: too much contention", sessionID)
}

func (s *Store) save(ctx context.Context, sess *schema.Session) error {
	encoded, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.ID), encoded, s.idleTimeout).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *Store) touch(ctx context.Context, id string) {
	if s.idleTimeout > 0 {
		s.client.Expire(ctx, key(id), s.idleTimeout)
	}
}

var _ interfaces.SessionStore = (*Store)(nil)
