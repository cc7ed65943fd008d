// Package memory provides in-process adapters used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
)

// SessionStore keeps sessions in a map guarded by an RWMutex.
// Expiry is not enforced on reads; callers check Session.ExpiredAt and
// DeleteExpired drops stale entries.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
	byUser   map[int64]map[string]struct{}
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domainauth.Session),
		byUser:   make(map[int64]map[string]struct{}),
	}
}

func (s *SessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveLocked(sess)
	return nil
}

func (s *SessionStore) saveLocked(sess domainauth.Session) {
	if prev, ok := s.sessions[sess.Token]; ok && prev.UserID != sess.UserID {
		s.unindexLocked(prev.UserID, prev.Token)
	}
	s.sessions[sess.Token] = sess
	tokens, ok := s.byUser[sess.UserID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byUser[sess.UserID] = tokens
	}
	tokens[sess.Token] = struct{}{}
}

func (s *SessionStore) Get(_ context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	delete(s.sessions, token)
	s.unindexLocked(sess.UserID, token)
	return nil
}

func (s *SessionStore) DeleteByUser(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUserLocked(userID), nil
}

// ReplaceUserSessions drops the user's sessions and stores sess under one lock.
func (s *SessionStore) ReplaceUserSessions(_ context.Context, sess domainauth.Session) (int, error) {
	if sess.Token == "" {
		return 0, errors.New("session token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.deleteUserLocked(sess.UserID)
	s.saveLocked(sess)
	return n, nil
}

func (s *SessionStore) deleteUserLocked(userID int64) int {
	tokens := s.byUser[userID]
	for token := range tokens {
		delete(s.sessions, token)
	}
	delete(s.byUser, userID)
	return len(tokens)
}

// DeleteExpired removes sessions whose expiry lies before now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, sess := range s.sessions {
		if !sess.ExpiredAt(now) {
			continue
		}
		delete(s.sessions, token)
		s.unindexLocked(sess.UserID, token)
		n++
	}
	return n, ctx.Err()
}

// Len reports the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) unindexLocked(userID int64, token string) {
	tokens := s.byUser[userID]
	delete(tokens, token)
	if len(tokens) == 0 {
		delete(s.byUser, userID)
	}
}
