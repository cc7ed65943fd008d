package redis

// Package redis provides Redis-based adapters for seclab.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
)

// expiryGrace keeps a key alive slightly past ExpiresAt so the service layer,
// not Redis, decides the boundary instant.
const expiryGrace = time.Second

// SessionStore is a Redis-based session store.
// Each session is a JSON value under prefix+token; a per-user set under
// prefix+"user:"+id indexes the user's tokens for bulk revocation.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, "seclab:session:")
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *SessionStore) sessionKey(token string) string { return s.prefix + token }

func (s *SessionStore) userKey(userID int64) string {
	return s.prefix + "user:" + strconv.FormatInt(userID, 10)
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	data, ttl, err := s.encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)
	err = s.watchUser(ctx, userKey, func(tx *redis.Tx) error {
		indexTTL, ttlErr := tx.TTL(ctx, userKey).Result()
		if ttlErr != nil {
			return ttlErr
		}
		_, pipeErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.sessionKey(sess.Token), data, ttl)
			pipe.SAdd(ctx, userKey, sess.Token)
			switch {
			case ttl == 0:
				pipe.Persist(ctx, userKey)
			case indexTTL == -1:
				// Keep the index for the persistent member.
			case indexTTL < 0:
				pipe.Expire(ctx, userKey, ttl)
			default:
				pipe.ExpireGT(ctx, userKey, ttl)
			}
			return nil
		})
		return pipeErr
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// ReplaceUserSessions deletes every session of sess.UserID and stores sess in
// one transaction; concurrent writers to the user's index force a retry.
func (s *SessionStore) ReplaceUserSessions(ctx context.Context, sess domainauth.Session) (int, error) {
	data, ttl, err := s.encode(sess)
	if err != nil {
		return 0, err
	}

	userKey := s.userKey(sess.UserID)
	var removed int
	err = s.watchUser(ctx, userKey, func(tx *redis.Tx) error {
		tokens, listErr := tx.SMembers(ctx, userKey).Result()
		if listErr != nil {
			return listErr
		}
		keys := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			keys = append(keys, s.sessionKey(tok))
		}

		var del *redis.IntCmd
		_, pipeErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				del = pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, userKey)
			pipe.Set(ctx, s.sessionKey(sess.Token), data, ttl)
			pipe.SAdd(ctx, userKey, sess.Token)
			if ttl > 0 {
				pipe.Expire(ctx, userKey, ttl)
			}
			return nil
		})
		if pipeErr != nil {
			return pipeErr
		}
		removed = 0
		if del != nil {
			removed = int(del.Val())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis replace user sessions: %w", err)
	}
	return removed, nil
}

// encode validates sess and returns its JSON value and key TTL. A zero TTL
// means the session never expires.
func (s *SessionStore) encode(sess domainauth.Session) ([]byte, time.Duration, error) {
	if sess.Token == "" {
		return nil, 0, errors.New("session token cannot be empty")
	}

	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
		if ttl < 0 {
			return nil, 0, errors.New("session is expired")
		}
		ttl += expiryGrace
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal session: %w", err)
	}
	return data, ttl, nil
}

const maxWatchRetries = 10

// watchUser runs fn under WATCH on userKey, retrying when another client
// modified the index before EXEC.
func (s *SessionStore) watchUser(ctx context.Context, userKey string, fn func(tx *redis.Tx) error) error {
	for range maxWatchRetries {
		err := s.client.Watch(ctx, fn, userKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return redis.TxFailedErr
}

func (s *SessionStore) Get(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, domainauth.ErrSessionNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sess, err := s.Get(ctx, token)
	if errors.Is(err, domainauth.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		// Unreadable value: drop the key anyway.
		return s.client.Del(ctx, s.sessionKey(token)).Err()
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(token))
		pipe.SRem(ctx, s.userKey(sess.UserID), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	userKey := s.userKey(userID)
	tokens, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		keys = append(keys, s.sessionKey(tok))
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis delete user sessions: %w", err)
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}
