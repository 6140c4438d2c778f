package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the requested session does not exist or has
// already expired.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport-level Redis failures so callers can
// distinguish "gone" from "backend down".
var ErrRedisUnavailable = errors.New("redis unavailable")

// Session is the server-side login record referenced by access tokens.
type Session struct {
	SessionID string    `json:"sid"`
	UserID    int64     `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions in Redis under a key prefix. All methods are safe
// for concurrent use.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; lifetime is the session TTL.
func NewStore(redis redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	return &Store{
		redis:    redis,
		prefix:   prefix,
		lifetime: lifetime,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("%s:u:%d", s.prefix, userID)
}

// Create stores a new session for the user and returns it. The session ID is
// a fresh UUID; collisions are not a practical concern.
func (s *Store) Create(ctx context.Context, userID int64, email string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, s.lifetime)
		pipe.SAdd(ctx, s.userKey(userID), sess.SessionID)
		// Keep the index from outliving its last session indefinitely.
		pipe.Expire(ctx, s.userKey(userID), s.lifetime)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// Get retrieves a session by ID. Expired or missing sessions return
// [ErrNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}

	// Redis TTL normally handles expiry, but the record carries the deadline
	// so a clock check works even against a key with a stale TTL.
	if !sess.ExpiresAt.After(time.Now()) {
		_ = s.Delete(ctx, sessionID)
		return nil, ErrNotFound
	}

	return &sess, nil
}

// Delete removes a session. Deleting a session that no longer exists is not
// an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupt record: drop the key, nothing to unindex reliably.
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// DeleteAllForUser removes every session the user holds, returning how many
// were deleted. A session created concurrently with this call may survive;
// it expires naturally or is caught by the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) (int, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, s.key(id))
	}

	deleted, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := s.redis.Del(ctx, userKey).Err(); err != nil {
		return int(deleted), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(deleted), nil
}

// CountForUser reports how many live sessions the user holds. The index may
// briefly overcount sessions that expired but were never explicitly deleted.
func (s *Store) CountForUser(ctx context.Context, userID int64) (int, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		cmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var live int
	for _, cmd := range cmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		live += int(n)
	}
	return live, nil
}
