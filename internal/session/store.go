// Package session keeps the currently valid access and refresh token of
// each user in Redis.  There is at most one live entry per (class, user):
// storing a new token overwrites the previous one.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/banking-auth/internal/token"
)

// ErrUnavailable wraps every Redis transport failure.
var ErrUnavailable = errors.New("session store unavailable")

// Store is a Redis-backed token store.  Each operation is a single-key
// command, so concurrent calls for the same user rely on Redis atomicity.
type Store struct {
	rdb *redis.Client
	ttl func(token.Class) time.Duration
}

// NewStore returns a Store whose entries live for ttl(class).
func NewStore(rdb *redis.Client, ttl func(token.Class) time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Put stores tok as the live token of class for userID, replacing any previous value.
func (s *Store) Put(ctx context.Context, class token.Class, userID uint64, tok string) error {
	if err := s.rdb.Set(ctx, class.CacheKey(userID), tok, s.ttl(class)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the live token of class for userID.  A missing entry is
// reported with ok=false and a nil error.
func (s *Store) Get(ctx context.Context, class token.Class, userID uint64) (string, bool, error) {
	v, err := s.rdb.Get(ctx, class.CacheKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

// Invalidate deletes the entry of class for userID.  Deleting a missing
// entry is not an error.
func (s *Store) Invalidate(ctx context.Context, class token.Class, userID uint64) error {
	if err := s.rdb.Del(ctx, class.CacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
