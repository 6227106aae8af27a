package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("no active session")

const sessionKeyFmt = "session:%d"

// Sessions maps a logged-in player to the one token currently valid for them.
type Sessions interface {
	Set(ctx context.Context, userID uint, token string, ttl time.Duration) error
	Get(ctx context.Context, userID uint) (string, error)
	Delete(ctx context.Context, userID uint) error
	Count(ctx context.Context) (int, error)
}

// RedisSessions stores tokens under session:<id>.
type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func (s *RedisSessions) Set(ctx context.Context, userID uint, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(sessionKeyFmt, userID), token, ttl).Err()
}

func (s *RedisSessions) Get(ctx context.Context, userID uint) (string, error) {
	token, err := s.rdb.Get(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	return token, err
}

func (s *RedisSessions) Delete(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Err()
}

// Count returns the number of players with an active session.
func (s *RedisSessions) Count(ctx context.Context) (int, error) {
	var cursor uint64
	userIDs := make(map[string]struct{})
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			parts := strings.Split(key, ":")
			if len(parts) == 2 && parts[1] != "" {
				userIDs[parts[1]] = struct{}{}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return len(userIDs), nil
}

type memorySession struct {
	token   string
	expires time.Time
}

// MemorySessions is the single-process stand-in used when redis is off.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[uint]memorySession
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[uint]memorySession), now: time.Now}
}

func (s *MemorySessions) Set(_ context.Context, userID uint, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = memorySession{token: token, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessions) Get(_ context.Context, userID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return "", ErrNoSession
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, userID)
		return "", ErrNoSession
	}
	return sess.token, nil
}

func (s *MemorySessions) Delete(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemorySessions) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
			continue
		}
		n++
	}
	return n, nil
}
