package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"wikiquiz/internal/config"
	redisdb "wikiquiz/internal/redis"
)

func exerciseSessions(t *testing.T, s Sessions) {
	t.Helper()
	ctx := context.Background()
	userID := uint(12345)

	if err := s.Set(ctx, userID, "session_test_token", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "session_test_token" {
		t.Errorf("expected token %q, got %q", "session_test_token", got)
	}
	if n, err := s.Count(ctx); err != nil || n < 1 {
		t.Errorf("expected at least one session, got %d (%v)", n, err)
	}

	if err := s.Delete(ctx, userID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, userID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after delete, got %v", err)
	}
}

func TestMemorySessions(t *testing.T) {
	exerciseSessions(t, NewMemorySessions())
}

func TestMemorySessions_Expiry(t *testing.T) {
	s := NewMemorySessions()
	now := time.Now()
	s.now = func() time.Time { return now }

	_ = s.Set(context.Background(), 1, "tok", time.Minute)
	now = now.Add(2 * time.Minute)

	if _, err := s.Get(context.Background(), 1); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected expired session, got %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("expected 0 sessions, got %d", n)
	}
}

// Runs against a real redis only when TEST_REDIS_ADDR is set.
func TestRedisSessions(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis session test")
	}
	cfg := &config.Config{}
	cfg.Redis.Addr = addr
	cfg.Redis.DB = 15
	exerciseSessions(t, NewRedisSessions(redisdb.NewClient(cfg)))
}
