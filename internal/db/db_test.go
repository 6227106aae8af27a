package db

import (
	"os"
	"testing"

	"wikiquiz/internal/config"
	"wikiquiz/internal/leaderboard"
	"wikiquiz/internal/user"
)

func TestInit_SQLiteMigrates(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:db_init_test?mode=memory&cache=shared"

	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if DB == nil {
		t.Fatalf("DB not set")
	}
	if !DB.Migrator().HasTable(&user.User{}) {
		t.Errorf("users table missing")
	}
	if !DB.Migrator().HasTable(&leaderboard.GameRecord{}) {
		t.Errorf("game_records table missing")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "oracle"
	if _, err := Open(cfg); err == nil {
		t.Errorf("expected error for unknown driver")
	}
}

func TestOpen_InvalidPostgresDSN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1"
	if _, err := Open(cfg); err == nil {
		t.Errorf("expected error for unreachable postgres")
	}
}

// Runs against a real Postgres only when TEST_DB_DSN is set.
func TestOpen_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("set TEST_DB_DSN to run real DB test")
	}
	cfg := &config.Config{}
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = dsn
	if _, err := Open(cfg); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
}
