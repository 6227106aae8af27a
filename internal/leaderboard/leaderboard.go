// Package leaderboard persists finished games and ranks them by streak.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wikiquiz/internal/user"
)

const AnonymousName = "Anonymous"

// GameRecord is one finished game. Path lists the article titles visited,
// in order.
type GameRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PlayerID  *uint          `gorm:"index" json:"playerId,omitempty"`
	Username  string         `gorm:"size:32;not null" json:"username"`
	Streak    int            `gorm:"index;not null" json:"streak"`
	Path      datatypes.JSON `json:"path"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (r GameRecord) Titles() []string {
	var titles []string
	if len(r.Path) > 0 {
		_ = json.Unmarshal(r.Path, &titles)
	}
	return titles
}

type Board struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Board {
	return &Board{db: db}
}

// Record stores a finished game. playerID 0 means an anonymous player. A
// registered player's best streak is raised in the same transaction.
func (b *Board) Record(ctx context.Context, playerID uint, username string, streak int, path []string) (*GameRecord, error) {
	raw, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	rec := &GameRecord{Username: username, Streak: streak, Path: datatypes.JSON(raw)}
	if rec.Username == "" {
		rec.Username = AnonymousName
	}
	if playerID != 0 {
		rec.PlayerID = &playerID
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if playerID != 0 {
			return user.RecordStreak(tx, playerID, streak)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record game: %w", err)
	}
	log.Printf("[Leaderboard] %s finished with streak %d over %d articles", rec.Username, streak, len(path))
	return rec, nil
}

// Top returns the best games, highest streak first, earliest first on ties.
func (b *Board) Top(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var records []GameRecord
	err := b.db.WithContext(ctx).
		Order("streak DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return records, nil
}

// ForPlayer returns a registered player's games, most recent first.
func (b *Board) ForPlayer(ctx context.Context, playerID uint, limit int) ([]GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var records []GameRecord
	err := b.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load player games: %w", err)
	}
	return records, nil
}
