// Package game holds per-player session state: the current round, the
// answer given and the running streak.
package game

import (
	"time"

	"wikiquiz/internal/quiz"
)

// Session is one browser's game. Round is nil until the first round starts.
type Session struct {
	ID         string      `json:"id"`
	PlayerID   uint        `json:"playerId,omitempty"`
	Username   string      `json:"username,omitempty"`
	Round      *quiz.Round `json:"round,omitempty"`
	Answered   bool        `json:"answered"`
	Guess      int         `json:"guess"`
	Streak     int         `json:"streak"`
	BestStreak int         `json:"bestStreak"`
	GameOver   bool        `json:"gameOver"`
	Visited    []string    `json:"visited"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, Guess: -1, UpdatedAt: now}
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Visited = append([]string(nil), s.Visited...)
	return &cp
}

// Player identifies a logged-in user. The zero value is anonymous.
type Player struct {
	ID       uint
	Username string
}

type AnswerResult struct {
	Correct      bool           `json:"correct"`
	Guess        int            `json:"guess"`
	CorrectIndex int            `json:"correctIndex"`
	Explanation  string         `json:"explanation"`
	Citation     *quiz.Citation `json:"citation,omitempty"`
	Streak       int            `json:"streak"`
	BestStreak   int            `json:"bestStreak"`
	GameOver     bool           `json:"gameOver"`
}
