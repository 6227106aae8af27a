package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/game"
	"wikiquiz/internal/llm"
	"wikiquiz/internal/quiz"
	"wikiquiz/internal/wiki"
)

// roundView is a round as the browser sees it. Nothing in it reveals the
// correct option before the player answers.
type roundView struct {
	ID                 string              `json:"id"`
	PageTitle          string              `json:"pageTitle"`
	PageURL            string              `json:"pageUrl"`
	Question           quiz.PublicQuestion `json:"question"`
	Sections           []string            `json:"sections"`
	CorrectionAttempts int                 `json:"correctionAttempts"`
	Links              []quiz.LinkScore    `json:"links,omitempty"`
	DebugLogs          []quiz.DebugLog     `json:"debugLogs,omitempty"`
}

type sessionView struct {
	Username   string             `json:"username,omitempty"`
	Round      *roundView         `json:"round"`
	Answered   bool               `json:"answered"`
	Result     *game.AnswerResult `json:"result,omitempty"`
	Streak     int                `json:"streak"`
	BestStreak int                `json:"bestStreak"`
	GameOver   bool               `json:"gameOver"`
	Visited    []string           `json:"visited"`
}

// newSessionView hides answer-bearing fields (links, debug logs, the result)
// until the round is answered.
func newSessionView(s *game.Session, debug bool) sessionView {
	v := sessionView{
		Username:   s.Username,
		Answered:   s.Answered,
		Streak:     s.Streak,
		BestStreak: s.BestStreak,
		GameOver:   s.GameOver,
		Visited:    s.Visited,
	}
	if v.Visited == nil {
		v.Visited = []string{}
	}
	if s.Round == nil {
		return v
	}

	r := s.Round
	rv := &roundView{
		ID:                 r.ID,
		PageTitle:          r.PageTitle,
		PageURL:            r.PageURL,
		Question:           r.Question.Public(),
		CorrectionAttempts: r.CorrectionAttempts,
	}
	for _, sec := range r.Sections {
		rv.Sections = append(rv.Sections, sec.Title)
	}
	if s.Answered {
		rv.Links = r.Links
		if debug {
			rv.DebugLogs = r.DebugLogs
		}
		v.Result = &game.AnswerResult{
			Correct:      s.Guess == r.Question.CorrectIndex,
			Guess:        s.Guess,
			CorrectIndex: r.Question.CorrectIndex,
			Explanation:  r.Question.Explanation,
			Citation:     r.Citation,
			Streak:       s.Streak,
			BestStreak:   s.BestStreak,
			GameOver:     s.GameOver,
		}
	}
	v.Round = rv
	return v
}

// statusFor maps pipeline and game errors to an HTTP status and a message
// fit for the player.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrNoRound), errors.Is(err, game.ErrNotAnswered),
		errors.Is(err, game.ErrAlreadyAnswered), errors.Is(err, game.ErrGameOver):
		return http.StatusConflict, err.Error()
	case errors.Is(err, game.ErrUnknownLink), errors.Is(err, game.ErrInvalidChoice):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, wiki.ErrPageNotFound), errors.Is(err, wiki.ErrDisambiguation),
		errors.Is(err, wiki.ErrEmptyTitle), errors.Is(err, wiki.ErrNoContent):
		return http.StatusNotFound, "Could not load the Wikipedia page: " + err.Error()
	case errors.Is(err, quiz.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "Could not generate a verified question for this page. Try another topic."
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, llm.UserMessage(err)
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrCircuitOpen), errors.Is(err, llm.ErrTooManyRequests):
		return http.StatusServiceUnavailable, llm.UserMessage(err)
	case errors.Is(err, llm.ErrModelNotFound):
		return http.StatusBadGateway, llm.UserMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The round took too long to prepare. Please try again."
	}
	return http.StatusInternalServerError, llm.UserMessage(err)
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": gin.H{"message": msg}})
}
