package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wikiquiz/internal/auth"
	"wikiquiz/internal/config"
	"wikiquiz/internal/game"
	"wikiquiz/internal/leaderboard"
)

// SessionCookie identifies a browser's game session.
const SessionCookie = "wikiquiz_sid"

// Upper bound on preparing one round: several model calls plus a page fetch.
const roundTimeout = 3 * time.Minute

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type Leaderboard interface {
	Top(ctx context.Context, limit int) ([]leaderboard.GameRecord, error)
	ForPlayer(ctx context.Context, playerID uint, limit int) ([]leaderboard.GameRecord, error)
}

func cookiePath(cfg *config.Config) string {
	if cfg.Server.Subpath == "" {
		return "/"
	}
	return cfg.Server.Subpath
}

func sessionCookie(cfg *config.Config, id string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     cookiePath(cfg),
		MaxAge:   int(cfg.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// readSessionID returns the cookie's session id, or a fresh one when the
// cookie is missing or malformed.
func readSessionID(c *gin.Context) (string, bool) {
	if v, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v, false
		}
	}
	return uuid.NewString(), true
}

func ensureSessionID(c *gin.Context, cfg *config.Config) string {
	id, fresh := readSessionID(c)
	if fresh {
		http.SetCookie(c.Writer, sessionCookie(cfg, id))
	}
	return id
}

func currentPlayer(c *gin.Context) game.Player {
	id, name, ok := auth.CurrentPlayer(c)
	if !ok {
		return game.Player{}
	}
	return game.Player{ID: id, Username: name}
}

// GET /api/session
func GetSessionHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ensureSessionID(c, cfg)
		sess, err := svc.Session(c.Request.Context(), id, currentPlayer(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newSessionView(sess, cfg.Game.DebugMode))
	}
}

type StartRoundRequest struct {
	Title string `json:"title"`
}

// POST /api/rounds
func StartRoundHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartRoundRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		id := ensureSessionID(c, cfg)
		ctx, cancel := context.WithTimeout(c.Request.Context(), roundTimeout)
		defer cancel()

		sess, err := svc.Start(ctx, id, currentPlayer(c), req.Title, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, newSessionView(sess, cfg.Game.DebugMode))
	}
}

type AnswerRequest struct {
	Index *int `json:"index" binding:"required"`
}

// POST /api/answer
func AnswerHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "index is required"}})
			return
		}
		id := ensureSessionID(c, cfg)
		res, err := svc.Answer(c.Request.Context(), id, currentPlayer(c), *req.Index)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type NextRequest struct {
	Link string `json:"link" binding:"required"`
	Free bool   `json:"free"`
}

// POST /api/next
func NextHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "link is required"}})
			return
		}
		id := ensureSessionID(c, cfg)
		ctx, cancel := context.WithTimeout(c.Request.Context(), roundTimeout)
		defer cancel()

		sess, err := svc.Next(ctx, id, currentPlayer(c), req.Link, req.Free, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newSessionView(sess, cfg.Game.DebugMode))
	}
}

// POST /api/reset
func ResetHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ensureSessionID(c, cfg)
		sess, err := svc.Reset(c.Request.Context(), id, currentPlayer(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newSessionView(sess, cfg.Game.DebugMode))
	}
}

// GET /api/search?q=
func SearchHandler(search Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "q is required"}})
			return
		}
		results, err := search.Search(c.Request.Context(), q, queryInt(c, "limit", 8))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": "Wikipedia search failed"}})
			return
		}
		if results == nil {
			results = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

// GET /api/leaderboard
func LeaderboardHandler(board Leaderboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := board.Top(c.Request.Context(), queryInt(c, "limit", 10))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to load leaderboard"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

// GET /api/leaderboard/me
func MyGamesHandler(board Leaderboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := currentPlayer(c)
		entries, err := board.ForPlayer(c.Request.Context(), player.ID, queryInt(c, "limit", 10))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to load games"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
