package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/auth"
	"wikiquiz/internal/config"
	"wikiquiz/internal/db"
	"wikiquiz/internal/user"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

// issueSession signs a token, stores it as the player's live session and
// mirrors it into a cookie for the websocket handshake.
func issueSession(c *gin.Context, cfg *config.Config, sessions auth.Sessions, u *user.User) (LoginResponse, error) {
	token, err := auth.GenerateJWT(cfg.Server.JWTSecret, u.ID, u.Username, auth.SessionTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	if err := sessions.Set(c.Request.Context(), u.ID, token, auth.SessionTTL); err != nil {
		return LoginResponse{}, err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     cookiePath(cfg),
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return LoginResponse{Token: token, UserID: u.ID, Username: u.Username}, nil
}

// POST /auth/register
func RegisterHandler(cfg *config.Config, sessions auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		u, err := user.Register(db.DB, req.Username, req.Password)
		switch {
		case errors.Is(err, user.ErrInvalidUsername), errors.Is(err, user.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		case errors.Is(err, user.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": err.Error()}})
			return
		case err != nil:
			log.Printf("[API] Register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "DB error"}})
			return
		}
		resp, err := issueSession(c, cfg, sessions, u)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to generate token"}})
			return
		}
		log.Printf("[API] Registered player %s", u.Username)
		c.JSON(http.StatusCreated, resp)
	}
}

// POST /auth/login
func LoginHandler(cfg *config.Config, sessions auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		u, err := user.Authenticate(db.DB, req.Username, req.Password)
		if err != nil {
			if !errors.Is(err, user.ErrInvalidCredentials) {
				log.Printf("[API] Login lookup failed: %v", err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Invalid username or password"}})
			return
		}
		resp, err := issueSession(c, cfg, sessions, u)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to generate token"}})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// POST /auth/logout
func LogoutHandler(cfg *config.Config, sessions auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := currentPlayer(c)
		_ = sessions.Delete(c.Request.Context(), player.ID)
		http.SetCookie(c.Writer, &http.Cookie{Name: auth.TokenCookie, Value: "", Path: cookiePath(cfg), MaxAge: -1})
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// GET /auth/me
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		player := currentPlayer(c)
		var u user.User
		if err := db.DB.First(&u, player.ID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "User not found"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":         u.ID,
			"username":   u.Username,
			"bestStreak": u.BestStreak,
			"createdAt":  u.CreatedAt,
		})
	}
}
