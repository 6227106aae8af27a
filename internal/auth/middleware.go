package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/config"
)

// TokenCookie carries the JWT for browser clients that cannot set headers,
// such as the websocket handshake.
const TokenCookie = "wikiquiz_token"

// SessionTTL is how long a login stays valid without activity.
const SessionTTL = 7 * 24 * time.Hour

// AuthMiddleware checks the bearer token (or token cookie) against the
// player's live session. With optional set, anonymous requests pass through
// without identity; invalid credentials are ignored rather than rejected.
func AuthMiddleware(cfg *config.Config, sessions Sessions, optional bool) gin.HandlerFunc {
	deny := func(c *gin.Context, msg string) {
		if optional {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": msg}})
	}

	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			deny(c, "Missing or invalid Authorization header")
			return
		}
		claims, err := ParseJWT(cfg.Server.JWTSecret, tokenStr)
		if err != nil {
			deny(c, "Invalid or expired token")
			return
		}
		sessionToken, err := sessions.Get(c.Request.Context(), claims.UserID)
		if err != nil || sessionToken != tokenStr {
			deny(c, "Session expired or invalid")
			return
		}
		_ = sessions.Set(c.Request.Context(), claims.UserID, tokenStr, SessionTTL)

		c.Set("userId", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("token", tokenStr)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// CurrentPlayer returns the identity AuthMiddleware attached, if any.
func CurrentPlayer(c *gin.Context) (uint, string, bool) {
	id, ok := c.Get("userId")
	if !ok {
		return 0, "", false
	}
	return id.(uint), c.GetString("username"), true
}
