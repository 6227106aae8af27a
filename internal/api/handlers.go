package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/auth"
	"wikiquiz/internal/config"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"llm": gin.H{
				"provider":       cfg.LLM.Provider,
				"model":          cfg.LLM.Model,
				"fallback_model": cfg.LLM.FallbackModel,
				"auditor_model":  cfg.LLM.AuditorModel,
			},
			"wikipedia": gin.H{
				"page_url":  cfg.Wikipedia.PageURL,
				"max_links": cfg.Wikipedia.MaxLinks,
			},
			"game":  cfg.Game,
			"redis": gin.H{"enabled": cfg.Redis.Enabled},
		})
	}
}

// GET /players/online
func onlinePlayersHandler(sessions auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := sessions.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to count online players"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": count})
	}
}
