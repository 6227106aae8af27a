package api

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wikiquiz/internal/auth"
	"wikiquiz/internal/config"
	"wikiquiz/internal/game"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

// Deps are the services the HTTP layer talks to. Account handlers use db.DB.
type Deps struct {
	Game        *game.Service
	Search      Searcher
	Leaderboard Leaderboard
	Sessions    auth.Sessions
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.Default()
	subpath := cfg.Server.Subpath // "" or e.g. "/wikiquiz", always starts with '/'

	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	tmpl := template.Must(template.ParseFS(webFS, "web/templates/*.html"))
	r.SetHTMLTemplate(tmpl)
	static, _ := fs.Sub(webFS, "web/static")
	r.StaticFS(path.Join("/", subpath, "static"), http.FS(static))

	index := func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{"subpath": subpath})
	}
	if subpath == "" {
		r.GET("/", index)
	} else {
		r.GET(subpath, index)
		// Redirect /subpath/ to /subpath
		r.GET(subpath+"/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, subpath)
		})
	}

	optionalAuth := auth.AuthMiddleware(cfg, deps.Sessions, true)
	requireAuth := auth.AuthMiddleware(cfg, deps.Sessions, false)

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))
		group.GET("/players/online", onlinePlayersHandler(deps.Sessions))

		// Accounts
		group.POST("/auth/register", RegisterHandler(cfg, deps.Sessions))
		group.POST("/auth/login", LoginHandler(cfg, deps.Sessions))
		group.POST("/auth/logout", requireAuth, LogoutHandler(cfg, deps.Sessions))
		group.GET("/auth/me", requireAuth, MeHandler())

		// Game
		group.GET("/api/session", optionalAuth, GetSessionHandler(cfg, deps.Game))
		group.POST("/api/rounds", optionalAuth, StartRoundHandler(cfg, deps.Game))
		group.POST("/api/answer", optionalAuth, AnswerHandler(cfg, deps.Game))
		group.POST("/api/next", optionalAuth, NextHandler(cfg, deps.Game))
		group.POST("/api/reset", optionalAuth, ResetHandler(cfg, deps.Game))
		group.GET("/api/search", SearchHandler(deps.Search))

		// Leaderboard
		group.GET("/api/leaderboard", LeaderboardHandler(deps.Leaderboard))
		group.GET("/api/leaderboard/me", requireAuth, MyGamesHandler(deps.Leaderboard))

		// Streaming round preparation
		group.GET("/ws/round", optionalAuth, WSRoundHandler(cfg, deps.Game))
	}
	return r
}
