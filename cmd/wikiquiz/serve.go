package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"wikiquiz/internal/api"
	"wikiquiz/internal/auth"
	"wikiquiz/internal/db"
	"wikiquiz/internal/game"
	"wikiquiz/internal/leaderboard"
	redisdb "wikiquiz/internal/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web game",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()

		if err := db.Init(cfg); err != nil {
			return fmt.Errorf("db init: %w", err)
		}
		rdb, err := redisdb.Connect(ctx, cfg)
		if err != nil {
			return err
		}

		pages := newWikiClient(cfg, rdb)
		manager, err := newManager(ctx, cfg, pages)
		if err != nil {
			return err
		}

		var store game.Store
		var sessions auth.Sessions
		if rdb != nil {
			store = game.NewRedisStore(rdb, cfg.SessionTTL())
			sessions = auth.NewRedisSessions(rdb)
		} else {
			mem := game.NewMemoryStore(cfg.SessionTTL())
			stop, err := mem.StartSweeper("@every 5m")
			if err != nil {
				return err
			}
			defer stop()
			store = mem
			sessions = auth.NewMemorySessions()
		}

		board := leaderboard.New(db.DB)
		svc := game.NewService(store, manager, pages, board)

		r := api.SetupRouter(cfg, api.Deps{
			Game:        svc,
			Search:      pages,
			Leaderboard: board,
			Sessions:    sessions,
		})
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("[Main] Starting server on %s%s", addr, cfg.Server.Subpath)
		return r.Run(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
