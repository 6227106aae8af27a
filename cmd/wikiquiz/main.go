// Package main is the entry point for the wikiquiz server and CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"wikiquiz/internal/config"
	"wikiquiz/internal/llm"
	"wikiquiz/internal/quiz"
	"wikiquiz/internal/wiki"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "wikiquiz",
	Short: "Multiple-choice trivia generated from Wikipedia articles",
	Long: `wikiquiz turns a Wikipedia article into a fact-checked multiple-choice
question, then lets the player follow one of the article's links to the next
round. Run "wikiquiz serve" for the web game.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "JSON config file (defaults and WIKIQUIZ_* environment variables apply without one)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newWikiClient builds the Wikipedia client, caching pages in redis when a
// client is given and in memory otherwise.
func newWikiClient(cfg *config.Config, rdb *redis.Client) *wiki.Client {
	var cache wiki.Cache = wiki.NewMemoryCache(cfg.CacheTTL(), cfg.Wikipedia.CacheMaxEntries)
	if rdb != nil {
		cache = wiki.NewRedisCache(rdb, cfg.CacheTTL())
	}
	return wiki.NewClient(wiki.Options{
		APIURL:    cfg.Wikipedia.APIURL,
		PageURL:   cfg.Wikipedia.PageURL,
		UserAgent: cfg.Wikipedia.UserAgent,
		MaxLinks:  cfg.Wikipedia.MaxLinks,
		Timeout:   cfg.WikipediaTimeout(),
		Cache:     cache,
	})
}

func newManager(ctx context.Context, cfg *config.Config, pages *wiki.Client) (*quiz.Manager, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return quiz.NewManager(pages, client, quiz.OptionsFromConfig(cfg)), nil
}

const cliTimeout = 3 * time.Minute

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
