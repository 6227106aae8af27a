package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wikiquiz/internal/db"
	"wikiquiz/internal/leaderboard"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the best recorded games",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := db.Init(cfg); err != nil {
			return fmt.Errorf("db init: %w", err)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := leaderboard.New(db.DB).Top(context.Background(), limit)
		if err != nil {
			return err
		}
		printBoard(os.Stdout, records)
		return nil
	},
}

func printBoard(w io.Writer, records []leaderboard.GameRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No games recorded yet.")
		return
	}
	for i, r := range records {
		fmt.Fprintf(w, "%2d. %-20s %3d  %s\n", i+1, r.Username, r.Streak, strings.Join(r.Titles(), " -> "))
	}
}

func init() {
	leaderboardCmd.Flags().Int("limit", 10, "number of games to show")
	rootCmd.AddCommand(leaderboardCmd)
}
