package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wikiquiz/internal/quiz"
)

var roundCmd = &cobra.Command{
	Use:   "round [title]",
	Short: "Generate one round for an article and print it",
	Long: `Round runs the full pipeline once: fetch the article, pick its densest
sections, write and fact-check a question, find the citation and rank the
onward links. Without a title a random article is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		pages := newWikiClient(cfg, nil)
		manager, err := newManager(ctx, cfg, pages)
		if err != nil {
			return err
		}

		title := strings.Join(args, " ")
		if title == "" {
			if title, err = pages.Random(ctx); err != nil {
				return err
			}
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		var observer quiz.Observer
		if verbose {
			observer = func(s quiz.Stage) { fmt.Fprintf(os.Stderr, "... %s\n", s) }
		}

		round, err := manager.RunRound(ctx, title, observer)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(round)
		}
		printRound(round)
		return nil
	},
}

func printRound(r *quiz.Round) {
	fmt.Printf("%s\n%s\n\n", r.PageTitle, r.PageURL)
	fmt.Printf("Q: %s\n", r.Question.Text)
	for i, opt := range r.Question.Options {
		mark := " "
		if i == r.Question.CorrectIndex {
			mark = "*"
		}
		fmt.Printf(" %s %c) %s\n", mark, 'A'+i, opt)
	}
	fmt.Printf("\n%s\n", r.Question.Explanation)
	if r.Citation != nil {
		fmt.Printf("\n\"%s\"\n  (%s, %s)\n", r.Citation.Sentence, r.Citation.SectionTitle, r.Citation.SectionURL)
	}
	fmt.Printf("\nAudit confidence %.2f on attempt %d\n", r.Validation.Confidence, r.CorrectionAttempts)
	if len(r.Links) > 0 {
		fmt.Println("\nNext:")
		for _, l := range r.Links {
			fmt.Printf("  %.2f  %s\n", l.Score, l.Title)
		}
	}
}

func init() {
	roundCmd.Flags().Bool("json", false, "print the round as JSON")
	roundCmd.Flags().BoolP("verbose", "v", false, "print pipeline stages to stderr")
	rootCmd.AddCommand(roundCmd)
}
