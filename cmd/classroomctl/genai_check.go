package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quipper/poc/classroom/be/internal/genaicheck"
)

func newGenAICheckCmd() *cobra.Command {
	var (
		model   string
		score   int
		timeout time.Duration
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "genai-check",
		Short: "Call Gemini with the suggestion prompt and check the reply format",
		Long:  `Reads GEMINI_API_KEY, asks for numbered improvement suggestions and fails unless the reply has 8-10 numbered lines.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			gen, err := genaicheck.NewGeminiGenerator(ctx, os.Getenv("GEMINI_API_KEY"), model)
			if err != nil {
				return err
			}
			text, res, err := genaicheck.Run(ctx, gen, score)
			out := cmd.OutOrStdout()
			if text != "" && !quiet {
				sep := strings.Repeat("=", 80)
				fmt.Fprintf(out, "%s\n%s\n%s\n", sep, text, sep)
			}
			if text != "" {
				fmt.Fprintf(out, "length=%d lines=%d numbered=%d\n", len(text), res.TotalLines, len(res.Numbered))
				for _, l := range res.Numbered[:min(3, len(res.Numbered))] {
					fmt.Fprintf(out, "  %s\n", truncate(l, 80))
				}
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", genaicheck.DefaultModel, "Gemini model")
	f.IntVar(&score, "score", 70, "logic test score in percent used in the prompt")
	f.DurationVar(&timeout, "timeout", time.Minute, "request timeout")
	f.BoolVarP(&quiet, "quiet", "q", false, "do not print the full reply")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
