package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pickpal/pickpal/internal/clarify"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/planner"
)

var (
	searchSession  string
	searchMaxPrice float64
	searchTopK     int
	searchNoAsk    bool
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a product search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		var channel clarify.Channel
		if !searchNoAsk {
			channel = stdinChannel()
		}

		env, err := initApp(cmd.Context(), channel)
		if err != nil {
			return err
		}
		defer env.Close()

		constraints := make(map[string]any)
		if searchMaxPrice > 0 {
			constraints["max_price"] = searchMaxPrice
		}
		if searchTopK > 0 {
			constraints["k"] = searchTopK
		}

		result, err := env.Planner.Search(cmd.Context(), planner.Request{
			Query:       query,
			Constraints: constraints,
			SessionID:   searchSession,
		})
		if err != nil {
			return err
		}

		if searchJSON {
			printJSON(result)
			return nil
		}
		printResult(result)
		return nil
	},
}

// stdinChannel asks clarifying questions on the terminal. A blank line or
// "skip" skips the question; ctx expiry abandons the prompt.
func stdinChannel() clarify.Channel {
	return clarify.ChannelFunc(func(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error) {
		answer := model.ClarificationAnswer{
			Trace:   req.Trace,
			Answers: make(map[string]string),
		}

		reader := bufio.NewReader(os.Stdin)
		for i, slot := range req.Missing {
			if err := ctx.Err(); err != nil {
				return model.ClarificationAnswer{Trace: req.Trace, Skipped: true}, clarify.ErrAnswerTimeout
			}
			fmt.Printf("%s (enter to skip): ", req.Questions[i])

			lineCh := make(chan string, 1)
			go func() {
				line, _ := reader.ReadString('\n')
				lineCh <- line
			}()

			select {
			case <-ctx.Done():
				fmt.Println()
				return model.ClarificationAnswer{Trace: req.Trace, Skipped: true}, clarify.ErrAnswerTimeout
			case line := <-lineCh:
				line = strings.TrimSpace(line)
				if line == "" || strings.EqualFold(line, "skip") {
					continue
				}
				answer.Answers[slot] = line
			}
		}

		if len(answer.Answers) == 0 {
			answer.Skipped = true
		}
		return answer, nil
	})
}

func printResult(result *model.Result) {
	fmt.Printf("Results for %q (%d candidates considered)\n", result.Query, result.TotalFound)
	if result.Degraded {
		fmt.Println("Note: some constraints could not be fully satisfied.")
	}
	for i, rec := range result.Recommendations {
		fmt.Printf("\n%d. %s", i+1, rec.Name)
		if rec.Price != nil {
			fmt.Printf("  $%.2f", *rec.Price)
		}
		fmt.Printf("  score %.1f/10", rec.Score)
		if rec.Rating != nil {
			fmt.Printf("  (%.1f stars, %d reviews)", *rec.Rating, rec.ReviewCount)
		}
		fmt.Println()
		for _, pro := range rec.Pros {
			fmt.Printf("   + %s\n", pro)
		}
		for _, con := range rec.Cons {
			fmt.Printf("   - %s\n", con)
		}
	}
	for _, note := range result.Notes {
		fmt.Printf("\nnote: %s\n", note)
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchSession, "session", "", "session id for remembering clarification answers")
	searchCmd.Flags().Float64Var(&searchMaxPrice, "max-price", 0, "maximum price constraint")
	searchCmd.Flags().IntVar(&searchTopK, "top", 0, "number of recommendations (default from config)")
	searchCmd.Flags().BoolVar(&searchNoAsk, "no-ask", false, "never ask clarifying questions")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(searchCmd)
}
