package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/store"
)

var (
	historySession string
	historyState   string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history [request_id]",
	Short: "Show past searches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			rec, err := env.Store.GetSearch(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no search with request id %q", args[0])
			}
			if err != nil {
				return err
			}
			printJSON(rec)
			return nil
		}

		records, err := env.Store.ListSearches(cmd.Context(), store.SearchFilter{
			SessionID: historySession,
			State:     model.SearchState(historyState),
			Limit:     historyLimit,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no searches recorded")
			return nil
		}

		for _, rec := range records {
			status := string(rec.State)
			if rec.Degraded {
				status += " (degraded)"
			}
			fmt.Printf("%s  %-22s  %6dms  %s\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"), status, rec.DurationMs, rec.Query)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "filter by session id")
	historyCmd.Flags().StringVar(&historyState, "state", "", "filter by state (returned|failed)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows")
	rootCmd.AddCommand(historyCmd)
}
