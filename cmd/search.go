package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritas-legal/research-cli/internal/model"
)

var (
	searchMode         string
	searchUser         string
	searchJurisdiction string
	searchDocTypes     []string
	searchStartDate    string
	searchEndDate      string
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query text>",
	Short: "Run an aggregated legal-research query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initShell(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mode, err := model.ParseMode(searchMode)
		if err != nil {
			return err
		}

		q := model.Query{
			Text:          strings.Join(args, " "),
			Jurisdiction:  searchJurisdiction,
			DocumentTypes: searchDocTypes,
			Mode:          mode,
			UserID:        searchUser,
		}
		if q.StartDate, err = parseDateFlag(searchStartDate); err != nil {
			return err
		}
		if q.EndDate, err = parseDateFlag(searchEndDate); err != nil {
			return err
		}

		result, err := env.Aggregator.Execute(ctx, q)
		if err != nil {
			return err
		}

		zap.L().Info("query complete",
			zap.String("mode", string(result.Mode)),
			zap.Int("results", len(result.Results)),
			zap.Bool("cache_hit", result.CacheHit),
			zap.Duration("elapsed", result.Elapsed),
		)

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printAggregate(result)
		return nil
	},
}

func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, eris.Wrapf(err, "parse date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func printAggregate(r *model.AggregateResult) {
	fmt.Printf("Query: %s\n", r.Query)
	fmt.Printf("Mode: %s", r.Mode)
	if r.Rationale != "" {
		fmt.Printf(" (%s)", r.Rationale)
	}
	fmt.Printf("\nPredicted cost: $%.4f  Cache hit: %v  Elapsed: %s\n\n", r.PredictedUSD, r.CacheHit, r.Elapsed.Round(time.Millisecond))

	for i, res := range r.Results {
		fmt.Printf("%2d. [%3d] %s (%s)\n", i+1, res.RelevanceScore, res.Title, res.Source)
		if res.Citation != "" {
			fmt.Printf("      %s", res.Citation)
			if res.Court != "" {
				fmt.Printf(", %s", res.Court)
			}
			fmt.Printf("\n")
		}
		if res.URL != "" {
			fmt.Printf("      %s\n", res.URL)
		}
	}

	fmt.Printf("\nSources:\n")
	for _, st := range r.Sources {
		state := "ok"
		switch {
		case !st.Configured:
			state = "unconfigured"
		case !st.OK:
			state = "failed: " + st.Error
		}
		fmt.Printf("  %-20s %s (%d results)\n", st.Source, state, st.Results)
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "fast", "query mode: fast or deep")
	searchCmd.Flags().StringVar(&searchUser, "user", "cli", "requesting user id")
	searchCmd.Flags().StringVar(&searchJurisdiction, "jurisdiction", "", "court jurisdiction filter")
	searchCmd.Flags().StringSliceVar(&searchDocTypes, "types", nil, "document types to search (opinion, docket, filing, oral-argument)")
	searchCmd.Flags().StringVar(&searchStartDate, "after", "", "only results filed after this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchEndDate, "before", "", "only results filed before this date (YYYY-MM-DD)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(searchCmd)
}
