package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritas-legal/research-cli/internal/model"
)

var costMode string

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Predict query costs and inspect duplicate-query analytics",
}

var costPredictCmd = &cobra.Command{
	Use:   "predict <query text>",
	Short: "Estimate the cost of one query in one mode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		mode, err := model.ParseMode(costMode)
		if err != nil {
			return err
		}

		p := env.Predictor.Predict(strings.Join(args, " "), mode)
		fmt.Printf("%s: $%.4f (%d calls across %d sources)\n", p.Mode, p.USD, p.EstimatedCalls, p.Sources)
		return nil
	},
}

var costCompareCmd = &cobra.Command{
	Use:   "compare <query text>",
	Short: "Compare estimated cost across modes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		for _, p := range env.Predictor.Compare(strings.Join(args, " ")) {
			fmt.Printf("%-5s $%.4f (%d calls)\n", p.Mode, p.USD, p.EstimatedCalls)
		}
		return nil
	},
}

var costRecommendCmd = &cobra.Command{
	Use:   "recommend <query text>",
	Short: "Recommend a mode for a query with rationale",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		mode, err := model.ParseMode(costMode)
		if err != nil {
			return err
		}

		rec := env.Predictor.RecommendMode(strings.Join(args, " "), mode)
		fmt.Printf("requested %s, recommended %s\n  %s\n", rec.Requested, rec.Mode, rec.Rationale)
		return nil
	},
}

var costDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Report repeated queries from the history log",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.History == nil {
			return fmt.Errorf("query history is not configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		since := time.Now().Add(-7 * 24 * time.Hour)
		counts, err := env.History.TopFingerprints(ctx, since, 20)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("no repeated queries in the last 7 days")
			return nil
		}

		savings := env.Predictor.Rates().SavingsPerHit
		for _, fc := range counts {
			fmt.Printf("%3dx %q (potential savings $%.2f)\n",
				fc.Count, fc.SampleText, float64(fc.Count-1)*savings)
		}
		return nil
	},
}

func init() {
	costCmd.PersistentFlags().StringVar(&costMode, "mode", "fast", "query mode: fast or deep")
	costCmd.AddCommand(costPredictCmd)
	costCmd.AddCommand(costCompareCmd)
	costCmd.AddCommand(costRecommendCmd)
	costCmd.AddCommand(costDuplicatesCmd)
	rootCmd.AddCommand(costCmd)
}
