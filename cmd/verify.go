package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyJSON bool

var verifyCmd = &cobra.Command{
	Use:   "verify <citation>",
	Short: "Verify a case citation against the primary authority with fallback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initShell(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Verifier.Verify(ctx, args[0])

		if verifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if result.Found {
			fmt.Printf("FOUND  %s\n", result.Citation)
			if result.CaseName != "" {
				fmt.Printf("  %s\n", result.CaseName)
			}
			fmt.Printf("  %s\n  via %s\n", result.URL, result.SourceID)
			return nil
		}

		fmt.Printf("NOT FOUND  %s\n", result.Citation)
		if result.ErrMessage != "" {
			fmt.Printf("  %s\n", result.ErrMessage)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(verifyCmd)
}
