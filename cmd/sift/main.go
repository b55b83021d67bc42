package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zentient/sift/cmd/sift/commands"
	"github.com/zentient/sift/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "sift - composable query specifications over SQLite tables",
	Long: `sift builds declarative query specifications and runs them against a
SQLite database.

Available commands:
  query   - Filter, order, and page rows of a table
  db      - Manage the sift database (init, stats)
  version - Show version information

Examples:
  sift db init                             # Create the demo schema
  sift query items --where "name eq XUnit"
  sift query items --order name --skip 1 --take 1`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Emit structured JSON log output")

	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.DBCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
