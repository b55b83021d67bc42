package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zentient/sift/config"
	"github.com/zentient/sift/db"
	"github.com/zentient/sift/logger"
)

// DBCmd represents the db command group
var DBCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the sift database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the demo schema",
	Long:  `Create the items demo table and seed it with a few rows for experimenting with sift query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetDatabasePath()
		if err != nil {
			return err
		}

		conn, err := db.Open(path, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0
		)`); err != nil {
			return fmt.Errorf("failed to create items table: %w", err)
		}

		seed := [][]any{
			{"1", "XUnit", 3},
			{"2", "MSTest", 1},
			{"3", "Test 101", 2},
		}
		for _, row := range seed {
			if _, err := conn.Exec(
				"INSERT OR IGNORE INTO items (id, name, score) VALUES (?, ?, ?)",
				row...); err != nil {
				return fmt.Errorf("failed to seed items: %w", err)
			}
		}

		logger.Infow("Database initialized", "path", path, "table", "items")
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetDatabasePath()
		if err != nil {
			return err
		}

		conn, err := db.Open(path, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		rows, err := conn.Query(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		defer rows.Close()

		var tables []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("failed to scan table name: %w", err)
			}
			tables = append(tables, name)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", path)
		for _, table := range tables {
			var count int
			if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
				return fmt.Errorf("failed to count %s: %w", table, err)
			}
			fmt.Printf("  %-20s %d rows\n", table, count)
		}
		return nil
	},
}

func init() {
	DBCmd.AddCommand(dbInitCmd)
	DBCmd.AddCommand(dbStatsCmd)
}
