// Command migrate applies, reverts and reports the embedded schema
// migrations against the configured MySQL database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/college-housing/internal/config"
	"github.com/iliyamo/college-housing/internal/database"
)

func openDB() (*sql.DB, error) {
	c := config.LoadDB()
	db, err := database.Open(c.User, c.Pass, c.Host, c.Port, c.Name)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return db, nil
}

// dbCommand builds a subcommand that runs fn against a fresh connection.
func dbCommand(use, short string, fn func(ctx context.Context, db *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd.Context(), db)
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "College housing schema migrations",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		dbCommand("up", "Apply all pending migrations", database.Migrate),
		dbCommand("down", "Revert the most recent migration", database.Rollback),
		dbCommand("status", "Show status of all migrations", database.Status),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
