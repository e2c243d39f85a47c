package main

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/lane.report/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run database schema",
	}

	// withDB opens --db without applying migrations.
	withDB := func(fn func(cmd *cobra.Command, database *db.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(g.dbPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return fn(cmd, database, args)
		}
	}

	printVersion := func(cmd *cobra.Command, database *db.DB) error {
		version, dirty, err := database.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty: %v)\n", version, dirty)
		if dirty {
			fmt.Fprintln(cmd.OutOrStdout(), "A migration failed mid-way. Inspect the database, then run: lanetrack migrate force <version>")
		}
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateUp(); err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			return printVersion(cmd, database)
		}),
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateDown(); err != nil {
				return fmt.Errorf("migration down failed: %w", err)
			}
			return printVersion(cmd, database)
		}),
	}
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			return printVersion(cmd, database)
		}),
	}
	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations (recovery only)",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			if err := database.MigrateForce(v); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}
