package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/storage/sqlite"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dbPath := config.Read(v).DBPath
				if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
					return fmt.Errorf("failed to create database directory: %w", err)
				}
				if err := sqlite.RunMigrations(dbPath); err != nil {
					return err
				}
				return printVersion(cmd, dbPath)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid steps %q: %w", args[0], err)
					}
					steps = n
				}

				dbPath := config.Read(v).DBPath
				if err := sqlite.RollbackMigrations(dbPath, steps); err != nil {
					return err
				}
				slog.Info("Rolled back migrations", "steps", steps)
				return printVersion(cmd, dbPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printVersion(cmd, config.Read(v).DBPath)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := sqlite.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
