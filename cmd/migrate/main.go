// Command migrate manages the Postgres schema outside the server.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/apicatalog/internal/config"
	"github.com/example/apicatalog/internal/dbmigrate"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the apicatalog PostgreSQL schema",
		Long: `Apply, roll back or inspect the schema migrations.

Connection settings come from the same POSTGRES_* / DB_* variables and
CONFIG_FILE the server reads.

Examples:
  migrate up                 # Apply all pending migrations
  migrate up --steps 1       # Apply the next migration only
  migrate down --steps 1     # Roll back the last migration
  migrate version            # Print the current version
  migrate force 1            # Clear a dirty state at version 1
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")

	open := func() (*dbmigrate.Migrator, error) {
		c, err := config.New()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if c.DBAdapter != "postgres" {
			return nil, fmt.Errorf("migrations only work with PostgreSQL, current adapter: %s", c.DBAdapter)
		}
		if dir == "" {
			dir = c.MigrationsDir
		}
		return dbmigrate.Open(dir, c.PostgresDSN)
	}

	cmd.AddCommand(upCmd(open), downCmd(open), versionCmd(open), forceCmd(open))
	return cmd
}

type opener func() (*dbmigrate.Migrator, error)

func upCmd(open opener) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			changed, err := m.Up(steps)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations")
				return nil
			}
			v, _, _ := m.Version()
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version %d\n", v)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all)")
	return cmd
}

func downCmd(open opener) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Down(steps); err != nil {
				return err
			}
			v, _, _ := m.Version()
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to version %d\n", v)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to roll back (0 = all)")
	return cmd
}

func versionCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("%w (version %d)", dbmigrate.ErrDirty, v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", v)
			return nil
		},
	}
}

func forceCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return errors.New("version must be a non-negative integer")
			}
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Force(v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forced database to version %d\n", v)
			return nil
		},
	}
}
