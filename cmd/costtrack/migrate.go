package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/costtrack/costtrack/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := migrate.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()

		results, err := m.Up(cmd.Context())
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%s)\n", r.Source, r.Duration.Round(time.Millisecond))
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no migrations to run")
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := migrate.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()

		res, err := m.Down(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%s)\n", res.Source, res.Duration.Round(time.Millisecond))
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := migrate.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()

		statuses, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tAPPLIED AT\tSOURCE")
		for _, s := range statuses {
			applied := "pending"
			if s.Applied {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, applied, s.Source)
		}
		return tw.Flush()
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := migrate.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()

		v, err := m.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateVersionCmd)
}
