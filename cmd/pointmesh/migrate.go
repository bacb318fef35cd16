package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/db"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run database schema",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if root := cmd.Root(); root.PersistentPreRun != nil {
				root.PersistentPreRun(cmd, nil)
			}
			if g.dbPath == "" {
				return errors.New("migrate needs --db")
			}
			return nil
		},
	}

	// Migration commands open without migrating so a dirty or newer schema
	// can still be inspected and repaired.
	withDB := func(fn func(cmd *cobra.Command, d *db.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d, err := db.Open(g.dbPath)
			if err != nil {
				return err
			}
			defer d.Close()
			return fn(cmd, d, args)
		}
	}
	printVersion := func(cmd *cobra.Command, d *db.DB) error {
		v, dirty, err := d.MigrateVersion()
		if err != nil {
			return err
		}
		latest, err := db.LatestMigrationVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (latest %d, dirty %v)\n", v, latest, dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				if err := d.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				if err := d.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				return printVersion(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("version %q: %w", args[0], err)
				}
				if err := d.MigrateForce(v); err != nil {
					return err
				}
				return printVersion(cmd, d)
			}),
		},
	)
	return cmd
}
