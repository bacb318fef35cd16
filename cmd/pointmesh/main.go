// Command pointmesh reconstructs triangle meshes from point clouds and
// derives levels of detail from them.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/db"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	quiet      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "pointmesh",
		Short: "Reconstruct meshes from point clouds",
		Long: `pointmesh turns an unorganised point cloud into a watertight triangle mesh
using oriented normals and an implicit Poisson surface, cleans and crops it,
and writes simplified levels of detail alongside it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if g.quiet {
				monitoring.SetLogger(nil)
				return
			}
			monitoring.SetLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags).Printf)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "pipeline config JSON (defaults apply to unset keys)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database recording runs; empty disables recording")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress diagnostic logging")

	root.AddCommand(
		newRunCmd(g),
		newLodCmd(g),
		newInfoCmd(),
		newRunsCmd(g),
		newMigrateCmd(g),
		newVersionCmd(),
	)
	return root
}

// openDB opens and migrates the run database named by --db. It returns nil
// when recording is disabled.
func (g *globalFlags) openDB() (*db.DB, error) {
	if g.dbPath == "" {
		return nil, nil
	}
	d, err := db.OpenAndMigrate(g.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run database %s: %w", g.dbPath, err)
	}
	return d, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
