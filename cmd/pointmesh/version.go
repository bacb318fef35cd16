package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pointmesh %s (commit %s, built %s)\n",
				version.Version, version.GitSHA, version.BuildTime)
		},
	}
}
