package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/db"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one run with its LoD levels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.dbPath == "" {
				return errors.New("runs needs --db")
			}
			d, err := g.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			store := db.NewRunStore(d, nil)
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := store.List(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(w, runs)
				}
				printRuns(w, runs)
				return nil
			}

			run, err := store.Get(args[0])
			if err != nil {
				return err
			}
			lods, err := store.Lods(run.RunID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(w, struct {
					*db.Run
					Lods []db.LodLevel `json:"lods"`
				}{run, lods})
			}
			printRun(w, run, lods)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []*db.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tPOINTS\tTRIANGLES\tINPUT")
	for _, r := range runs {
		status := string(r.Status)
		if r.FailedStage != "" {
			status += " (" + r.FailedStage + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Format(time.RFC3339), status, r.PointCount, r.BaseTriangles, r.InputPath)
	}
	tw.Flush()
}

func printRun(w io.Writer, r *db.Run, lods []db.LodLevel) {
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Input: %s\n", r.InputPath)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.FailedStage != "" {
		fmt.Fprintf(w, "Failed stage: %s\n", r.FailedStage)
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "Started: %s\n", r.StartedAt.Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished: %s (%v)\n", r.FinishedAt.Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Points: %d (%d oriented)\n", r.PointCount, r.OrientedCount)
	fmt.Fprintf(w, "Base mesh: %d vertices, %d triangles\n", r.BaseVertices, r.BaseTriangles)
	for _, lap := range r.StageTimings {
		fmt.Fprintf(w, "  %-12s %v\n", lap.Name, lap.Duration.Round(time.Millisecond))
	}
	if len(lods) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tTRIANGLES\tVERTICES\tCOLLAPSES\tMAX ERROR\tREACHED\tPATH")
	for _, l := range lods {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.3g\t%v\t%s\n",
			l.Target, l.Triangles, l.Vertices, l.Collapses, l.MaxError, l.Reached, l.Path)
	}
	tw.Flush()
}
