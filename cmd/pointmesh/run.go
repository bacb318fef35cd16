package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/config"
	"github.com/banshee-data/pointmesh/internal/db"
	"github.com/banshee-data/pointmesh/internal/pipeline"
)

type outputFlags struct {
	outDir   string
	name     string
	stl      bool
	noReport bool
	targets  []int
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.outDir, "out", "o", "out", "parent directory for run outputs")
	cmd.Flags().StringVar(&o.name, "name", "", "output directory name (default: input file name)")
	cmd.Flags().BoolVar(&o.stl, "stl", false, "also write binary STL copies of every mesh")
	cmd.Flags().BoolVar(&o.noReport, "no-report", false, "skip the PNG and HTML LoD reports")
	cmd.Flags().IntSliceVar(&o.targets, "targets", nil, "LoD triangle targets, overriding the config")
}

func (o *outputFlags) persist() pipeline.PersistOptions {
	return pipeline.PersistOptions{WriteSTL: o.stl, Report: !o.noReport}
}

// loadOptions reads --config, if set, and applies command-line overrides.
// It also returns the effective config as JSON for the run record.
func loadOptions(g *globalFlags, o *outputFlags, cmd *cobra.Command) (pipeline.Options, json.RawMessage, error) {
	cfg := config.EmptyPipelineConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(g.configPath); err != nil {
			return pipeline.Options{}, nil, err
		}
	}
	if cmd.Flags().Changed("targets") {
		cfg.LodTargets = o.targets
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return pipeline.Options{}, nil, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return pipeline.Options{}, nil, fmt.Errorf("encode config: %w", err)
	}
	return opts, raw, nil
}

func newRunCmd(g *globalFlags) *cobra.Command {
	o := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "run <cloud>",
		Short: "Reconstruct a mesh and its levels of detail from a point cloud",
		Long: `Reads an XYZ, PCD or PLY point cloud, estimates oriented normals, solves
for the implicit surface, cleans and crops it to the input bounds, and writes
base.ply plus lod_<target>.ply into <out>/<name>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, raw, err := loadOptions(g, o, cmd)
			if err != nil {
				return err
			}
			d, err := g.openDB()
			if err != nil {
				return err
			}
			req := pipeline.Request{
				Input:      args[0],
				OutDir:     o.outDir,
				Name:       o.name,
				Options:    opts,
				Persist:    o.persist(),
				ConfigJSON: raw,
			}
			if d != nil {
				defer d.Close()
				req.Store = db.NewRunStore(d, nil)
			}

			out, err := pipeline.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	o.register(cmd)
	return cmd
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	res := out.Result
	if out.Run != nil {
		fmt.Fprintf(w, "Run: %s\n", out.Run.RunID)
	}
	if res.InputPoints > 0 {
		fmt.Fprintf(w, "Points: %d (%d oriented)\n", res.InputPoints, res.Oriented)
	}
	fmt.Fprintf(w, "Base mesh: %d vertices, %d triangles (%d before cleanup, %d cropped)\n",
		res.Base.VertexCount(), res.Base.TriangleCount(), res.RawTriangles, res.CropRemoved)
	fmt.Fprintf(w, "  %s\n", out.Artifacts.BasePath)
	for _, target := range res.Targets() {
		st := res.LoDStats[target]
		reached := ""
		if !st.Reached {
			reached = " (target not reached)"
		}
		fmt.Fprintf(w, "LoD %d: %d triangles, max error %.3g%s\n  %s\n",
			target, st.Triangles, st.MaxError, reached, out.Artifacts.LodPaths[target])
	}
	for _, p := range out.Artifacts.Reports {
		fmt.Fprintf(w, "Report: %s\n", p)
	}
	for _, lap := range res.StageTimings {
		fmt.Fprintf(w, "  %-12s %v\n", lap.Name, lap.Duration.Round(time.Millisecond))
	}
}
