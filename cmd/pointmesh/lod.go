package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/db"
	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/meshio"
	"github.com/banshee-data/pointmesh/internal/pipeline"
)

func newLodCmd(g *globalFlags) *cobra.Command {
	o := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "lod <mesh>",
		Short: "Generate levels of detail for an existing PLY or STL mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, raw, err := loadOptions(g, o, cmd)
			if err != nil {
				return err
			}
			d, err := g.openDB()
			if err != nil {
				return err
			}
			var store *db.RunStore
			var run *db.Run
			if d != nil {
				defer d.Close()
				store = db.NewRunStore(d, nil)
				if run, err = store.Start(args[0], raw); err != nil {
					return err
				}
			}
			fail := func(err error) error {
				if run != nil {
					_ = store.Fail(run.RunID, string(pipeline.FailedStage(err)), err)
				}
				return err
			}

			mesh, err := meshio.ReadMesh(args[0])
			if err != nil {
				return fail(&pipeline.StageError{Stage: pipeline.StageRead, Err: err})
			}
			res, err := pipeline.RunLoD(cmd.Context(), mesh, opts)
			if err != nil {
				return fail(err)
			}

			name := o.name
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base)) + "_lod"
			}
			fsys := fsutil.OSFileSystem{}
			dir, err := pipeline.OutputDir(fsys, o.outDir, name, args[0])
			if err != nil {
				return fail(&pipeline.StageError{Stage: pipeline.StagePersist, Err: err})
			}
			persist := o.persist()
			persist.Title = filepath.Base(args[0])
			art, err := pipeline.Persist(fsys, dir, res, persist)
			if err != nil {
				return fail(err)
			}

			out := &pipeline.Outcome{Run: run, Result: res, Artifacts: art}
			if run != nil {
				run.BaseVertices = res.Base.VertexCount()
				run.BaseTriangles = res.Base.TriangleCount()
				run.StageTimings = res.StageTimings
				if err := store.Complete(run, pipeline.LodLevels(res, art)); err != nil {
					return err
				}
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	o.register(cmd)
	return cmd
}
