package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pointmesh/internal/timeutil"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the reconstruction pipeline.
type Run struct {
	RunID         string          `json:"run_id"`
	InputPath     string          `json:"input_path"`
	ConfigJSON    json.RawMessage `json:"config_json,omitempty"`
	Status        RunStatus       `json:"status"`
	FailedStage   string          `json:"failed_stage,omitempty"`
	Error         string          `json:"error,omitempty"`
	PointCount    int             `json:"point_count"`
	OrientedCount int             `json:"oriented_count"`
	BaseVertices  int             `json:"base_vertices"`
	BaseTriangles int             `json:"base_triangles"`
	StageTimings  []timeutil.Lap  `json:"stage_timings,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at,omitzero"`
}

// LodLevel is one simplified mesh produced by a run.
type LodLevel struct {
	LodID     string  `json:"lod_id"`
	RunID     string  `json:"run_id"`
	Target    int     `json:"target"`
	Triangles int     `json:"triangles"`
	Vertices  int     `json:"vertices"`
	Collapses int     `json:"collapses"`
	Rejected  int     `json:"rejected"`
	MaxError  float64 `json:"max_error"`
	Reached   bool    `json:"reached"`
	Path      string  `json:"path,omitempty"`
}

// RunStore records pipeline runs and their LoD levels.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore over db. A nil clock uses RealClock.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db.DB, clock: clock}
}

// Start inserts a new run in the running state and returns it.
func (s *RunStore) Start(inputPath string, configJSON json.RawMessage) (*Run, error) {
	run := &Run{
		RunID:      uuid.New().String(),
		InputPath:  inputPath,
		ConfigJSON: configJSON,
		Status:     RunRunning,
		StartedAt:  s.clock.Now(),
	}
	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (run_id, input_path, config_json, status, started_at)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, run.InputPath, cfg, string(run.Status), run.StartedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Complete marks run as succeeded, stores its counters and timings, and
// inserts its LoD levels, all in one transaction. LodID and RunID are filled
// in on the passed levels.
func (s *RunStore) Complete(run *Run, lods []LodLevel) error {
	timings, err := json.Marshal(run.StageTimings)
	if err != nil {
		return fmt.Errorf("encode stage timings: %w", err)
	}
	run.Status = RunSucceeded
	run.FinishedAt = s.clock.Now()
	for i := range lods {
		if lods[i].LodID == "" {
			lods[i].LodID = uuid.New().String()
		}
		lods[i].RunID = run.RunID
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.Exec(`
			UPDATE runs SET status = ?, point_count = ?, oriented_count = ?,
				base_vertices = ?, base_triangles = ?, stage_timings_json = ?, finished_at = ?
			WHERE run_id = ?`,
			string(run.Status), run.PointCount, run.OrientedCount,
			run.BaseVertices, run.BaseTriangles, string(timings), run.FinishedAt.UnixNano(),
			run.RunID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
		}
		for _, l := range lods {
			_, err := tx.Exec(`
				INSERT INTO lod_levels (lod_id, run_id, target, triangles, vertices,
					collapses, rejected, max_error, reached, path)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				l.LodID, l.RunID, l.Target, l.Triangles, l.Vertices,
				l.Collapses, l.Rejected, l.MaxError, l.Reached, l.Path,
			)
			if err != nil {
				return fmt.Errorf("insert lod %d: %w", l.Target, err)
			}
		}
		return tx.Commit()
	})
}

// Fail marks a run as failed at stage with cause.
func (s *RunStore) Fail(runID, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	finished := s.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE runs SET status = ?, failed_stage = ?, error = ?, finished_at = ?
			WHERE run_id = ?`,
			string(RunFailed), stage, msg, finished, runID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

const runColumns = `run_id, input_path, config_json, status, failed_stage, error,
	point_count, oriented_count, base_vertices, base_triangles,
	stage_timings_json, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                        Run
		cfg, stage, msg, timings sql.NullString
		status                   string
		startedAt                int64
		finishedAt               sql.NullInt64
	)
	err := row.Scan(&r.RunID, &r.InputPath, &cfg, &status, &stage, &msg,
		&r.PointCount, &r.OrientedCount, &r.BaseVertices, &r.BaseTriangles,
		&timings, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.FailedStage = stage.String
	r.Error = msg.String
	if timings.Valid && timings.String != "" && timings.String != "null" {
		if err := json.Unmarshal([]byte(timings.String), &r.StageTimings); err != nil {
			return nil, fmt.Errorf("decode stage timings for %s: %w", r.RunID, err)
		}
	}
	r.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		r.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	return &r, nil
}

// Get returns the run with runID or ErrRunNotFound.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, most recent first. limit <= 0 returns all.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Lods returns the LoD levels of a run ordered by descending target.
func (s *RunStore) Lods(runID string) ([]LodLevel, error) {
	rows, err := s.db.Query(`
		SELECT lod_id, run_id, target, triangles, vertices, collapses, rejected,
			max_error, reached, path
		FROM lod_levels WHERE run_id = ? ORDER BY target DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list lods: %w", err)
	}
	defer rows.Close()

	var lods []LodLevel
	for rows.Next() {
		var (
			l    LodLevel
			path sql.NullString
		)
		if err := rows.Scan(&l.LodID, &l.RunID, &l.Target, &l.Triangles, &l.Vertices,
			&l.Collapses, &l.Rejected, &l.MaxError, &l.Reached, &path); err != nil {
			return nil, fmt.Errorf("scan lod: %w", err)
		}
		l.Path = path.String
		lods = append(lods, l)
	}
	return lods, rows.Err()
}
