package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/flow.report/internal/edie"
)

// ErrNotFound is returned when a run or fit does not exist.
var ErrNotFound = errors.New("db: not found")

// Run describes one stored aggregation.
type Run struct {
	ID        string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source"`
	Class     string        `json:"vehicle_class"`
	DX        float64       `json:"dx"`
	DT        float64       `json:"dt"`
	Length    float64       `json:"corridor_length"`
	TMin      float64       `json:"t_min"`
	TimeBins  int           `json:"time_bins"`
	SpaceBins int           `json:"space_bins"`
	Vehicles  int           `json:"vehicles"`
	Duration  time.Duration `json:"duration_ns"`
}

// Cell is one stored grid cell.
type Cell struct {
	TimeIndex  int     `json:"t_idx"`
	SpaceIndex int     `json:"x_idx"`
	TimeStart  float64 `json:"t_start"`
	SpaceStart float64 `json:"x_start"`
	TimeSpent  float64 `json:"time_spent"`
	Distance   float64 `json:"distance"`
	Crossings  float64 `json:"crossings"`
	Density    float64 `json:"density"`
	Flow       float64 `json:"flow"`
	Speed      float64 `json:"speed"`
}

// SaveRun stores res under a new run id and returns the stored run.
// source names the input the result was computed from; duration is the
// wall time the aggregation took.
func (db *DB) SaveRun(ctx context.Context, source string, res *edie.Result, duration time.Duration) (*Run, error) {
	rows, cols := res.Dims()
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: db.clock.Now().UTC(),
		Source:    source,
		Class:     res.Class,
		DX:        res.Params.DX,
		DT:        res.Params.DT,
		Length:    res.Params.Length,
		TimeBins:  rows,
		SpaceBins: cols,
		Vehicles:  res.Vehicles,
		Duration:  duration,
	}
	if rows > 0 {
		run.TMin = res.TimeStarts[0]
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			run_id, created_unix_nanos, source, vehicle_class, dx, dt,
			corridor_length, t_min, time_bins, space_bins, vehicles, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Source, run.Class, run.DX, run.DT,
		run.Length, run.TMin, run.TimeBins, run.SpaceBins, run.Vehicles,
		float64(run.Duration)/float64(time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analysis_cells (
			run_id, t_idx, x_idx, t_start, x_start, time_spent, distance,
			crossings, density, flow, speed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			_, err := stmt.ExecContext(ctx,
				run.ID, i, j, res.TimeStarts[i], res.SpaceStarts[j],
				res.TimeSpent.At(i, j), res.Distance.At(i, j), res.Crossings.At(i, j),
				res.Density.At(i, j), res.Flow.At(i, j), res.Speed.At(i, j),
			)
			if err != nil {
				return nil, fmt.Errorf("insert cell (%d, %d): %w", i, j, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

const runColumns = `run_id, created_unix_nanos, source, vehicle_class, dx, dt,
	corridor_length, t_min, time_bins, space_bins, vehicles, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r          Run
		created    int64
		durationMS float64
	)
	err := s.Scan(&r.ID, &created, &r.Source, &r.Class, &r.DX, &r.DT,
		&r.Length, &r.TMin, &r.TimeBins, &r.SpaceBins, &r.Vehicles, &durationMS)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Duration = time.Duration(durationMS * float64(time.Millisecond))
	return &r, nil
}

// Run returns the run with the given id.
func (db *DB) Run(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY created_unix_nanos DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Cells returns the cells of run id in row-major order.
func (db *DB) Cells(ctx context.Context, id string) ([]Cell, error) {
	if _, err := db.Run(ctx, id); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT t_idx, x_idx, t_start, x_start, time_spent, distance,
		       crossings, density, flow, speed
		FROM analysis_cells
		WHERE run_id = ?
		ORDER BY t_idx, x_idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := []Cell{}
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.TimeIndex, &c.SpaceIndex, &c.TimeStart, &c.SpaceStart,
			&c.TimeSpent, &c.Distance, &c.Crossings, &c.Density, &c.Flow, &c.Speed); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// LoadResult rebuilds the aggregated grid of run id.
func (db *DB) LoadResult(ctx context.Context, id string) (*edie.Result, error) {
	run, err := db.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	cells, err := db.Cells(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(cells) != run.TimeBins*run.SpaceBins {
		return nil, fmt.Errorf("run %s: have %d cells, want %d", id, len(cells), run.TimeBins*run.SpaceBins)
	}

	res := &edie.Result{
		Params:      edie.Params{DX: run.DX, DT: run.DT, Length: run.Length},
		Class:       run.Class,
		Vehicles:    run.Vehicles,
		TimeStarts:  make([]float64, run.TimeBins),
		SpaceStarts: make([]float64, run.SpaceBins),
	}
	if len(cells) == 0 {
		return res, nil
	}
	res.Density = mat.NewDense(run.TimeBins, run.SpaceBins, nil)
	res.Flow = mat.NewDense(run.TimeBins, run.SpaceBins, nil)
	res.Speed = mat.NewDense(run.TimeBins, run.SpaceBins, nil)
	res.TimeSpent = mat.NewDense(run.TimeBins, run.SpaceBins, nil)
	res.Distance = mat.NewDense(run.TimeBins, run.SpaceBins, nil)
	res.Crossings = mat.NewDense(run.TimeBins, run.SpaceBins, nil)

	for _, c := range cells {
		i, j := c.TimeIndex, c.SpaceIndex
		if i < 0 || i >= run.TimeBins || j < 0 || j >= run.SpaceBins {
			return nil, fmt.Errorf("run %s: cell (%d, %d) out of range", id, i, j)
		}
		res.TimeStarts[i] = c.TimeStart
		res.SpaceStarts[j] = c.SpaceStart
		res.Density.Set(i, j, c.Density)
		res.Flow.Set(i, j, c.Flow)
		res.Speed.Set(i, j, c.Speed)
		res.TimeSpent.Set(i, j, c.TimeSpent)
		res.Distance.Set(i, j, c.Distance)
		res.Crossings.Set(i, j, c.Crossings)
	}
	return res, nil
}
