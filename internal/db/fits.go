package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/flow.report/internal/fundamental"
)

// Fit is a stored Greenshields model. RunID is empty for fits made from
// detector output rather than a stored run.
type Fit struct {
	ID              int64     `json:"fit_id"`
	RunID           string    `json:"run_id,omitempty"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
	Observations    int       `json:"observations"`
	FreeFlowSpeed   float64   `json:"free_flow_speed"`
	JamDensity      float64   `json:"jam_density"`
	Fitted          bool      `json:"fitted"`
	Capacity        float64   `json:"capacity"`
	CriticalDensity float64   `json:"critical_density"`
	CriticalSpeed   float64   `json:"critical_speed"`
}

// Model returns the Greenshields model described by f.
func (f Fit) Model() fundamental.Model {
	return fundamental.Model{
		FreeFlowSpeed: f.FreeFlowSpeed,
		JamDensity:    f.JamDensity,
		Fitted:        f.Fitted,
	}
}

// SaveFit stores model m fitted on n observations from source. runID may
// be empty.
func (db *DB) SaveFit(ctx context.Context, runID, source string, n int, m fundamental.Model, c fundamental.Curves) (*Fit, error) {
	f := &Fit{
		RunID:           runID,
		Source:          source,
		CreatedAt:       db.clock.Now().UTC(),
		Observations:    n,
		FreeFlowSpeed:   m.FreeFlowSpeed,
		JamDensity:      m.JamDensity,
		Fitted:          m.Fitted,
		Capacity:        c.QMax,
		CriticalDensity: c.KCap,
		CriticalSpeed:   c.UCap,
	}
	var run sql.NullString
	if runID != "" {
		run = sql.NullString{String: runID, Valid: true}
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO fundamental_fits (
			run_id, source, created_unix_nanos, observations, free_flow_speed,
			jam_density, fitted, capacity, critical_density, critical_speed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run, f.Source, f.CreatedAt.UnixNano(), f.Observations, f.FreeFlowSpeed,
		f.JamDensity, f.Fitted, f.Capacity, f.CriticalDensity, f.CriticalSpeed,
	)
	if err != nil {
		return nil, fmt.Errorf("insert fit: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return f, nil
}

// Fits returns the fits stored for runID in insertion order. An empty
// runID selects the fits that belong to no run.
func (db *DB) Fits(ctx context.Context, runID string) ([]Fit, error) {
	query := `
		SELECT fit_id, run_id, source, created_unix_nanos, observations,
		       free_flow_speed, jam_density, fitted, capacity,
		       critical_density, critical_speed
		FROM fundamental_fits`
	var args []any
	if runID == "" {
		query += ` WHERE run_id IS NULL`
	} else {
		if _, err := db.Run(ctx, runID); err != nil {
			return nil, err
		}
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY fit_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fits := []Fit{}
	for rows.Next() {
		var (
			f       Fit
			run     sql.NullString
			created int64
		)
		if err := rows.Scan(&f.ID, &run, &f.Source, &created, &f.Observations,
			&f.FreeFlowSpeed, &f.JamDensity, &f.Fitted, &f.Capacity,
			&f.CriticalDensity, &f.CriticalSpeed); err != nil {
			return nil, err
		}
		f.RunID = run.String
		f.CreatedAt = time.Unix(0, created).UTC()
		fits = append(fits, f)
	}
	return fits, rows.Err()
}
