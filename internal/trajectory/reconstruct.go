package trajectory

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/flow.report/internal/fcd"
	"github.com/banshee-data/flow.report/internal/monitoring"
)

// ErrNonMonotonicTime is returned when a vehicle is observed at a time that
// is not strictly after its previous observation.
var ErrNonMonotonicTime = errors.New("trajectory: observation time not increasing")

// SegmentOffsets maps a segment (lane) id to the corridor coordinate of its
// start. Segments absent from the table start at 0.
type SegmentOffsets map[string]float64

// Offset returns the corridor offset of segment.
func (o SegmentOffsets) Offset(segment string) float64 {
	return o[segment]
}

// Source yields timestep groups in non-decreasing time order and io.EOF
// once exhausted. *fcd.Reader implements it.
type Source interface {
	Next() (fcd.Timestep, error)
}

// fold is the per-vehicle reconstruction state. It lives only while the
// stream is being consumed.
type fold struct {
	lastPosition float64
	lastTime     float64
	lapOffset    float64
	traj         *Trajectory
}

// Reconstructor folds observations into continuous trajectories.
type Reconstructor struct {
	offsets SegmentOffsets
	length  float64
	folds   map[string]*fold
	order   []string
	wraps   int
}

// NewReconstructor returns a Reconstructor for a corridor of total length
// metres built from the given segment offsets.
func NewReconstructor(offsets SegmentOffsets, length float64) (*Reconstructor, error) {
	if length <= 0 {
		return nil, fmt.Errorf("trajectory: corridor length must be positive, got %g", length)
	}
	if offsets == nil {
		offsets = SegmentOffsets{}
	}
	return &Reconstructor{
		offsets: offsets,
		length:  length,
		folds:   make(map[string]*fold),
	}, nil
}

// Observe appends one observation made at time t.
func (r *Reconstructor) Observe(t float64, obs fcd.Observation) error {
	pos := obs.Pos + r.offsets.Offset(obs.Lane)

	f, seen := r.folds[obs.ID]
	if !seen {
		f = &fold{traj: &Trajectory{
			VehicleID: obs.ID,
			Type:      obs.Type,
			Class:     ClassOf(obs.Type),
		}}
		r.folds[obs.ID] = f
		r.order = append(r.order, obs.ID)
	} else {
		if t <= f.lastTime {
			return fmt.Errorf("vehicle %q at t=%g after t=%g: %w", obs.ID, t, f.lastTime, ErrNonMonotonicTime)
		}
		if pos < f.lastPosition-r.length/2 {
			f.lapOffset += r.length
			f.traj.Laps++
			r.wraps++
		}
	}

	f.lastPosition = pos
	f.lastTime = t
	f.traj.Samples = append(f.traj.Samples, Sample{
		Time:     t,
		Position: pos + f.lapOffset,
		Speed:    obs.Speed,
		Segment:  obs.Lane,
	})
	return nil
}

// ObserveTimestep appends every vehicle of one timestep group.
func (r *Reconstructor) ObserveTimestep(ts fcd.Timestep) error {
	for _, obs := range ts.Vehicles {
		if err := r.Observe(ts.Time, obs); err != nil {
			return err
		}
	}
	return nil
}

// Finish freezes the trajectories and discards the fold state. The
// Reconstructor must not be used afterwards.
func (r *Reconstructor) Finish() *Set {
	set := NewSet()
	for _, id := range r.order {
		set.Add(r.folds[id].traj)
	}
	monitoring.LapWraps.Add(float64(r.wraps))
	monitoring.VehiclesReconstructed.Add(float64(len(r.order)))
	r.folds = nil
	r.order = nil
	return set
}

// Reconstruct drains src and returns the trajectory table. An empty stream
// yields an empty Set. On error no partial table is returned.
func Reconstruct(src Source, offsets SegmentOffsets, length float64) (*Set, error) {
	r, err := NewReconstructor(offsets, length)
	if err != nil {
		return nil, err
	}

	for {
		ts, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.ObserveTimestep(ts); err != nil {
			return nil, err
		}
	}

	set := r.Finish()
	st := set.Stats()
	monitoring.Logf("reconstructed %d vehicles, %d samples, %d lap wraps, t=[%g, %g]",
		st.Vehicles, st.Samples, st.Laps, st.TimeMin, st.TimeMax)
	return set, nil
}
