package edie

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/trajectory"
	"github.com/banshee-data/flow.report/internal/units"
)

type options struct {
	workers int
	class   string
}

// Option configures Aggregate.
type Option func(*options)

// WithWorkers bounds the number of rows evaluated concurrently. n <= 0
// uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithClass restricts aggregation to one vehicle class. The grid's time
// range is taken from the filtered vehicles.
func WithClass(class string) Option {
	return func(o *options) { o.class = class }
}

// Aggregate computes density, flow and speed for every cell of the
// space-time grid spanned by set.
func Aggregate(ctx context.Context, set *trajectory.Set, p Params, opts ...Option) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	o := options{class: trajectory.ClassAll}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	if set == nil {
		return nil, fmt.Errorf("%w: no trajectories", ErrInsufficientData)
	}
	set = set.Filter(o.class)

	tMin, tMax, ok := timeRange(set)
	if !ok {
		return nil, fmt.Errorf("%w: no samples for class %q", ErrInsufficientData, o.class)
	}

	g := newGrid(p, tMin, tMax)
	if len(g.tStarts) == 0 {
		return nil, fmt.Errorf("%w: time range [%g, %g] yields no bins", ErrInsufficientData, tMin, tMax)
	}
	if len(g.xStarts) == 0 {
		return nil, fmt.Errorf("%w: corridor yields no space bins", ErrInvalidConfiguration)
	}

	start := time.Now()
	idx := buildIndex(set, p.Length)

	rows, cols := len(g.tStarts), len(g.xStarts)
	res := newResult(p, o.class, set.Len(), g)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for i := 0; i < rows; i++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := 0; j < cols; j++ {
				res.set(i, j, computeCell(idx, g, i, j))
			}
			monitoring.CellsComputed.Add(float64(cols))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	monitoring.AggregationDuration.Observe(elapsed.Seconds())
	monitoring.Logf("edie: %d vehicles (class %q), %dx%d cells, dx=%g dt=%g, %v",
		set.Len(), classLabel(o.class), rows, cols, p.DX, p.DT, elapsed)
	return res, nil
}

// timeRange returns the earliest and latest sample time in set.
func timeRange(set *trajectory.Set) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, t := range set.Trajectories() {
		if len(t.Samples) == 0 {
			continue
		}
		lo = math.Min(lo, t.Samples[0].Time)
		hi = math.Max(hi, t.Samples[len(t.Samples)-1].Time)
		ok = true
	}
	return lo, hi, ok
}

func classLabel(class string) string {
	if class == trajectory.ClassAll {
		return "all"
	}
	return class
}

func newResult(p Params, class string, vehicles int, g grid) *Result {
	rows, cols := len(g.tStarts), len(g.xStarts)
	return &Result{
		Params:      p,
		Class:       classLabel(class),
		Vehicles:    vehicles,
		TimeStarts:  g.tStarts,
		SpaceStarts: g.xStarts,
		Density:     mat.NewDense(rows, cols, nil),
		Flow:        mat.NewDense(rows, cols, nil),
		Speed:       mat.NewDense(rows, cols, nil),
		TimeSpent:   mat.NewDense(rows, cols, nil),
		Distance:    mat.NewDense(rows, cols, nil),
		Crossings:   mat.NewDense(rows, cols, nil),
	}
}

// set stores the totals of cell (i, j) and derives its macroscopic values.
// Distinct cells touch distinct matrix elements.
func (r *Result) set(i, j int, c cellTotals) {
	r.TimeSpent.Set(i, j, c.timeSpent)
	r.Distance.Set(i, j, c.distance)
	r.Crossings.Set(i, j, float64(c.crossings))

	r.Density.Set(i, j, units.DensityPerKm(c.timeSpent/(r.Params.DX*r.Params.DT)))
	r.Flow.Set(i, j, units.FlowPerHour(float64(c.crossings)/r.Params.DT))
	if c.timeSpent > 0 {
		r.Speed.Set(i, j, units.SpeedKmh(c.distance/c.timeSpent))
	}
}
