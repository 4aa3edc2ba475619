package edie

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/flow.report/internal/testutil"
	"github.com/banshee-data/flow.report/internal/trajectory"
)

// singleLap is one vehicle entering at x=0, t=0 and driving at 10 m/s,
// sampled every 0.1 s for t in [0, 100).
func singleLap() *trajectory.Set {
	return testutil.NewSet(testutil.Uniform("veh0", "regular", 1000, 0, 0.1, 0, 1))
}

func TestAggregate_SingleVehicleScenario(t *testing.T) {
	res, err := Aggregate(context.Background(), singleLap(), Params{DX: 100, DT: 100, Length: 1000})
	require.NoError(t, err)

	rows, cols := res.Dims()
	require.Equal(t, 1, rows)
	require.Equal(t, 10, cols)
	assert.Equal(t, []float64{0}, res.TimeStarts)
	assert.Equal(t, []float64{0, 100, 200, 300, 400, 500, 600, 700, 800, 900}, res.SpaceStarts)

	for j := 0; j < cols; j++ {
		// The last sample in each bin is 0.1 s short of its exit.
		assert.InDelta(t, 9.9, res.TimeSpent.At(0, j), 1e-9, "time spent, bin %d", j)
		assert.InDelta(t, 99, res.Distance.At(0, j), 1e-9, "distance, bin %d", j)
		assert.Equal(t, 1.0, res.Crossings.At(0, j), "crossings, bin %d", j)

		assert.InDelta(t, 1.0, res.Density.At(0, j), 0.011, "density, bin %d", j)
		assert.InDelta(t, 36, res.Speed.At(0, j), 1e-9, "speed, bin %d", j)
		assert.InDelta(t, 36, res.Flow.At(0, j), 1e-9, "flow, bin %d", j)
	}
}

func TestAggregate_IntegerSampling(t *testing.T) {
	set := testutil.NewSet(testutil.Uniform("veh0", "regular", 100, 0, 1, 0, 10))

	res, err := Aggregate(context.Background(), set, Params{DX: 100, DT: 100, Length: 1000})
	require.NoError(t, err)

	_, cols := res.Dims()
	for j := 0; j < cols; j++ {
		assert.Equal(t, 9.0, res.TimeSpent.At(0, j))
		assert.Equal(t, 90.0, res.Distance.At(0, j))
		assert.InDelta(t, 0.9, res.Density.At(0, j), 1e-12)
		assert.InDelta(t, 36, res.Speed.At(0, j), 1e-12)
		assert.InDelta(t, 36, res.Flow.At(0, j), 1e-12)
	}
}

func TestAggregate_RewrapAtLapBoundary(t *testing.T) {
	// The sample at t=100 sits at x=1000, which wraps back into the first
	// bin; the first bin's window then spans the whole lap.
	set := testutil.NewSet(testutil.Uniform("veh0", "regular", 101, 0, 1, 0, 10))

	res, err := Aggregate(context.Background(), set, Params{DX: 100, DT: 100, Length: 1000})
	require.NoError(t, err)

	rows, _ := res.Dims()
	require.Equal(t, 1, rows)
	assert.Equal(t, 100.0, res.TimeSpent.At(0, 0))
	assert.Equal(t, 0.0, res.Distance.At(0, 0))
	assert.Equal(t, 0.0, res.Speed.At(0, 0))
	assert.Equal(t, 9.0, res.TimeSpent.At(0, 1))
}

func TestAggregate_EmptyCellsAreZero(t *testing.T) {
	slow := testutil.Uniform("slow", "regular", 21, 0, 1, 0, 1)
	lone := &trajectory.Trajectory{VehicleID: "lone", Class: trajectory.ClassRegular,
		Samples: []trajectory.Sample{{Time: 5, Position: 505, Speed: 3}}}

	res, err := Aggregate(context.Background(), testutil.NewSet(slow, lone), Params{DX: 10, DT: 10, Length: 1000})
	require.NoError(t, err)

	rows, cols := res.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 100, cols)

	for _, q := range Quantities {
		m := res.Matrix(q)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				v := m.At(i, j)
				require.False(t, math.IsNaN(v), "%s(%d,%d) is NaN", q, i, j)
				if j >= 3 {
					require.Zero(t, v, "%s(%d,%d)", q, i, j)
				}
			}
		}
	}

	// A vehicle with a single sample in its window contributes nothing.
	assert.Zero(t, res.Crossings.At(0, 50))
	assert.Zero(t, res.TimeSpent.At(0, 50))
}

func TestAggregate_EdieTimeIdentity(t *testing.T) {
	const dt = 50.0
	res, err := Aggregate(context.Background(), singleLap(), Params{DX: 100, DT: dt, Length: 1000})
	require.NoError(t, err)

	rows, _ := res.Dims()
	require.Equal(t, 2, rows)
	for i := 0; i < rows; i++ {
		sum := mat.Sum(res.TimeSpent.RowView(i))
		assert.InDelta(t, dt, sum, 1, "time spent across row %d", i)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	set := testutil.Ring(7, 1000, 13.7, 0.3, 400)
	p := Params{DX: 25, DT: 15, Length: 1000}

	first, err := Aggregate(context.Background(), set, p, WithWorkers(1))
	require.NoError(t, err)
	second, err := Aggregate(context.Background(), set, p, WithWorkers(8))
	require.NoError(t, err)
	third, err := Aggregate(context.Background(), set, p)
	require.NoError(t, err)

	for _, q := range Quantities {
		assert.True(t, mat.Equal(first.Matrix(q), second.Matrix(q)), "%s differs between worker counts", q)
		assert.True(t, mat.Equal(first.Matrix(q), third.Matrix(q)), "%s differs between runs", q)
	}
}

func TestComputeCell_OrderIndependent(t *testing.T) {
	set := testutil.Ring(5, 1000, 11.3, 0.5, 300)
	p := Params{DX: 50, DT: 20, Length: 1000}

	want, err := Aggregate(context.Background(), set, p, WithWorkers(1))
	require.NoError(t, err)

	tMin, tMax, ok := timeRange(set)
	require.True(t, ok)
	g := newGrid(p, tMin, tMax)
	idx := buildIndex(set, p.Length)
	got := newResult(p, trajectory.ClassAll, set.Len(), g)

	rows, cols := len(g.tStarts), len(g.xStarts)
	rng := rand.New(rand.NewPCG(1, 2))
	for _, k := range rng.Perm(rows * cols) {
		i, j := k/cols, k%cols
		got.set(i, j, computeCell(idx, g, i, j))
	}

	for _, q := range Quantities {
		assert.True(t, mat.Equal(want.Matrix(q), got.Matrix(q)), "%s depends on cell order", q)
	}
	assert.True(t, mat.Equal(want.Crossings, got.Crossings))
}

func TestAggregate_WithClass(t *testing.T) {
	set := testutil.NewSet(
		testutil.Uniform("r", "regular", 50, 0, 1, 0, 10),
		testutil.Uniform("s", "stable_av", 50, 100, 1, 0, 10),
	)

	res, err := Aggregate(context.Background(), set, Params{DX: 100, DT: 10, Length: 1000}, WithClass(trajectory.ClassStable))
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.TimeStarts[0])
	assert.Equal(t, 1, res.Vehicles)
	assert.Equal(t, trajectory.ClassStable, res.Class)

	all, err := Aggregate(context.Background(), set, Params{DX: 100, DT: 10, Length: 1000})
	require.NoError(t, err)
	assert.Equal(t, 0.0, all.TimeStarts[0])
	assert.Equal(t, 2, all.Vehicles)
}

func TestAggregate_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"zero dx", Params{DX: 0, DT: 10, Length: 1000}},
		{"negative dt", Params{DX: 10, DT: -1, Length: 1000}},
		{"zero length", Params{DX: 10, DT: 10, Length: 0}},
		{"nan dx", Params{DX: math.NaN(), DT: 10, Length: 1000}},
		{"infinite dt", Params{DX: 10, DT: math.Inf(1), Length: 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Aggregate(context.Background(), singleLap(), tt.p)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestAggregate_InsufficientData(t *testing.T) {
	p := Params{DX: 10, DT: 10, Length: 1000}
	instant := &trajectory.Trajectory{VehicleID: "a", Samples: []trajectory.Sample{{Time: 5, Position: 1}}}

	tests := []struct {
		name string
		set  *trajectory.Set
		opts []Option
	}{
		{"nil set", nil, nil},
		{"empty set", trajectory.NewSet(), nil},
		{"single instant", testutil.NewSet(instant), nil},
		{"class with no vehicles", singleLap(), []Option{WithClass(trajectory.ClassStable)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Aggregate(context.Background(), tt.set, p, tt.opts...)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Aggregate(ctx, singleLap(), Params{DX: 10, DT: 10, Length: 1000})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}
