// Package fundamental fits the Greenshields model to macroscopic traffic
// observations and derives the fundamental-diagram curves.
package fundamental

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fcd"
	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/units"
)

// ErrInsufficientData is returned when there are too few usable
// observations to fit a model.
var ErrInsufficientData = errors.New("fundamental: insufficient data")

// Observation is one measured state of traffic.
type Observation struct {
	Density float64 // veh/km
	Flow    float64 // veh/h
	Speed   float64 // km/h
}

// FromPoints converts occupied aggregation cells to observations.
func FromPoints(pts []edie.Point) []Observation {
	out := make([]Observation, len(pts))
	for i, p := range pts {
		out[i] = Observation{Density: p.Density, Flow: p.Flow, Speed: p.Speed}
	}
	return out
}

// FromIntervals converts detector intervals to observations.
func FromIntervals(ivs []fcd.Interval) []Observation {
	out := make([]Observation, len(ivs))
	for i, iv := range ivs {
		out[i] = Observation{
			Density: iv.Density,
			Flow:    iv.Flow,
			Speed:   units.SpeedKmh(iv.HarmonicMeanSpeed),
		}
	}
	return out
}

// Bounds limits the fitted jam density.
type Bounds struct {
	MinJam float64 // veh/km
	MaxJam float64 // veh/km
}

// DefaultBounds are the jam density limits for a single-lane ring road.
var DefaultBounds = Bounds{MinJam: 50, MaxJam: 200}

// Model is a Greenshields speed-density relation u = uf(1 - k/kj).
type Model struct {
	FreeFlowSpeed float64 // uf, km/h
	JamDensity    float64 // kj, veh/km
	// Fitted reports whether JamDensity came from the least-squares fit
	// rather than the initial estimate.
	Fitted bool
}

// Speed returns the model speed at density k.
func (m Model) Speed(k float64) float64 {
	return m.FreeFlowSpeed * (1 - k/m.JamDensity)
}

// Flow returns the model flow at density k.
func (m Model) Flow(k float64) float64 {
	return k * m.Speed(k)
}

// Fit estimates a Greenshields model. The free-flow speed is the highest
// speed observed below the 10th density percentile. The jam density starts
// at 110% of the highest observed density and is refined by least squares
// on the speed-density data when that estimate lies within b.
func Fit(obs []Observation, b Bounds) (Model, error) {
	if len(obs) < 2 {
		return Model{}, fmt.Errorf("%w: %d observations", ErrInsufficientData, len(obs))
	}
	if b.MinJam > b.MaxJam {
		return Model{}, fmt.Errorf("fundamental: jam density bounds [%g, %g] are inverted", b.MinJam, b.MaxJam)
	}

	density := make([]float64, len(obs))
	speed := make([]float64, len(obs))
	for i, o := range obs {
		density[i] = o.Density
		speed[i] = o.Speed
	}

	maxDensity := floats.Max(density)
	if !(maxDensity > 0) {
		return Model{}, fmt.Errorf("%w: no positive densities", ErrInsufficientData)
	}

	m := Model{
		FreeFlowSpeed: freeFlowSpeed(density, speed),
		JamDensity:    1.1 * maxDensity,
	}
	if m.JamDensity < b.MinJam || m.JamDensity > b.MaxJam {
		monitoring.Logf("fundamental: initial jam density %.1f outside [%g, %g], keeping estimate",
			m.JamDensity, b.MinJam, b.MaxJam)
		return m, nil
	}

	kj, err := fitJamDensity(density, speed, m.FreeFlowSpeed, m.JamDensity, b)
	if err != nil {
		monitoring.Logf("fundamental: fit failed, keeping estimate: %v", err)
		return m, nil
	}
	m.JamDensity = kj
	m.Fitted = true
	return m, nil
}

func freeFlowSpeed(density, speed []float64) float64 {
	sorted := append([]float64(nil), density...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(0.1, stat.LinInterp, sorted, nil)

	uf := math.Inf(-1)
	for i, k := range density {
		if k < threshold {
			uf = math.Max(uf, speed[i])
		}
	}
	if math.IsInf(uf, -1) {
		// Every density ties at the minimum.
		for i, k := range density {
			if k <= threshold {
				uf = math.Max(uf, speed[i])
			}
		}
	}
	return uf
}

func fitJamDensity(density, speed []float64, uf, kj0 float64, b Bounds) (float64, error) {
	m := Model{FreeFlowSpeed: uf}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if x[0] < b.MinJam || x[0] > b.MaxJam {
				return math.Inf(1)
			}
			m.JamDensity = x[0]
			var sse float64
			for i, k := range density {
				r := speed[i] - m.Speed(k)
				sse += r * r
			}
			return sse
		},
	}

	res, err := optimize.Minimize(problem, []float64{kj0}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, err
	}
	kj := res.X[0]
	if math.IsNaN(kj) || math.IsInf(res.F, 0) {
		return 0, fmt.Errorf("fundamental: optimiser returned kj=%g", kj)
	}
	return kj, nil
}

// Curves are the model relations sampled over [0, kj].
type Curves struct {
	K []float64 // density, veh/km
	U []float64 // speed, km/h
	Q []float64 // flow, veh/h

	QMax float64 // capacity
	KCap float64 // critical density
	UCap float64 // critical speed
}

// Curves samples m at n evenly spaced densities from 0 to the jam density.
func (m Model) Curves(n int) Curves {
	if n < 2 {
		n = 2
	}
	c := Curves{
		K: floats.Span(make([]float64, n), 0, m.JamDensity),
		U: make([]float64, n),
		Q: make([]float64, n),
	}
	for i, k := range c.K {
		c.U[i] = m.Speed(k)
		c.Q[i] = k * c.U[i]
	}
	best := floats.MaxIdx(c.Q)
	c.QMax = c.Q[best]
	c.KCap = c.K[best]
	c.UCap = c.U[best]
	return c
}
