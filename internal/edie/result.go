package edie

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Quantity names one of the macroscopic outputs.
type Quantity int

const (
	Density Quantity = iota
	Flow
	Speed
)

// Quantities lists the outputs in reporting order.
var Quantities = []Quantity{Density, Flow, Speed}

func (q Quantity) String() string {
	switch q {
	case Density:
		return "density"
	case Flow:
		return "flow"
	case Speed:
		return "speed"
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

// Unit returns the reporting unit of q.
func (q Quantity) Unit() string {
	switch q {
	case Density:
		return "veh/km"
	case Flow:
		return "veh/h"
	case Speed:
		return "km/h"
	}
	return ""
}

// ParseQuantity is the inverse of Quantity.String.
func ParseQuantity(s string) (Quantity, error) {
	for _, q := range Quantities {
		if q.String() == s {
			return q, nil
		}
	}
	return 0, fmt.Errorf("edie: unknown quantity %q", s)
}

// Result is the aggregated grid. All matrices have shape
// [len(TimeStarts), len(SpaceStarts)]; row i is the time bin starting at
// TimeStarts[i] and column j the space bin starting at SpaceStarts[j].
type Result struct {
	Params   Params
	Class    string // "all", "regular" or "stable"
	Vehicles int

	TimeStarts  []float64
	SpaceStarts []float64

	Density *mat.Dense // veh/km
	Flow    *mat.Dense // veh/h
	Speed   *mat.Dense // km/h

	// Raw Edie totals before normalisation.
	TimeSpent *mat.Dense // vehicle-seconds
	Distance  *mat.Dense // vehicle-metres
	Crossings *mat.Dense
}

// Dims returns the number of time and space bins.
func (r *Result) Dims() (timeBins, spaceBins int) {
	return len(r.TimeStarts), len(r.SpaceStarts)
}

// Matrix returns the matrix holding q.
func (r *Result) Matrix(q Quantity) *mat.Dense {
	switch q {
	case Density:
		return r.Density
	case Flow:
		return r.Flow
	case Speed:
		return r.Speed
	}
	return nil
}

// Range is a closed value interval.
type Range struct {
	Min, Max float64
}

// Summary holds the value range of each quantity.
type Summary struct {
	Density Range
	Flow    Range
	Speed   Range
}

// Summary returns the minimum and maximum of every quantity.
func (r *Result) Summary() Summary {
	span := func(m *mat.Dense) Range {
		v := m.RawMatrix().Data
		if len(v) == 0 {
			return Range{}
		}
		return Range{Min: floats.Min(v), Max: floats.Max(v)}
	}
	return Summary{
		Density: span(r.Density),
		Flow:    span(r.Flow),
		Speed:   span(r.Speed),
	}
}

// Percentile returns the p-th percentile (0..100) of q over all cells, or
// NaN for an empty grid.
func (r *Result) Percentile(q Quantity, p float64) float64 {
	m := r.Matrix(q)
	if m == nil {
		return math.NaN()
	}
	raw := m.RawMatrix()
	if raw.Rows == 0 || raw.Cols == 0 {
		return math.NaN()
	}
	x := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		x = append(x, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
	}
	sort.Float64s(x)
	return stat.Quantile(math.Min(math.Max(p/100, 0), 1), stat.LinInterp, x, nil)
}

// Point is one occupied cell seen as a fundamental-diagram observation.
type Point struct {
	Density float64 // veh/km
	Flow    float64 // veh/h
	Speed   float64 // km/h
}

// Points returns every cell in which vehicles spent time, row by row.
func (r *Result) Points() []Point {
	rows, cols := r.Dims()
	var out []Point
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if r.TimeSpent.At(i, j) <= 0 {
				continue
			}
			out = append(out, Point{
				Density: r.Density.At(i, j),
				Flow:    r.Flow.At(i, j),
				Speed:   r.Speed.At(i, j),
			})
		}
	}
	return out
}
