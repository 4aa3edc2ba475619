package edie

import "math"

// binStarts returns the lower edges of the bins covering [start, stop] in
// steps of step: every edge start+i*step with i < ceil((stop+step-start)/step),
// less the final edge.
func binStarts(start, stop, step float64) []float64 {
	edges := int(math.Ceil((stop + step - start) / step))
	if edges < 2 {
		return nil
	}
	out := make([]float64, edges-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// grid holds the bin edges of one aggregation.
type grid struct {
	tStarts []float64
	xStarts []float64
	dt, dx  float64
}

func newGrid(p Params, tMin, tMax float64) grid {
	return grid{
		tStarts: binStarts(tMin, tMax, p.DT),
		xStarts: binStarts(0, p.Length, p.DX),
		dt:      p.DT,
		dx:      p.DX,
	}
}

func (g grid) timeBin(i int) (t0, t1 float64) {
	return g.tStarts[i], g.tStarts[0] + float64(i+1)*g.dt
}

func (g grid) spaceBin(j int) (x0, x1 float64) {
	return g.xStarts[j], float64(j+1) * g.dx
}
