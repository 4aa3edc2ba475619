package edie

import (
	"math"
	"sort"

	"github.com/banshee-data/flow.report/internal/trajectory"
)

// vehicleIndex is the read-only lookup structure for one vehicle: its
// sample times in increasing order and its positions already wrapped onto
// the corridor.
type vehicleIndex struct {
	times     []float64
	positions []float64
}

func buildIndex(set *trajectory.Set, length float64) []vehicleIndex {
	trajs := set.Trajectories()
	out := make([]vehicleIndex, 0, len(trajs))
	for _, t := range trajs {
		vi := vehicleIndex{
			times:     make([]float64, len(t.Samples)),
			positions: make([]float64, len(t.Samples)),
		}
		for i, s := range t.Samples {
			vi.times[i] = s.Time
			vi.positions[i] = wrap(s.Position, length)
		}
		out = append(out, vi)
	}
	return out
}

// window returns the samples with time in [lo, hi].
func (vi vehicleIndex) window(lo, hi float64) (times, positions []float64) {
	i := sort.SearchFloat64s(vi.times, lo)
	j := sort.Search(len(vi.times), func(k int) bool { return vi.times[k] > hi })
	if i >= j {
		return nil, nil
	}
	return vi.times[i:j], vi.positions[i:j]
}

func wrap(pos, length float64) float64 {
	w := math.Mod(pos, length)
	if w < 0 {
		w += length
	}
	return w
}

// interpTime linearly interpolates the time at which the wrapped position
// table reaches x. The table is searched as if positions were increasing;
// x outside [positions[0], positions[len-1]] has no time.
func interpTime(x float64, positions, times []float64) (float64, bool) {
	n := len(positions)
	if n == 0 || x < positions[0] || x > positions[n-1] {
		return math.NaN(), false
	}
	if x == positions[n-1] {
		return times[n-1], true
	}
	j := sort.Search(n, func(k int) bool { return positions[k] > x }) - 1
	if j < 0 {
		j = 0
	}
	if j >= n-1 {
		return times[n-1], true
	}
	dp := positions[j+1] - positions[j]
	if dp == 0 {
		return times[j], true
	}
	return times[j] + (x-positions[j])*(times[j+1]-times[j])/dp, true
}
