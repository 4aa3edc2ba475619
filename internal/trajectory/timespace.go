package trajectory

import (
	"math"
	"sort"
)

// TimeSpacePoint is one point of a time-space diagram.
type TimeSpacePoint struct {
	Time     float64
	Position float64 // wrapped into [0, length)
	Speed    float64
}

// TimeSpacePoints flattens a Set into time-space diagram points with
// positions wrapped back onto the corridor. The first sample after each
// lap wrap is dropped so that the plot shows no spurious boundary point.
// Points are sorted by position so higher positions draw last.
func TimeSpacePoints(s *Set, length float64) []TimeSpacePoint {
	var out []TimeSpacePoint
	for _, t := range s.Trajectories() {
		for i, smp := range t.Samples {
			if i > 0 && wrapped(t.Samples[i-1].Position, length) > wrapped(smp.Position, length)+length/2 {
				continue
			}
			out = append(out, TimeSpacePoint{
				Time:     smp.Time,
				Position: wrapped(smp.Position, length),
				Speed:    smp.Speed,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func wrapped(pos, length float64) float64 {
	w := math.Mod(pos, length)
	if w < 0 {
		w += length
	}
	return w
}
