package edie

// cellTotals are the raw Edie sums of one space-time cell.
type cellTotals struct {
	timeSpent float64 // vehicle-seconds
	distance  float64 // vehicle-metres
	crossings int
}

// computeCell evaluates cell (i, j). It only reads the index, so cells may
// be computed in any order and from any goroutine.
func computeCell(idx []vehicleIndex, g grid, i, j int) cellTotals {
	t0, t1 := g.timeBin(i)
	x0, x1 := g.spaceBin(j)

	var c cellTotals
	for _, vi := range idx {
		times, positions := vi.window(t0-g.dt, t1+g.dt)
		if len(times) < 2 {
			continue
		}

		first, last := -1, -1
		for k, p := range positions {
			if p >= x0 && p < x1 {
				if first < 0 {
					first = k
				}
				last = k
			}
		}
		if first < 0 {
			continue
		}

		if timeIn := min(t1, times[last]) - max(t0, times[first]); timeIn > 0 {
			c.timeSpent += timeIn
			if distIn := min(x1, positions[last]) - max(x0, positions[first]); distIn > 0 {
				c.distance += distIn
			}
		}

		_, enters := interpTime(x0, positions, times)
		_, leaves := interpTime(x1, positions, times)
		if enters || leaves {
			c.crossings++
		}
	}
	return c
}
