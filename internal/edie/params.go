package edie

import (
	"fmt"
	"math"
)

// Params sizes the space-time grid.
type Params struct {
	DX     float64 // cell length in metres
	DT     float64 // cell duration in seconds
	Length float64 // corridor length in metres
}

// Validate reports whether the grid can be built.
func (p Params) Validate() error {
	check := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfiguration, name, v)
		}
		return nil
	}
	if err := check("dx", p.DX); err != nil {
		return err
	}
	if err := check("dt", p.DT); err != nil {
		return err
	}
	return check("corridor length", p.Length)
}
