package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/flow.report/internal/trajectory"
	"github.com/banshee-data/flow.report/internal/units"
)

// TimeSpaceOptions controls the time-space diagram.
type TimeSpaceOptions struct {
	// MaxPoints caps the number of drawn points by striding through the
	// input. Zero draws everything.
	MaxPoints int
	Title     string
}

// TimeSpaceFileName is the artifact name of the time-space diagram.
const TimeSpaceFileName = "time_space_diagram.png"

// TimeSpace draws trajectory points coloured by speed (red slow, green
// fast) and writes the diagram to w as PNG.
func TimeSpace(w io.Writer, pts []trajectory.TimeSpacePoint, o TimeSpaceOptions) error {
	if len(pts) == 0 {
		return fmt.Errorf("render: no trajectory points")
	}

	stride := 1
	if o.MaxPoints > 0 && len(pts) > o.MaxPoints {
		stride = (len(pts) + o.MaxPoints - 1) / o.MaxPoints
	}

	xys := make(plotter.XYs, 0, len(pts)/stride+1)
	speeds := make([]float64, 0, cap(xys))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < len(pts); i += stride {
		p := pts[i]
		xys = append(xys, plotter.XY{X: p.Time, Y: p.Position})
		v := units.SpeedKmh(p.Speed)
		speeds = append(speeds, v)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	g := trafficGradient(paletteSize)
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		f := 0.5
		if hi > lo {
			f = (speeds[i] - lo) / (hi - lo)
		}
		return draw.GlyphStyle{Color: g.at(f), Radius: vg.Points(0.6), Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = o.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("Time-Space Diagram (speed %.0f to %.0f km/h)", lo, hi)
	}
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Position [m]"
	p.Add(plotter.NewGrid(), sc)
	return writePNG(w, p, 15*vg.Inch, 10*vg.Inch)
}
