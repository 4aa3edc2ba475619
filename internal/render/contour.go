package render

import (
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/flow.report/internal/edie"
)

// paletteSize is the number of discrete colours in contour maps.
const paletteSize = 100

// ContourOptions controls the colour range of a contour map. Values are
// percentiles (0..100) of the plotted quantity.
type ContourOptions struct {
	Lower float64 // used for speed only; density and flow start at 0
	Upper float64
	Title string
}

// DefaultContourOptions clips the colour range to the 1st and 99th
// percentiles.
var DefaultContourOptions = ContourOptions{Lower: 1, Upper: 99}

// ColourRange returns the colour scale limits for q.
func ColourRange(res *edie.Result, q edie.Quantity, o ContourOptions) (lo, hi float64) {
	hi = res.Percentile(q, o.Upper)
	if q == edie.Speed {
		lo = res.Percentile(q, o.Lower)
	}
	if !(hi > lo) {
		hi = lo + 1
	}
	return lo, hi
}

// resultGrid adapts one quantity of a Result to plotter.GridXYZ with time
// on the X axis and corridor position on the Y axis, both at bin centres.
type resultGrid struct {
	res *edie.Result
	m   *mat.Dense
}

func (g resultGrid) Dims() (c, r int) {
	return g.res.Dims()
}

func (g resultGrid) Z(c, r int) float64 {
	return g.m.At(c, r)
}

func (g resultGrid) X(c int) float64 {
	return g.res.TimeStarts[c] + g.res.Params.DT/2
}

func (g resultGrid) Y(r int) float64 {
	return g.res.SpaceStarts[r] + g.res.Params.DX/2
}

// Contour draws q as a space-time heat map and writes it to w as PNG.
func Contour(w io.Writer, res *edie.Result, q edie.Quantity, o ContourOptions) error {
	p, err := contourPlot(res, q, o)
	if err != nil {
		return err
	}
	return writePNG(w, p, 12*vg.Inch, 8*vg.Inch)
}

func contourPlot(res *edie.Result, q edie.Quantity, o ContourOptions) (*plot.Plot, error) {
	m := res.Matrix(q)
	if m == nil {
		return nil, fmt.Errorf("render: unknown quantity %v", q)
	}
	if rows, cols := res.Dims(); rows == 0 || cols == 0 {
		return nil, fmt.Errorf("render: empty %s grid", q)
	}

	pal := paletteFor(q != edie.Speed, paletteSize)
	hm := plotter.NewHeatMap(resultGrid{res: res, m: m}, pal)
	hm.Min, hm.Max = ColourRange(res, q, o)
	colors := pal.Colors()
	hm.Underflow = colors[0]
	hm.Overflow = colors[len(colors)-1]

	p := plot.New()
	title := o.Title
	if title == "" {
		title = fmt.Sprintf("Space-Time Evolution of %s [%s]", titleCase(q.String()), q.Unit())
	}
	p.Title.Text = title
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Space [m]"
	p.Add(plotter.NewGrid(), hm)
	return p, nil
}

// ContourFileName is the artifact name of the contour map of q.
func ContourFileName(q edie.Quantity) string {
	return q.String() + "_contour.png"
}

func writePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render: write png: %w", err)
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
