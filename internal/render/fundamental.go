package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/flow.report/internal/fundamental"
)

// FundamentalFileName is the artifact name of the fundamental diagrams.
const FundamentalFileName = "fundamental_diagrams.png"

// FundamentalDiagrams draws the flow-density, speed-flow and speed-density
// panels with the fitted model and its capacity point, and writes them
// side by side to w as PNG.
func FundamentalDiagrams(w io.Writer, obs []fundamental.Observation, m fundamental.Model) error {
	if len(obs) == 0 {
		return fmt.Errorf("render: no observations")
	}
	c := m.Curves(100)

	qk := make(plotter.XYs, len(obs))
	uq := make(plotter.XYs, len(obs))
	uk := make(plotter.XYs, len(obs))
	for i, o := range obs {
		qk[i] = plotter.XY{X: o.Density, Y: o.Flow}
		uq[i] = plotter.XY{X: o.Flow, Y: o.Speed}
		uk[i] = plotter.XY{X: o.Density, Y: o.Speed}
	}
	fitQK := make(plotter.XYs, len(c.K))
	fitUQ := make(plotter.XYs, len(c.K))
	fitUK := make(plotter.XYs, len(c.K))
	for i := range c.K {
		fitQK[i] = plotter.XY{X: c.K[i], Y: c.Q[i]}
		fitUQ[i] = plotter.XY{X: c.Q[i], Y: c.U[i]}
		fitUK[i] = plotter.XY{X: c.K[i], Y: c.U[i]}
	}

	const (
		density = "Density k [veh/km]"
		flow    = "Flow q [veh/h]"
		speed   = "Space-Mean Speed u [km/h]"
	)
	panels := []struct {
		title, x, y string
		data, fit   plotter.XYs
		cap         plotter.XY
		label       string
	}{
		{"Flow-Density", density, flow, qk, fitQK, plotter.XY{X: c.KCap, Y: c.QMax},
			fmt.Sprintf("capacity kcap=%.0f qmax=%.0f", c.KCap, c.QMax)},
		{"Speed-Flow", flow, speed, uq, fitUQ, plotter.XY{X: c.QMax, Y: c.UCap},
			fmt.Sprintf("capacity ucap=%.0f", c.UCap)},
		{"Speed-Density", density, speed, uk, fitUK, plotter.XY{X: c.KCap, Y: c.UCap},
			fmt.Sprintf("uf=%.0f kj=%.0f", m.FreeFlowSpeed, m.JamDensity)},
	}

	plots := make([]*plot.Plot, len(panels))
	for i, pn := range panels {
		p := plot.New()
		p.Title.Text = pn.title
		p.X.Label.Text = pn.x
		p.Y.Label.Text = pn.y
		p.X.Min, p.Y.Min = 0, 0

		sc, err := plotter.NewScatter(pn.data)
		if err != nil {
			return fmt.Errorf("render: %s: %w", pn.title, err)
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: scatterRGB, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}

		line, err := plotter.NewLine(pn.fit)
		if err != nil {
			return fmt.Errorf("render: %s: %w", pn.title, err)
		}
		line.Color = fitRed
		line.Width = vg.Points(2)

		capPt, err := plotter.NewScatter(plotter.XYs{pn.cap})
		if err != nil {
			return fmt.Errorf("render: %s: %w", pn.title, err)
		}
		capPt.GlyphStyle = draw.GlyphStyle{Color: capYellow, Radius: vg.Points(6), Shape: draw.PyramidGlyph{}}

		p.Add(plotter.NewGrid(), sc, line, capPt)
		p.Legend.Add("Observed", sc)
		p.Legend.Add("Fitted model", line)
		p.Legend.Add(pn.label, capPt)
		p.Legend.Top = true
		plots[i] = p
	}

	img := vgimg.New(18*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: len(plots), PadX: vg.Millimeter * 4, PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("render: write png: %w", err)
	}
	return nil
}
