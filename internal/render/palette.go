package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
)

// Colour stops of the traffic-state palette.
var (
	jamRed     = color.RGBA{R: 204, A: 255}
	midYellow  = color.RGBA{R: 255, G: 255, A: 255}
	freeGreen  = color.RGBA{G: 204, A: 255}
	scatterRGB = color.RGBA{B: 255, A: 102}
	fitRed     = color.RGBA{R: 255, A: 255}
	capYellow  = color.RGBA{R: 230, G: 190, A: 255}
)

// gradient is a palette interpolated linearly through its stops.
type gradient struct {
	stops []color.RGBA
	n     int
}

// TrafficPalette returns an n-colour red-yellow-green palette: low values
// red, high values green. Speed maps use it directly; density and flow use
// it reversed so that congestion is red.
func TrafficPalette(n int) palette.Palette {
	return trafficGradient(n)
}

func trafficGradient(n int) gradient {
	return gradient{stops: []color.RGBA{jamRed, midYellow, freeGreen}, n: n}
}

// paletteFor returns the palette used for a quantity.
func paletteFor(reversed bool, n int) palette.Palette {
	p := TrafficPalette(n)
	if reversed {
		return palette.Reverse(p)
	}
	return p
}

func (g gradient) Colors() []color.Color {
	out := make([]color.Color, g.n)
	for i := range out {
		f := 0.0
		if g.n > 1 {
			f = float64(i) / float64(g.n-1)
		}
		out[i] = g.at(f)
	}
	return out
}

// at returns the colour at f in [0, 1].
func (g gradient) at(f float64) color.RGBA {
	f = math.Min(math.Max(f, 0), 1)
	seg := f * float64(len(g.stops)-1)
	i := int(seg)
	if i >= len(g.stops)-1 {
		return g.stops[len(g.stops)-1]
	}
	t := seg - float64(i)
	a, b := g.stops[i], g.stops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + t*(float64(y)-float64(x)))) }
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

// hex formats c as a CSS colour.
func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
