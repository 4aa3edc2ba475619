package render

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fsutil"
	"github.com/banshee-data/flow.report/internal/fundamental"
	"github.com/banshee-data/flow.report/internal/testutil"
	"github.com/banshee-data/flow.report/internal/trajectory"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func ringResult(t *testing.T) *edie.Result {
	t.Helper()
	set := testutil.Ring(6, 1000, 12, 0.5, 200)
	res, err := edie.Aggregate(context.Background(), set, edie.Params{DX: 50, DT: 20, Length: 1000})
	require.NoError(t, err)
	return res
}

func TestTrafficPalette(t *testing.T) {
	cols := TrafficPalette(3).Colors()
	require.Len(t, cols, 3)
	assert.Equal(t, color.Color(jamRed), cols[0])
	assert.Equal(t, color.Color(midYellow), cols[1])
	assert.Equal(t, color.Color(freeGreen), cols[2])

	rev := paletteFor(true, 3).Colors()
	assert.Equal(t, color.Color(freeGreen), rev[0])
	assert.Equal(t, color.Color(jamRed), rev[2])

	assert.Equal(t, "#cc0000", hex(jamRed))
	assert.Len(t, TrafficPalette(100).Colors(), 100)
}

func TestColourRange(t *testing.T) {
	res := ringResult(t)

	lo, hi := ColourRange(res, edie.Density, DefaultContourOptions)
	assert.Equal(t, 0.0, lo)
	assert.Greater(t, hi, lo)

	lo, hi = ColourRange(res, edie.Speed, ContourOptions{Lower: 0, Upper: 100})
	s := res.Summary()
	assert.Equal(t, s.Speed.Min, lo)
	if s.Speed.Max > s.Speed.Min {
		assert.Equal(t, s.Speed.Max, hi)
	}
}

func TestContour(t *testing.T) {
	res := ringResult(t)
	for _, q := range edie.Quantities {
		t.Run(q.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Contour(&buf, res, q, DefaultContourOptions))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}

	assert.Error(t, Contour(io.Discard, res, edie.Quantity(42), DefaultContourOptions))
}

func TestContourPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ContourPage(&buf, ringResult(t), PageOptions{Contour: DefaultContourOptions, Subtitle: "ring"}))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "expected an HTML document")
	for _, want := range []string{"Density", "Flow", "Speed", "ring"} {
		assert.Contains(t, html, want)
	}
}

func TestWriteContours(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	dir := fsutil.ArtifactDir{FS: mem, Dir: "out"}

	paths, err := WriteContours(dir, ringResult(t), PageOptions{Contour: DefaultContourOptions})
	require.NoError(t, err)

	want := []string{
		filepath.Join("out", "density_contour.png"),
		filepath.Join("out", "flow_contour.png"),
		filepath.Join("out", "speed_contour.png"),
		filepath.Join("out", "contours.html"),
	}
	assert.Equal(t, want, paths)
	for _, p := range want[:3] {
		data, err := mem.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), p)
	}
}

func TestTimeSpace(t *testing.T) {
	set := testutil.Ring(4, 1000, 15, 1, 150)
	pts := trajectory.TimeSpacePoints(set, 1000)

	var buf bytes.Buffer
	require.NoError(t, TimeSpace(&buf, pts, TimeSpaceOptions{MaxPoints: 200}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.Error(t, TimeSpace(io.Discard, nil, TimeSpaceOptions{}))
}

func TestFundamentalDiagrams(t *testing.T) {
	m := fundamental.Model{FreeFlowSpeed: 100, JamDensity: 150}
	var obs []fundamental.Observation
	for k := 5.0; k < 150; k += 10 {
		obs = append(obs, fundamental.Observation{Density: k, Speed: m.Speed(k), Flow: m.Flow(k)})
	}

	var buf bytes.Buffer
	require.NoError(t, FundamentalDiagrams(&buf, obs, m))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.Error(t, FundamentalDiagrams(io.Discard, nil, m))
}
