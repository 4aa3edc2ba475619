package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flow.report/internal/db"
	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/render"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// writeRingTrace writes an FCD trace of n vehicles circling a 1000 m ring
// at 10 m/s for 120 s. Odd vehicles are stabilising vehicles.
func writeRingTrace(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("<fcd-export>\n")
	for step := 0; step <= 120; step++ {
		tm := float64(step)
		fmt.Fprintf(&b, "  <timestep time=\"%.2f\">\n", tm)
		for v := 0; v < n; v++ {
			typ := "regular_car"
			if v%2 == 1 {
				typ = "stable_av"
			}
			pos := math.Mod(float64(v)*1000/float64(n)+10*tm, 1000)
			fmt.Fprintf(&b, "    <vehicle id=\"veh%d\" type=\"%s\" lane=\"a_0\" pos=\"%.2f\" speed=\"10.00\"/>\n", v, typ, pos)
		}
		b.WriteString("  </timestep>\n")
	}
	b.WriteString("</fcd-export>\n")

	path := filepath.Join(dir, "fcd.xml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "analysis.json")
	cfg := `{"dx": 100, "dt": 30, "corridor_length": 1000, "segment_offsets": {}}`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

const detectorXML = `<detector>
    <interval begin="0.00" end="60.00" id="e1_0" nVehContrib="10" flow="600.00" occupancy="5.00" speed="15.00" harmonicMeanSpeed="15.00" length="5.00"/>
    <interval begin="60.00" end="120.00" id="e1_0" nVehContrib="20" flow="1200.00" occupancy="15.00" speed="10.00" harmonicMeanSpeed="10.00" length="5.00"/>
    <interval begin="120.00" end="180.00" id="e1_0" nVehContrib="25" flow="1500.00" occupancy="30.00" speed="6.00" harmonicMeanSpeed="6.00" length="5.00"/>
</detector>`

var runIDPattern = regexp.MustCompile(`stored run ([0-9a-f-]{36})`)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), "version", nil, &out))
	assert.True(t, strings.HasPrefix(out.String(), "flow-report "))
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), "help", nil, &out))
	for _, cmd := range []string{"analyze", "mixed", "trajectories", "fundamental", "serve", "migrate"} {
		assert.Contains(t, out.String(), cmd)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run(context.Background(), "bogus", nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 6)
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "flow.db")

	var stdout bytes.Buffer
	err := run(context.Background(), "analyze",
		[]string{"-fcd", trace, "-config", cfg, "-out", out, "-db", dbPath}, &stdout)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "all: 6 vehicles")
	for _, name := range []string{"density_contour.png", "flow_contour.png", "speed_contour.png", render.ContourPageFileName} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	m := runIDPattern.FindStringSubmatch(stdout.String())
	require.Len(t, m, 2, stdout.String())

	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.Run(context.Background(), m[1])
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Vehicles)
	assert.Equal(t, trace, stored.Source)
}

func TestAnalyze_ClassFilter(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 6)
	cfg := writeConfig(t, dir)

	var stdout bytes.Buffer
	err := run(context.Background(), "analyze",
		[]string{"-fcd", trace, "-config", cfg, "-out", filepath.Join(dir, "out"), "-db", "", "-class", "stable"}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "stable: 3 vehicles")
	assert.NotContains(t, stdout.String(), "stored run")
}

func TestAnalyze_Errors(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 2)
	cfg := writeConfig(t, dir)

	tests := []struct {
		name string
		args []string
	}{
		{"missing fcd", []string{"-config", cfg}},
		{"bad class", []string{"-fcd", trace, "-config", cfg, "-class", "trucks", "-db", ""}},
		{"missing config", []string{"-fcd", trace, "-config", filepath.Join(dir, "nope.json"), "-db", ""}},
		{"missing trace", []string{"-fcd", filepath.Join(dir, "nope.xml"), "-config", cfg, "-db", ""}},
		{"unknown flag", []string{"-frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), "analyze", tt.args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestMixed(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 4)
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := run(context.Background(), "mixed", []string{"-fcd", trace, "-config", cfg, "-out", out, "-db", ""}, &stdout)
	require.NoError(t, err)

	for _, class := range []string{"all", "regular", "stable"} {
		assert.FileExists(t, filepath.Join(out, class, "density_contour.png"))
	}
	assert.Contains(t, stdout.String(), "regular: 2 vehicles")
}

func TestMixed_SkipsEmptyClass(t *testing.T) {
	dir := t.TempDir()
	// A single vehicle: only the regular class is populated.
	trace := writeRingTrace(t, dir, 1)
	cfg := writeConfig(t, dir)

	var stdout bytes.Buffer
	err := run(context.Background(), "mixed",
		[]string{"-fcd", trace, "-config", cfg, "-out", filepath.Join(dir, "out"), "-db", ""}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "stable: skipped")
}

func TestTrajectories(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 3)
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := run(context.Background(), "trajectories", []string{"-fcd", trace, "-config", cfg, "-out", out}, &stdout)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, render.TimeSpaceFileName))
	assert.Contains(t, stdout.String(), "3 vehicles, 363 samples")
	assert.Contains(t, stdout.String(), "speed 36.0..36.0 kmph")

	stdout.Reset()
	require.NoError(t, run(context.Background(), "trajectories",
		[]string{"-fcd", trace, "-config", cfg, "-out", out, "-units", "mps"}, &stdout))
	assert.Contains(t, stdout.String(), "speed 10.0..10.0 mps")

	err = run(context.Background(), "trajectories", []string{"-fcd", trace, "-config", cfg, "-units", "furlongs"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFundamental_Detector(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	det := filepath.Join(dir, "e1.xml")
	require.NoError(t, os.WriteFile(det, []byte(detectorXML), 0o644))
	out := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "flow.db")

	var stdout bytes.Buffer
	err := run(context.Background(), "fundamental",
		[]string{"-detector", det, "-config", cfg, "-out", out, "-db", dbPath}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "3 observations")
	assert.Contains(t, stdout.String(), "stored fit 1")
	assert.FileExists(t, filepath.Join(out, render.FundamentalFileName))
}

func TestFundamental_FromRun(t *testing.T) {
	dir := t.TempDir()
	trace := writeRingTrace(t, dir, 6)
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "flow.db")

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), "analyze",
		[]string{"-fcd", trace, "-config", cfg, "-out", out, "-db", dbPath}, &stdout))
	m := runIDPattern.FindStringSubmatch(stdout.String())
	require.Len(t, m, 2)

	stdout.Reset()
	require.NoError(t, run(context.Background(), "fundamental",
		[]string{"-run", m[1], "-config", cfg, "-out", out, "-db", dbPath}, &stdout))
	assert.Contains(t, stdout.String(), "from run "+m[1])

	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer store.Close()
	fits, err := store.Fits(context.Background(), m[1])
	require.NoError(t, err)
	assert.Len(t, fits, 1)
}

func TestFundamental_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	for _, args := range [][]string{
		{"-config", cfg},
		{"-detector", "a.xml", "-run", "x", "-config", cfg},
		{"-run", "x", "-config", cfg, "-db", ""},
	} {
		assert.Error(t, run(context.Background(), "fundamental", args, &bytes.Buffer{}), "%v", args)
	}
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flow.db")

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), "migrate", []string{"version", "-db", dbPath}, &stdout))
	assert.Equal(t, "schema version 0\n", stdout.String())

	stdout.Reset()
	require.NoError(t, run(context.Background(), "migrate", []string{"up", "-db", dbPath}, &stdout))
	assert.Equal(t, "schema version 2\n", stdout.String())

	stdout.Reset()
	require.NoError(t, run(context.Background(), "migrate", []string{"-db", dbPath, "down"}, &stdout))
	assert.Equal(t, "schema version 1\n", stdout.String())

	assert.Error(t, run(context.Background(), "migrate", []string{"sideways", "-db", dbPath}, &bytes.Buffer{}))
	assert.Error(t, run(context.Background(), "migrate", []string{"force", "-db", dbPath}, &bytes.Buffer{}))
}

func TestServe_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout bytes.Buffer
	err := run(ctx, "serve", []string{"-listen", "127.0.0.1:0", "-db", filepath.Join(dir, "flow.db"), "-config", cfg}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "serving")
}
