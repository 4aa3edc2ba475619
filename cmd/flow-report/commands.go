package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/flow.report/internal/api"
	"github.com/banshee-data/flow.report/internal/config"
	"github.com/banshee-data/flow.report/internal/db"
	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fcd"
	"github.com/banshee-data/flow.report/internal/fsutil"
	"github.com/banshee-data/flow.report/internal/fundamental"
	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/render"
	"github.com/banshee-data/flow.report/internal/security"
	"github.com/banshee-data/flow.report/internal/trajectory"
	"github.com/banshee-data/flow.report/internal/units"
)

// mixedClasses are the vehicle classes covered by the mixed command.
var mixedClasses = []string{trajectory.ClassAll, trajectory.ClassRegular, trajectory.ClassStable}

// curvePoints is the sampling density of fitted fundamental diagram curves.
const curvePoints = 100

// artifactFS is where commands write their outputs.
var artifactFS fsutil.FileSystem = fsutil.OSFileSystem{}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", config.GetEnv(config.EnvConfig, config.DefaultConfigPath), "analysis config JSON")
}

func outFlag(fs *flag.FlagSet) *string {
	return fs.String("out", config.GetEnv(config.EnvArtifacts, "output"), "artifact output directory")
}

func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", config.GetEnv(config.EnvDB, ""), "run database (empty: do not store)")
}

// openStore opens and migrates the run database, or returns nil when path
// is empty.
func openStore(path string) (*db.DB, error) {
	if path == "" {
		return nil, nil
	}
	store, err := db.NewDB(path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	return store, nil
}

// reconstructFile streams an FCD trace into trajectories.
func reconstructFile(path string, cfg *config.AnalysisConfig) (*trajectory.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := fcd.NewReader(f)
	set, err := trajectory.Reconstruct(r, cfg.Offsets(), *cfg.CorridorLength)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	monitoring.Logf("read %d vehicle records from %s", r.Records(), path)
	return set, nil
}

// analysis runs one aggregation and writes its artifacts.
type analysis struct {
	cfg    *config.AnalysisConfig
	store  *db.DB
	source string
	out    io.Writer
}

func (a analysis) run(ctx context.Context, set *trajectory.Set, class, dir string) (*edie.Result, error) {
	start := time.Now()
	res, err := edie.Aggregate(ctx, set, a.cfg.EdieParams(),
		edie.WithWorkers(a.cfg.GetWorkers()),
		edie.WithClass(class),
	)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	page := render.PageOptions{
		Contour:  a.cfg.ContourOptions(),
		Subtitle: fmt.Sprintf("%s, %s vehicles", filepath.Base(a.source), res.Class),
	}
	paths, err := render.WriteContours(fsutil.ArtifactDir{FS: artifactFS, Dir: dir}, res, page)
	if err != nil {
		return nil, err
	}

	rows, cols := res.Dims()
	sum := res.Summary()
	fmt.Fprintf(a.out, "%s: %d vehicles, %d x %d cells in %v\n", res.Class, res.Vehicles, rows, cols, elapsed.Round(time.Millisecond))
	fmt.Fprintf(a.out, "  density %.1f..%.1f veh/km, flow %.0f..%.0f veh/h, speed %.1f..%.1f km/h\n",
		sum.Density.Min, sum.Density.Max, sum.Flow.Min, sum.Flow.Max, sum.Speed.Min, sum.Speed.Max)
	for _, p := range paths {
		fmt.Fprintf(a.out, "  wrote %s\n", p)
	}

	if a.store != nil {
		run, err := a.store.SaveRun(ctx, a.source, res, elapsed)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(a.out, "  stored run %s\n", run.ID)
	}
	return res, nil
}

func runAnalyze(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fcdPath := fs.String("fcd", "", "FCD trace XML (required)")
	configPath := configFlag(fs)
	class := fs.String("class", "", "vehicle class: all, regular or stable (default from config)")
	outDir := outFlag(fs)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fcdPath == "" {
		return errors.New("analyze: -fcd is required")
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		return err
	}
	cls := cfg.GetVehicleClass()
	if *class != "" {
		if cls, err = config.ParseClass(*class); err != nil {
			return err
		}
	}

	store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	set, err := reconstructFile(*fcdPath, cfg)
	if err != nil {
		return err
	}
	a := analysis{cfg: cfg, store: store, source: *fcdPath, out: out}
	_, err = a.run(ctx, set, cls, *outDir)
	return err
}

func runMixed(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mixed", flag.ContinueOnError)
	fcdPath := fs.String("fcd", "", "FCD trace XML (required)")
	configPath := configFlag(fs)
	outDir := outFlag(fs)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fcdPath == "" {
		return errors.New("mixed: -fcd is required")
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	set, err := reconstructFile(*fcdPath, cfg)
	if err != nil {
		return err
	}
	a := analysis{cfg: cfg, store: store, source: *fcdPath, out: out}
	analysed := 0
	for _, class := range mixedClasses {
		label := class
		if label == trajectory.ClassAll {
			label = "all"
		}
		dir := filepath.Join(*outDir, security.SanitizeFilename(label))
		if _, err := a.run(ctx, set, class, dir); err != nil {
			if errors.Is(err, edie.ErrInsufficientData) {
				fmt.Fprintf(out, "%s: skipped, %v\n", label, err)
				continue
			}
			return fmt.Errorf("%s: %w", label, err)
		}
		analysed++
	}
	if analysed == 0 {
		return fmt.Errorf("mixed: %w for every class", edie.ErrInsufficientData)
	}
	return nil
}

func runTrajectories(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trajectories", flag.ContinueOnError)
	fcdPath := fs.String("fcd", "", "FCD trace XML (required)")
	configPath := configFlag(fs)
	class := fs.String("class", "all", "vehicle class: all, regular or stable")
	outDir := outFlag(fs)
	speedUnits := fs.String("units", units.KMPH, "speed units for the summary: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fcdPath == "" {
		return errors.New("trajectories: -fcd is required")
	}
	if !units.IsValid(*speedUnits) {
		return fmt.Errorf("trajectories: -units must be one of %s, got %q", units.GetValidUnitsString(), *speedUnits)
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		return err
	}
	cls, err := config.ParseClass(*class)
	if err != nil {
		return err
	}
	set, err := reconstructFile(*fcdPath, cfg)
	if err != nil {
		return err
	}

	pts := trajectory.TimeSpacePoints(set.Filter(cls), *cfg.CorridorLength)
	dir := fsutil.ArtifactDir{FS: artifactFS, Dir: *outDir}
	path, err := dir.Write(render.TimeSpaceFileName, func(w io.Writer) error {
		return render.TimeSpace(w, pts, render.TimeSpaceOptions{
			MaxPoints: cfg.GetTimeSpaceMaxPoints(),
			Title:     "Time-space diagram: " + filepath.Base(*fcdPath),
		})
	})
	if err != nil {
		return err
	}
	st := set.Stats()
	fmt.Fprintf(out, "%d vehicles, %d samples, %d lap wraps\n", st.Vehicles, st.Samples, st.Laps)
	fmt.Fprintf(out, "  t %.1f..%.1f s, speed %.1f..%.1f %s\n", st.TimeMin, st.TimeMax,
		units.ConvertSpeed(st.SpeedMin, *speedUnits), units.ConvertSpeed(st.SpeedMax, *speedUnits), *speedUnits)
	fmt.Fprintf(out, "  wrote %s\n", path)
	return nil
}

func runFundamental(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fundamental", flag.ContinueOnError)
	detector := fs.String("detector", "", "induction loop detector output XML")
	runID := fs.String("run", "", "stored run id to fit from its cells")
	configPath := configFlag(fs)
	outDir := outFlag(fs)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*detector == "") == (*runID == "") {
		return errors.New("fundamental: exactly one of -detector or -run is required")
	}
	if *runID != "" && *dbPath == "" {
		return errors.New("fundamental: -run needs -db")
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var (
		obs    []fundamental.Observation
		source string
	)
	if *detector != "" {
		source = *detector
		obs, err = detectorObservations(*detector)
	} else {
		source = "run " + *runID
		var res *edie.Result
		if res, err = store.LoadResult(ctx, *runID); err == nil {
			obs = fundamental.FromPoints(res.Points())
		}
	}
	if err != nil {
		return err
	}

	m, err := fundamental.Fit(obs, cfg.FitBounds())
	if err != nil {
		return err
	}
	curves := m.Curves(curvePoints)

	dir := fsutil.ArtifactDir{FS: artifactFS, Dir: *outDir}
	path, err := dir.Write(render.FundamentalFileName, func(w io.Writer) error {
		return render.FundamentalDiagrams(w, obs, m)
	})
	if err != nil {
		return err
	}

	fitted := "estimate"
	if m.Fitted {
		fitted = "least squares"
	}
	fmt.Fprintf(out, "%d observations from %s\n", len(obs), source)
	fmt.Fprintf(out, "  free-flow speed %.1f km/h, jam density %.1f veh/km (%s)\n", m.FreeFlowSpeed, m.JamDensity, fitted)
	fmt.Fprintf(out, "  capacity %.0f veh/h at %.1f veh/km, %.1f km/h\n", curves.QMax, curves.KCap, curves.UCap)
	fmt.Fprintf(out, "  wrote %s\n", path)

	if store != nil {
		fit, err := store.SaveFit(ctx, *runID, source, len(obs), m, curves)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  stored fit %d\n", fit.ID)
	}
	return nil
}

func detectorObservations(path string) ([]fundamental.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ivs, err := fcd.ReadDetector(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fundamental.FromIntervals(ivs), nil
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", config.GetEnv(config.EnvListen, ":8080"), "HTTP listen address")
	dbPath := fs.String("db", config.GetEnv(config.EnvDB, "flow.db"), "run database")
	artifacts := fs.String("artifacts", config.GetEnv(config.EnvArtifacts, "output"), "artifact directory to serve")
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("serve: -db is required")
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	mux := api.NewServer(store, artifactFS, *artifacts, render.PageOptions{Contour: cfg.ContourOptions()}).ServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}
	fmt.Fprintf(out, "serving %s on %s\n", *dbPath, *listen)
	return api.ListenAndServe(ctx, *listen, api.LoggingMiddleware(mux))
}

func runMigrate(args []string, out io.Writer) error {
	var action string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", config.GetEnv(config.EnvDB, "flow.db"), "run database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if action == "" && len(rest) > 0 {
		action, rest = rest[0], rest[1:]
	}

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "force":
		if len(rest) != 1 {
			return errors.New("migrate force: version argument required")
		}
		v, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("migrate force: invalid version %q: %w", rest[0], err)
		}
		if err := store.MigrateForce(v); err != nil {
			return err
		}
	case "version", "status":
	default:
		return fmt.Errorf("migrate: action must be up, down, version or force, got %q", action)
	}

	version, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d", version)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}
