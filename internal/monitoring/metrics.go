package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsRead counts vehicle observations decoded from FCD traces.
	RecordsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowreport_fcd_records_read_total",
		Help: "Vehicle observations decoded from FCD traces",
	})

	// LapWraps counts lap-wrap discontinuities removed by the reconstructor.
	LapWraps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowreport_lap_wraps_total",
		Help: "Lap wraps detected while reconstructing trajectories",
	})

	// VehiclesReconstructed counts trajectories produced by the reconstructor.
	VehiclesReconstructed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowreport_vehicles_reconstructed_total",
		Help: "Vehicle trajectories produced by the reconstructor",
	})

	// CellsComputed counts space-time cells evaluated by the aggregator.
	CellsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowreport_cells_computed_total",
		Help: "Space-time cells evaluated by the Edie aggregator",
	})

	// AggregationDuration observes wall time of complete aggregation passes.
	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowreport_aggregation_duration_seconds",
		Help:    "Wall time of a full Edie aggregation pass",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
	})
)
