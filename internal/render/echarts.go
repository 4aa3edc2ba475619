package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/flow.report/internal/edie"
)

// PageOptions controls the interactive contour page.
type PageOptions struct {
	Contour ContourOptions
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
	Subtitle   string
}

// ContourPageFileName is the artifact name of the interactive page.
const ContourPageFileName = "contours.html"

// ContourPage renders the density, flow and speed maps of res as one HTML
// page of echarts heat maps.
func ContourPage(w io.Writer, res *edie.Result, o PageOptions) error {
	rows, cols := res.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("render: empty grid")
	}

	timeLabels := make([]string, rows)
	for i, t := range res.TimeStarts {
		timeLabels[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}
	spaceLabels := make([]string, cols)
	for j, x := range res.SpaceStarts {
		spaceLabels[j] = strconv.FormatFloat(x, 'f', -1, 64)
	}

	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	for _, q := range edie.Quantities {
		page.AddCharts(heatMap(res, q, o, timeLabels, spaceLabels))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render: contour page: %w", err)
	}
	return nil
}

func heatMap(res *edie.Result, q edie.Quantity, o PageOptions, timeLabels, spaceLabels []string) *charts.HeatMap {
	m := res.Matrix(q)
	rows, cols := res.Dims()
	data := make([]opts.HeatMapData, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, m.At(i, j)}})
		}
	}

	lo, hi := ColourRange(res, q, o.Contour)
	colors := trafficGradient(3).stops
	inRange := []string{hex(colors[0]), hex(colors[1]), hex(colors[2])}
	if q != edie.Speed {
		inRange[0], inRange[2] = inRange[2], inRange[0]
	}

	title := fmt.Sprintf("%s [%s]", titleCase(q.String()), q.Unit())
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Edie space-time contours", Width: "1200px", Height: "640px", AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: timeLabels, Name: "Time [s]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: spaceLabels, Name: "Space [m]", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: inRange},
		}),
	)
	hm.AddSeries(q.String(), data)
	return hm
}
