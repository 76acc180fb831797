package report

import (
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/tessellate"
)

// viridis is the color ramp used by the interactive charts.
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// ObservationsHTML renders the sampled points as an interactive scatter
// chart colored by value.
func ObservationsHTML(obs []sample.Observation, title, path string) error {
	if len(obs) == 0 {
		return eris.New("report: no observations to chart")
	}

	lo, hi := obs[0].Value, obs[0].Value
	data := make([]opts.ScatterData, 0, len(obs))
	for _, o := range obs {
		if o.Value < lo {
			lo = o.Value
		}
		if o.Value > hi {
			hi = o.Value
		}
		data = append(data, opts.ScatterData{Value: []interface{}{o.X, o.Y, o.Value}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "easting", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "northing", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("observations", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	return renderChart(scatter, path)
}

// ZonesHTML renders per-zone mean values as a bar chart ordered west to
// east.
func ZonesHTML(zones []tessellate.ZoneStat, title, path string) error {
	if len(zones) == 0 {
		return eris.New("report: no zones to chart")
	}

	labels := make([]string, len(zones))
	bars := make([]opts.BarData, len(zones))
	for i, z := range zones {
		labels[i] = "zone " + strconv.Itoa(i)
		bars[i] = opts.BarData{Value: z.Mean}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "620px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "zonal mean"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("mean", bars, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return renderChart(bar, path)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderChart(c renderer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create chart file")
	}
	defer f.Close() //nolint:errcheck

	if err := c.Render(f); err != nil {
		return eris.Wrap(err, "report: render chart")
	}
	return nil
}
