// Package report renders an analysis as charts: an interactive HTML page
// (go-echarts) and a static PNG of the lane (gonum/plot).
package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/units"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// AssetsHost serves the echarts JavaScript. Override it for offline use.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// fitSamples is the number of points drawn along the fitted speed line.
const fitSamples = 20

// WriteHTML writes an HTML page with the lane-space trajectory and the
// distance-over-time fit of res.
func WriteHTML(w io.Writer, title string, res *analysis.Result) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(laneChart(title, res), speedChart(res))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func laneChart(title string, res *analysis.Result) *charts.Scatter {
	m := res.Metrics
	lengthFt := res.Request.FarFt
	widthIn := laneWidth(res)

	track := make([]opts.ScatterData, 0, len(res.LanePoints))
	for _, p := range res.LanePoints {
		track = append(track, opts.ScatterData{Value: []interface{}{p.XIn, units.InchesToFeet(p.YIn), p.TSec}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "600px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("arrows=%s breakpoint=%s speed=%s", boardLabel(m.ArrowsBoard), boardLabel(m.BreakpointBoard), speedLabel(m.SpeedMPH)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: widthIn, Name: "Across lane (in)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: lengthFt, Name: "Down lane (ft)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("ball", track, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	if m.ArrowsXIn != nil {
		scatter.AddSeries("arrows", []opts.ScatterData{{Value: []interface{}{*m.ArrowsXIn, units.InchesToFeet(m.ArrowsYIn)}}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	}
	if m.BreakpointXIn != nil {
		scatter.AddSeries("breakpoint", []opts.ScatterData{{Value: []interface{}{*m.BreakpointXIn, units.InchesToFeet(m.BreakpointYIn)}}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	}
	return scatter
}

func speedChart(res *analysis.Result) *charts.Scatter {
	samples := make([]opts.ScatterData, 0, len(res.LanePoints))
	for _, p := range res.LanePoints {
		samples = append(samples, opts.ScatterData{Value: []interface{}{p.TSec, units.InchesToFeet(p.YIn)}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "400px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Distance over time", Subtitle: speedLabel(res.Metrics.SpeedMPH)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Down lane (ft)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("samples", samples, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	if fit := res.Metrics.Speed; fit != nil && len(res.LanePoints) > 0 {
		t0 := res.LanePoints[0].TSec
		t1 := res.LanePoints[len(res.LanePoints)-1].TSec
		line := make([]opts.ScatterData, 0, fitSamples)
		for i := 0; i < fitSamples; i++ {
			t := t0 + (t1-t0)*float64(i)/float64(fitSamples-1)
			line = append(line, opts.ScatterData{Value: []interface{}{t, units.InchesToFeet(fit.InterceptIn + fit.SlopeInPerSec*t)}})
		}
		scatter.AddSeries("fit", line, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	}
	return scatter
}

func laneWidth(res *analysis.Result) float64 {
	if res.LaneWidthIn > 0 {
		return res.LaneWidthIn
	}
	return calibration.LaneWidthIn
}

func boardLabel(b *int) string {
	if b == nil {
		return "not determined"
	}
	return fmt.Sprintf("board %d", *b)
}

func speedLabel(s *float64) string {
	if s == nil {
		return "not determined"
	}
	return fmt.Sprintf("%.1f mph", *s)
}
