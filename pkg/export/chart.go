package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/openbat/core/simulation"
)

// MaxChartPoints bounds the samples per chart series; longer runs are
// decimated by taking every n-th step.
const MaxChartPoints = 2000

// RenderHTML writes a page with the power flows and the state of charge of
// the run.
func RenderHTML(w io.Writer, o *simulation.Outcome) error {
	n := len(o.Result.SOC)
	stride := 1
	if n > MaxChartPoints {
		stride = (n + MaxChartPoints - 1) / MaxChartPoints
	}
	var xAxis []string
	for i := 0; i < n; i += stride {
		xAxis = append(xAxis, fmt.Sprintf("%.2f", float64(i)*o.Step/3600))
	}

	power := charts.NewLine()
	power.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s (%s) power flows", o.System, o.Topology)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "h"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "W"}),
	)
	power.SetXAxis(xAxis).
		AddSeries("PV", lineData(o.Balance.Ppv, n, stride)).
		AddSeries("Load", lineData(o.Drive.Pl, n, stride)).
		AddSeries("Battery", lineData(o.Result.Pbat, n, stride)).
		AddSeries("Grid", lineData(o.Balance.Pg, n, stride))

	soc := charts.NewLine()
	soc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "State of charge"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "h"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "SOC"}),
	)
	soc.SetXAxis(xAxis).
		AddSeries("Simulated", lineData(o.Result.SOC, n, stride)).
		AddSeries("Lossless", lineData(o.IdealSOC, n, stride))

	page := components.NewPage()
	page.PageTitle = "openbat " + o.System
	page.AddCharts(power, soc)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func lineData(s []float64, n, stride int) []opts.LineData {
	out := make([]opts.LineData, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		v := 0.0
		if i < len(s) {
			v = s[i]
		}
		out = append(out, opts.LineData{Value: v})
	}
	return out
}
