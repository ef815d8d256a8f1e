package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/posture.report/internal/reba"
)

// handleRiskChart renders a bar chart of the session's risk band
// distribution.
func (ws *WebServer) handleRiskChart(w http.ResponseWriter, r *http.Request) {
	st := ws.controller.Stats()

	x := make([]string, 0, len(reba.Levels))
	y := make([]opts.BarData, 0, len(reba.Levels))
	for _, level := range reba.Levels {
		x = append(x, string(level))
		y = append(y, opts.BarData{
			Value:     st.RiskDistribution.Counts[string(level)],
			ItemStyle: &opts.ItemStyle{Color: level.Color()},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Risk distribution", Subtitle: time.Now().Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("frames", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	ws.renderChartPage(w, bar)
}

// handleScoreChart renders a line chart of the final score over the
// retained recent frames.
func (ws *WebServer) handleScoreChart(w http.ResponseWriter, r *http.Request) {
	records := ws.controller.Ring().Records()
	if len(records) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no frames recorded yet")
		return
	}

	x := make([]string, 0, len(records))
	y := make([]opts.LineData, 0, len(records))
	for _, rec := range records {
		if rec.RiskLevel == reba.RiskUnknown {
			continue
		}
		x = append(x, fmt.Sprintf("%d", rec.FrameID))
		y = append(y, opts.LineData{Value: rec.Score})
	}
	if len(y) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no scored frames yet")
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "REBA score", Subtitle: "over recent frames"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("final score", y,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
		)

	ws.renderChartPage(w, line)
}

func (ws *WebServer) renderChartPage(w http.ResponseWriter, chart components.Charter) {
	page := components.NewPage()
	page.AddCharts(chart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
