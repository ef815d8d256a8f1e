// Package report renders post-session plots of the analysis results.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

var seriesColors = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// SavePlots writes the score timeline and angle timeline PNGs for one
// session into outputDir.
func SavePlots(records []session.SessionRecord, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	if err := saveScoreTimeline(records, filepath.Join(outputDir, "score_timeline.png")); err != nil {
		return err
	}
	return saveAngleTimelines(records, filepath.Join(outputDir, "angle_timelines.png"))
}

// saveScoreTimeline plots the final REBA score per frame, with a marker
// line at the high-risk threshold. Unscored frames are omitted.
func saveScoreTimeline(records []session.SessionRecord, path string) error {
	pts := make(plotter.XYs, 0, len(records))
	for _, rec := range records {
		if rec.RiskLevel == reba.RiskUnknown {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(rec.FrameID), Y: float64(rec.Score)})
	}
	if len(pts) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = "REBA score over session"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "score"
	p.Y.Min = 0

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = seriesColors[0]
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("final score", line)

	threshold := plotter.XYs{
		{X: pts[0].X, Y: 8},
		{X: pts[len(pts)-1].X, Y: 8},
	}
	thLine, err := plotter.NewLine(threshold)
	if err != nil {
		return err
	}
	thLine.Color = seriesColors[3]
	thLine.Width = vg.Points(1)
	thLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(thLine)
	p.Legend.Add("high risk", thLine)

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save score plot: %w", err)
	}
	return nil
}

// saveAngleTimelines plots the six joint angle series on one chart.
func saveAngleTimelines(records []session.SessionRecord, path string) error {
	series := []struct {
		label string
		value func(rec session.SessionRecord) (float64, bool)
	}{
		{"neck", func(r session.SessionRecord) (float64, bool) { return r.Angles.Neck.Degrees, r.Angles.Neck.Valid }},
		{"trunk", func(r session.SessionRecord) (float64, bool) { return r.Angles.Trunk.Degrees, r.Angles.Trunk.Valid }},
		{"upper arm", func(r session.SessionRecord) (float64, bool) { return r.Angles.UpperArm.Degrees, r.Angles.UpperArm.Valid }},
		{"forearm", func(r session.SessionRecord) (float64, bool) { return r.Angles.Forearm.Degrees, r.Angles.Forearm.Valid }},
		{"wrist", func(r session.SessionRecord) (float64, bool) { return r.Angles.Wrist.Degrees, r.Angles.Wrist.Valid }},
		{"leg", func(r session.SessionRecord) (float64, bool) { return r.Angles.Leg.Degrees, r.Angles.Leg.Valid }},
	}

	p := plot.New()
	p.Title.Text = "Joint angles over session"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "degrees"

	plotted := false
	for i, s := range series {
		pts := make(plotter.XYs, 0, len(records))
		for _, rec := range records {
			if v, ok := s.value(rec); ok {
				pts = append(pts, plotter.XY{X: float64(rec.FrameID), Y: v})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
		plotted = true
	}
	if !plotted {
		return nil
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save angle plot: %w", err)
	}
	return nil
}
