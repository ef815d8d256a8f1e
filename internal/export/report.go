package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/stats"
)

var angleLabels = map[string]string{
	"neck_angle":      "Neck",
	"trunk_angle":     "Trunk",
	"upper_arm_angle": "Upper arm",
	"forearm_angle":   "Forearm",
	"wrist_angle":     "Wrist",
	"leg_angle":       "Leg",
}

// WriteMarkdownReport renders a human-readable session summary. The
// recommendation block keys off the share of frames in the high and
// very_high bands.
func WriteMarkdownReport(w io.Writer, info SessionInfo, s stats.SessionStats) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# REBA Session Report\n\n")
	fmt.Fprintf(&b, "**Session**: %s\n\n", info.SessionID)
	fmt.Fprintf(&b, "**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "---\n\n")

	fmt.Fprintf(&b, "## Frames\n\n")
	fmt.Fprintf(&b, "- Total: %d\n", s.Basic.TotalFrames)
	fmt.Fprintf(&b, "- Scored: %d\n", s.Basic.ValidFrames)
	fmt.Fprintf(&b, "- Unscored: %d\n", s.Basic.InvalidFrames)
	fmt.Fprintf(&b, "- Detection rate: %.1f%%\n\n", s.Basic.SuccessRate)

	fmt.Fprintf(&b, "## REBA score\n\n")
	fmt.Fprintf(&b, "- Mean: %.2f\n", s.Score.Mean)
	fmt.Fprintf(&b, "- Std dev: %.2f\n", s.Score.StdDev)
	fmt.Fprintf(&b, "- Range: %.0f to %.0f\n\n", s.Score.Min, s.Score.Max)

	fmt.Fprintf(&b, "## Risk distribution\n\n")
	fmt.Fprintf(&b, "| Band | Frames | Share |\n")
	fmt.Fprintf(&b, "|------|--------|-------|\n")
	for _, level := range reba.Levels {
		name := string(level)
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n",
			name, s.RiskDistribution.Counts[name], s.RiskDistribution.Percentages[name])
	}
	fmt.Fprintf(&b, "\n")

	if len(s.Angles) > 0 {
		fmt.Fprintf(&b, "## Joint angles\n\n")
		fmt.Fprintf(&b, "| Joint | Mean | Std dev | Min | Max |\n")
		fmt.Fprintf(&b, "|-------|------|---------|-----|-----|\n")
		for _, series := range stats.AngleSeries {
			snap, ok := s.Angles[series]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "| %s | %.1f° | %.1f° | %.1f° | %.1f° |\n",
				angleLabels[series], snap.Mean, snap.StdDev, snap.Min, snap.Max)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Timing\n\n")
	fmt.Fprintf(&b, "- Duration: %.2fs\n", s.Time.DurationSeconds)
	fmt.Fprintf(&b, "- Average FPS: %.2f\n\n", s.Time.AverageFPS)

	highShare := s.RiskDistribution.Percentages[string(reba.RiskHigh)] +
		s.RiskDistribution.Percentages[string(reba.RiskVeryHigh)]
	fmt.Fprintf(&b, "## Assessment\n\n")
	switch {
	case highShare > 30:
		fmt.Fprintf(&b, "A large share of frames (%.1f%%) scored in the high or very high band. Investigate the task and implement change now.\n", highShare)
	case highShare > 10:
		fmt.Fprintf(&b, "Some frames (%.1f%%) scored in the high or very high band. Investigate the worst postures and plan changes.\n", highShare)
	default:
		fmt.Fprintf(&b, "Most frames scored in acceptable bands. Continue monitoring.\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}
