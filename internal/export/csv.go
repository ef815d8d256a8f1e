// Package export serialises session records and statistics to the CSV,
// JSON and Markdown interchange formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
)

// CSVHeader is the fixed tabular column set, one row per frame.
var CSVHeader = []string{
	"frame_id",
	"timestamp",
	"datetime",
	"neck_angle",
	"trunk_angle",
	"upper_arm_angle",
	"forearm_angle",
	"wrist_angle",
	"leg_angle",
	"reba_score",
	"risk_level",
}

// angleField serialises an optional angle. A missing angle is an empty
// field, never 0 — zero degrees is a real measurement.
func angleField(a pose.Angle) string {
	if !a.Valid {
		return ""
	}
	return strconv.FormatFloat(a.Degrees, 'f', 2, 64)
}

// CSVRow formats one session record in CSVHeader column order.
func CSVRow(rec session.SessionRecord) []string {
	return []string{
		strconv.Itoa(rec.FrameID),
		strconv.FormatFloat(float64(rec.Timestamp.UnixNano())/1e9, 'f', 3, 64),
		rec.Timestamp.Format("2006-01-02T15:04:05.000"),
		angleField(rec.Angles.Neck),
		angleField(rec.Angles.Trunk),
		angleField(rec.Angles.UpperArm),
		angleField(rec.Angles.Forearm),
		angleField(rec.Angles.Wrist),
		angleField(rec.Angles.Leg),
		strconv.Itoa(rec.Score),
		string(rec.RiskLevel),
	}
}

// CSVWriter streams session records to w, flushing every row so a crash
// loses at most the row in flight.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header immediately and returns the streaming
// writer.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if err := cw.w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return cw, nil
}

// Write appends one record and flushes.
func (cw *CSVWriter) Write(rec session.SessionRecord) error {
	if err := cw.w.Write(CSVRow(rec)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}
