// Package db persists finished analysis sessions to sqlite and serves the
// admin debug surface over the same handle.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/stats"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at path and ensures
// the schema. Use OpenDB when migrations will manage the schema instead.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			source            TEXT,
			started_at        TIMESTAMP,
			ended_at          TIMESTAMP,
			total_frames      BIGINT,
			valid_frames      BIGINT,
			mean_score        DOUBLE,
			max_score         DOUBLE,
			stats_json        TEXT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS frame_records (
			session_id        TEXT,
			frame_id          BIGINT,
			frame_time        TIMESTAMP,
			neck_angle        DOUBLE,
			trunk_angle       DOUBLE,
			upper_arm_angle   DOUBLE,
			forearm_angle     DOUBLE,
			wrist_angle       DOUBLE,
			leg_angle         DOUBLE,
			reba_score        BIGINT,
			risk_level        TEXT,
			detail_json       TEXT,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_frame_records_session
			ON frame_records (session_id, frame_id);
	`)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// SaveSession writes the session summary and its retained frame records in
// one transaction. Implements the controller's Store.
func (db *DB) SaveSession(ctx context.Context, summary session.Summary, st stats.SessionStats, records []session.SessionRecord) error {
	statsJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session stats: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(session_id, source, started_at, ended_at, total_frames, valid_frames, mean_score, max_score, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.SessionID, summary.Source, summary.StartedAt, summary.EndedAt,
		st.Basic.TotalFrames, st.Basic.ValidFrames, st.Score.Mean, st.Score.Max, string(statsJSON))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM frame_records WHERE session_id = ?", summary.SessionID)
	if err != nil {
		return fmt.Errorf("clear frame records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frame_records
			(session_id, frame_id, frame_time, neck_angle, trunk_angle, upper_arm_angle,
			 forearm_angle, wrist_angle, leg_angle, reba_score, risk_level, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		detailJSON, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("marshal frame %d detail: %w", rec.FrameID, err)
		}
		_, err = stmt.ExecContext(ctx,
			summary.SessionID, rec.FrameID, rec.Timestamp,
			nullAngle(rec.Angles.Neck), nullAngle(rec.Angles.Trunk),
			nullAngle(rec.Angles.UpperArm), nullAngle(rec.Angles.Forearm),
			nullAngle(rec.Angles.Wrist), nullAngle(rec.Angles.Leg),
			rec.Score, string(rec.RiskLevel), string(detailJSON))
		if err != nil {
			return fmt.Errorf("insert frame record %d: %w", rec.FrameID, err)
		}
	}

	return tx.Commit()
}

func nullAngle(a pose.Angle) sql.NullFloat64 {
	return sql.NullFloat64{Float64: a.Degrees, Valid: a.Valid}
}

// SessionRow is one stored session summary.
type SessionRow struct {
	SessionID   string    `json:"session_id"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	TotalFrames int64     `json:"total_frames"`
	ValidFrames int64     `json:"valid_frames"`
	MeanScore   float64   `json:"mean_score"`
	MaxScore    float64   `json:"max_score"`
}

// Sessions returns stored sessions, most recent first.
func (db *DB) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, source, started_at, ended_at, total_frames, valid_frames, mean_score, max_score
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SessionID, &s.Source, &s.StartedAt, &s.EndedAt,
			&s.TotalFrames, &s.ValidFrames, &s.MeanScore, &s.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SessionStats returns the stored statistics document for one session.
func (db *DB) SessionStats(ctx context.Context, sessionID string) (stats.SessionStats, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT stats_json FROM sessions WHERE session_id = ?", sessionID).Scan(&raw)
	if err != nil {
		return stats.SessionStats{}, err
	}
	var st stats.SessionStats
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return stats.SessionStats{}, fmt.Errorf("unmarshal session stats: %w", err)
	}
	return st, nil
}

// HighRiskFrames returns stored frame records at or above the score
// threshold for one session.
func (db *DB) HighRiskFrames(ctx context.Context, sessionID string, threshold int) ([]session.SessionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT frame_id, frame_time, neck_angle, trunk_angle, upper_arm_angle,
		       forearm_angle, wrist_angle, leg_angle, reba_score, risk_level, detail_json
		FROM frame_records
		WHERE session_id = ? AND reba_score >= ?
		ORDER BY frame_id`, sessionID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.SessionRecord
	for rows.Next() {
		var rec session.SessionRecord
		var neck, trunk, upperArm, forearm, wrist, leg sql.NullFloat64
		var riskLevel, detailJSON string
		if err := rows.Scan(&rec.FrameID, &rec.Timestamp, &neck, &trunk, &upperArm,
			&forearm, &wrist, &leg, &rec.Score, &riskLevel, &detailJSON); err != nil {
			return nil, err
		}
		rec.Angles = pose.AngleSet{
			Neck:     fromNull(neck),
			Trunk:    fromNull(trunk),
			UpperArm: fromNull(upperArm),
			Forearm:  fromNull(forearm),
			Wrist:    fromNull(wrist),
			Leg:      fromNull(leg),
		}
		rec.RiskLevel = reba.RiskLevel(riskLevel)
		if detailJSON != "" {
			if err := json.Unmarshal([]byte(detailJSON), &rec.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal frame %d detail: %w", rec.FrameID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func fromNull(v sql.NullFloat64) pose.Angle {
	return pose.Angle{Degrees: v.Float64, Valid: v.Valid}
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://posture.db", db.DB, &tailsql.DBOptions{
		Label: "Posture DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
