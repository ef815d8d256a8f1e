// Package api exposes the HTTP interface for session control, live
// statistics and chart rendering.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/export"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/recorder"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/version"
)

// WebServer handles the HTTP interface for a running analysis session.
type WebServer struct {
	address    string
	controller *session.Controller
	recorder   *recorder.Recorder
	db         *db.DB
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Controller *session.Controller
	Recorder   *recorder.Recorder
	DB         *db.DB
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    config.Address,
		controller: config.Controller,
		recorder:   config.Recorder,
		db:         config.DB,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
// when ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/session", ws.handleSessionStatus)
	mux.HandleFunc("/api/session/start", ws.handleSessionStart)
	mux.HandleFunc("/api/session/stop", ws.handleSessionStop)
	mux.HandleFunc("/api/session/pause", ws.handleSessionPause)
	mux.HandleFunc("/api/session/resume", ws.handleSessionResume)
	mux.HandleFunc("/api/session/seek", ws.handleSessionSeek)
	mux.HandleFunc("/api/session/params", ws.handleSessionParams)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/frames/recent", ws.handleRecentFrames)
	mux.HandleFunc("/api/frames/highrisk", ws.handleHighRiskFrames)
	mux.HandleFunc("/api/sessions", ws.handleStoredSessions)
	mux.HandleFunc("/api/export/json", ws.handleExportJSON)
	mux.HandleFunc("/api/export/report", ws.handleExportReport)
	mux.HandleFunc("/charts/risk", ws.handleRiskChart)
	mux.HandleFunc("/charts/score", ws.handleScoreChart)

	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (ws *WebServer) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	current, total := ws.controller.Progress()
	status := map[string]any{
		"version":       version.Version,
		"session":       ws.controller.Summary(),
		"state":         ws.controller.State().String(),
		"current_frame": current,
		"total_frames":  total,
	}
	if ws.recorder != nil {
		status["recording"] = ws.recorder.Recording()
		status["recorder_drops"] = ws.recorder.Drops()
	}
	ws.writeJSON(w, status)
}

func (ws *WebServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := ws.controller.Start(); err != nil {
		ws.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	ws.writeJSON(w, map[string]string{"session_id": ws.controller.SessionID()})
}

func (ws *WebServer) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := ws.controller.Stop(r.Context()); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, map[string]string{"state": ws.controller.State().String()})
}

func (ws *WebServer) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.controller.Pause()
	ws.writeJSON(w, map[string]string{"state": ws.controller.State().String()})
}

func (ws *WebServer) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.controller.Resume()
	ws.writeJSON(w, map[string]string{"state": ws.controller.State().String()})
}

func (ws *WebServer) handleSessionSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	frame, err := strconv.Atoi(r.URL.Query().Get("frame"))
	if err != nil || frame < 0 {
		ws.writeJSONError(w, http.StatusBadRequest, "missing or invalid 'frame' parameter")
		return
	}
	ws.controller.Seek(frame)
	ws.writeJSON(w, map[string]int{"frame": frame})
}

// SessionParams is the runtime-updatable parameter set. The schema matches
// the processing config file.
type SessionParams struct {
	Side            string  `json:"side"`
	TrunkTwisted    bool    `json:"trunk_twisted"`
	TrunkSideBent   bool    `json:"trunk_side_bent"`
	NeckTwisted     bool    `json:"neck_twisted"`
	NeckSideBent    bool    `json:"neck_side_bent"`
	SingleLegStance bool    `json:"single_leg_stance"`
	ArmAbducted     bool    `json:"arm_abducted"`
	ShoulderRaised  bool    `json:"shoulder_raised"`
	ArmSupported    bool    `json:"arm_supported"`
	WristTwisted    bool    `json:"wrist_twisted"`
	LoadKg          float64 `json:"load_kg"`
	ShockForce      bool    `json:"shock_force"`
	Coupling        string  `json:"coupling"`
	StaticHold      bool    `json:"static_hold"`
	HighRepetition  bool    `json:"high_repetition"`
	RapidChange     bool    `json:"rapid_change"`
}

func (p SessionParams) qualifiers() reba.Qualifiers {
	return reba.Qualifiers{
		TrunkTwisted:    p.TrunkTwisted,
		TrunkSideBent:   p.TrunkSideBent,
		NeckTwisted:     p.NeckTwisted,
		NeckSideBent:    p.NeckSideBent,
		SingleLegStance: p.SingleLegStance,
		ArmAbducted:     p.ArmAbducted,
		ShoulderRaised:  p.ShoulderRaised,
		ArmSupported:    p.ArmSupported,
		WristTwisted:    p.WristTwisted,
		LoadKg:          p.LoadKg,
		ShockForce:      p.ShockForce,
		Coupling:        reba.Coupling(p.Coupling),
		StaticHold:      p.StaticHold,
		HighRepetition:  p.HighRepetition,
		RapidChange:     p.RapidChange,
	}
}

func (ws *WebServer) handleSessionParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var params SessionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("parse params: %v", err))
		return
	}
	side := pose.Side(params.Side)
	if params.Side != "" && !side.Valid() {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid side %q", params.Side))
		return
	}
	ws.controller.SetParameters(side, params.qualifiers())
	ws.writeJSON(w, map[string]string{"status": "updated"})
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.writeJSON(w, ws.controller.Stats())
}

func (ws *WebServer) handleRecentFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	records := ws.controller.Ring().Records()
	if lim := r.URL.Query().Get("limit"); lim != "" {
		if v, err := strconv.Atoi(lim); err == nil && v > 0 && v < len(records) {
			records = records[len(records)-v:]
		}
	}
	ws.writeJSON(w, records)
}

func (ws *WebServer) handleHighRiskFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	threshold := 8
	if t := r.URL.Query().Get("threshold"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v > 0 {
			threshold = v
		}
	}
	ws.writeJSON(w, ws.controller.Ring().HighRisk(threshold))
}

func (ws *WebServer) handleStoredSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := ws.db.Sessions(r.Context(), limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
		return
	}
	ws.writeJSON(w, sessions)
}

func (ws *WebServer) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	summary := ws.controller.Summary()
	st := ws.controller.Stats()
	doc := export.BuildDocument(export.SessionInfo{
		SessionID:   summary.SessionID,
		StartTime:   summary.StartedAt,
		EndTime:     summary.EndedAt,
		TotalFrames: st.Basic.TotalFrames,
		Source:      summary.Source,
	}, ws.controller.Ring(), st)
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, doc); err != nil {
		log.Printf("api: %v", err)
	}
}

func (ws *WebServer) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	summary := ws.controller.Summary()
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	err := export.WriteMarkdownReport(w, export.SessionInfo{
		SessionID: summary.SessionID,
		StartTime: summary.StartedAt,
		EndTime:   summary.EndedAt,
		Source:    summary.Source,
	}, ws.controller.Stats())
	if err != nil {
		log.Printf("api: %v", err)
	}
}

// Close shuts the server down immediately.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}
