package api

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/export"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
)

// replayFrames is a fixed-length fake frame source.
type replayFrames struct {
	mu     sync.Mutex
	frames int
	pos    int
}

func (s *replayFrames) Read() (session.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.frames {
		return session.Frame{}, false
	}
	f := session.Frame{Index: s.pos, Width: 2, Height: 2, Timestamp: time.Now()}
	s.pos++
	return f, true
}

func (s *replayFrames) Seek(frameIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frameIndex >= 0 && frameIndex <= s.frames {
		s.pos = frameIndex
	}
}

func (s *replayFrames) TotalFrames() int { return s.frames }
func (s *replayFrames) Release()         {}

// uprightEstimator detects the same standing posture everywhere.
type uprightEstimator struct{}

func (uprightEstimator) Detect(f session.Frame) (*pose.Skeleton, bool) {
	var s pose.Skeleton
	set := func(j pose.Joint, x, y float64) {
		s[j] = pose.Landmark{X: x, Y: y, Confidence: 0.9}
	}
	set(pose.LeftEye, 0.45, 0.10)
	set(pose.RightEye, 0.55, 0.10)
	set(pose.LeftShoulder, 0.40, 0.30)
	set(pose.RightShoulder, 0.60, 0.30)
	set(pose.LeftElbow, 0.40, 0.42)
	set(pose.RightElbow, 0.60, 0.42)
	set(pose.LeftWrist, 0.40, 0.52)
	set(pose.RightWrist, 0.60, 0.52)
	set(pose.LeftIndex, 0.40, 0.55)
	set(pose.RightIndex, 0.60, 0.55)
	set(pose.LeftHip, 0.42, 0.55)
	set(pose.RightHip, 0.58, 0.55)
	set(pose.LeftKnee, 0.42, 0.75)
	set(pose.RightKnee, 0.58, 0.75)
	set(pose.LeftAnkle, 0.42, 0.95)
	set(pose.RightAnkle, 0.58, 0.95)
	return &s, true
}

type testEnv struct {
	ws       *WebServer
	mux      *http.ServeMux
	finished chan struct{}
}

func newTestEnv(t *testing.T, database *db.DB) *testEnv {
	t.Helper()
	controller, err := session.NewController(session.ControllerConfig{
		Open:      func() (session.FrameSource, error) { return &replayFrames{frames: 5}, nil },
		Estimator: uprightEstimator{},
		Source:    "fake://frames",
		Store:     storeOrNil(database),
		Logger:    log.New(logWriter{t}, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	finished := make(chan struct{}, 1)
	controller.Events().OnFinished(func() {
		select {
		case finished <- struct{}{}:
		default:
		}
	})

	ws := NewWebServer(WebServerConfig{
		Address:    ":0",
		Controller: controller,
		DB:         database,
	})
	return &testEnv{ws: ws, mux: ws.setupRoutes(), finished: finished}
}

func storeOrNil(database *db.DB) session.Store {
	if database == nil {
		return nil
	}
	return database
}

func (e *testEnv) do(t *testing.T, method, target string, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s = %d, want %d (body %q)", method, target, rec.Code, wantStatus, rec.Body.String())
	}
	return rec
}

func (e *testEnv) runSession(t *testing.T) {
	t.Helper()
	e.do(t, http.MethodPost, "/api/session/start", http.StatusOK)
	select {
	case <-e.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	e.do(t, http.MethodPost, "/api/session/stop", http.StatusOK)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("health body = %q", rec.Body.String())
	}
}

func TestSessionStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/session", http.StatusOK)

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["state"] != "idle" {
		t.Errorf("state = %v, want idle", status["state"])
	}
	if _, ok := status["version"]; !ok {
		t.Error("status missing version")
	}

	env.do(t, http.MethodPost, "/api/session", http.StatusMethodNotAllowed)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/session/start", http.StatusOK)
	var started map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatal(err)
	}
	if started["session_id"] == "" {
		t.Error("start returned no session ID")
	}

	select {
	case <-env.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	env.do(t, http.MethodPost, "/api/session/stop", http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/stats", http.StatusOK)
	var st struct {
		Basic struct {
			TotalFrames int64 `json:"total_frames"`
			ValidFrames int64 `json:"valid_frames"`
		} `json:"basic"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Basic.TotalFrames != 5 || st.Basic.ValidFrames != 5 {
		t.Errorf("stats = %+v, want 5/5", st.Basic)
	}

	rec = env.do(t, http.MethodGet, "/api/frames/recent?limit=2", http.StatusOK)
	var frames []session.SessionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &frames); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("limit=2 returned %d frames", len(frames))
	}
	if frames[1].FrameID != 4 {
		t.Errorf("last frame ID = %d, want 4", frames[1].FrameID)
	}

	env.do(t, http.MethodGet, "/api/frames/highrisk", http.StatusOK)
}

func TestSessionSeekValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/session/seek", http.StatusBadRequest)
	env.do(t, http.MethodPost, "/api/session/seek?frame=-2", http.StatusBadRequest)
	env.do(t, http.MethodPost, "/api/session/seek?frame=3", http.StatusOK)
	env.do(t, http.MethodGet, "/api/session/seek?frame=3", http.StatusMethodNotAllowed)
}

func TestSessionParamsValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/session/params", strings.NewReader(body))
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(`{"side": "left", "load_kg": 6}`); rec.Code != http.StatusOK {
		t.Errorf("valid params = %d (body %q)", rec.Code, rec.Body.String())
	}
	if rec := post(`{"side": "diagonal"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid side = %d, want 400", rec.Code)
	}
	if rec := post(`{"side": `); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rec.Code)
	}
}

func TestStoredSessions(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "posture.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	env := newTestEnv(t, database)
	env.runSession(t)

	rec := env.do(t, http.MethodGet, "/api/sessions", http.StatusOK)
	var sessions []db.SessionRow
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d stored sessions, want 1", len(sessions))
	}
	if sessions[0].TotalFrames != 5 {
		t.Errorf("stored session frames = %d, want 5", sessions[0].TotalFrames)
	}
}

func TestStoredSessionsNoDatabase(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/sessions", http.StatusInternalServerError)
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runSession(t)

	rec := env.do(t, http.MethodGet, "/api/export/json", http.StatusOK)
	var doc export.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.RecentFrames) != 5 {
		t.Errorf("export carries %d frames, want 5", len(doc.RecentFrames))
	}
	if doc.SessionInfo.SessionID == "" {
		t.Error("export missing session ID")
	}

	rec = env.do(t, http.MethodGet, "/api/export/report", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "# REBA Session Report") {
		t.Error("report export missing the title")
	}
}

func TestCharts(t *testing.T) {
	env := newTestEnv(t, nil)

	// No frames yet: the score timeline has nothing to draw.
	env.do(t, http.MethodGet, "/charts/score", http.StatusNotFound)
	// The risk distribution renders even when empty.
	rec := env.do(t, http.MethodGet, "/charts/risk", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Error("risk chart is not an HTML page")
	}

	env.runSession(t)
	rec = env.do(t, http.MethodGet, "/charts/score", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Error("score chart is not an HTML page")
	}
}

// logWriter routes server logs through the test output.
type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
