// Command reba analyses a recorded pose log, scoring every frame with the
// REBA method, serving live results over HTTP and writing the session
// artifacts (CSV, JSON, report, plots) at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/export"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/poselog"
	"github.com/banshee-data/posture.report/internal/recorder"
	"github.com/banshee-data/posture.report/internal/report"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	configPath = flag.String("config", "", "Path to processing config JSON")
	dbPath     = flag.String("db", "posture.db", "Path to sqlite database")
	source     = flag.String("source", "", "Path to a recorded pose log directory")
	record     = flag.Bool("record", false, "Record frames, stills and CSV during the session")
	autoStart  = flag.Bool("start", true, "Start the analysis session immediately")
	migrations = flag.String("migrations", "internal/db/migrations", "Path to migrations directory")
)

// replayEstimator forwards detections to whichever replay source the
// current session opened.
type replayEstimator struct {
	current *atomic.Pointer[poselog.ReplaySource]
}

func (e *replayEstimator) Detect(f session.Frame) (*pose.Skeleton, bool) {
	src := e.current.Load()
	if src == nil {
		return nil, false
	}
	return src.Detect(f)
}

func main() {
	flag.Parse()

	// Optional .env for deploy-specific settings; absence is fine.
	_ = godotenv.Load()

	if len(flag.Args()) > 0 && flag.Args()[0] == "migrate" {
		runMigrate(flag.Args()[1:])
		return
	}

	log.Printf("posture.report %s (%s)", version.Version, version.GitSHA)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *source == "" {
		log.Fatal("A -source pose log directory is required")
	}

	cfg := config.EmptyProcessingConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadProcessingConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var current atomic.Pointer[poselog.ReplaySource]
	open := func() (session.FrameSource, error) {
		src, err := poselog.NewReplaySource(*source)
		if err != nil {
			return nil, err
		}
		current.Store(src)
		return src, nil
	}

	var rec *recorder.Recorder
	var sink session.FrameSink
	if *record {
		rec = recorder.New(recorder.Config{
			FPS:           cfg.GetRecordFPS(),
			QueueCapacity: cfg.GetQueueCapacity(),
			Strategy:      cfg.GetDropStrategy(),
		})
		sink = rec
	}

	controller, err := session.NewController(session.ControllerConfig{
		Open:         open,
		Estimator:    &replayEstimator{current: &current},
		Source:       *source,
		Sink:         sink,
		Store:        database,
		Side:         cfg.GetSide(),
		Qualifiers:   cfg.Qualifiers(),
		SkipInterval: cfg.GetSkipInterval(),
		PollInterval: cfg.GetPollInterval(),
		LoopDelay:    cfg.GetLoopDelay(),
		StopTimeout:  cfg.GetStopTimeout(),
		RingCapacity: cfg.GetRingCapacity(),
	})
	if err != nil {
		log.Fatalf("Failed to create session controller: %v", err)
	}

	finished := make(chan struct{}, 1)
	controller.Events().OnFinished(func() {
		select {
		case finished <- struct{}{}:
		default:
		}
	})
	controller.Events().OnError(func(err error) {
		log.Printf("session error: %v", err)
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewWebServer(api.WebServerConfig{
		Address:    *listen,
		Controller: controller,
		Recorder:   rec,
		DB:         database,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("web server: %v", err)
		}
	}()

	outputDir := filepath.Join(cfg.GetOutputDir(), time.Now().Format("20060102_150405"))
	if *autoStart {
		if rec != nil {
			if err := rec.Start(outputDir); err != nil {
				log.Fatalf("Failed to start recorder: %v", err)
			}
		}
		if err := controller.Start(); err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		log.Println("interrupted, stopping session...")
	case <-finished:
		log.Println("source exhausted, finalising session...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := controller.Stop(shutdownCtx); err != nil {
		log.Printf("stop session: %v", err)
	}
	if rec != nil {
		dir := rec.Stop()
		if drops := rec.Drops(); drops > 0 {
			log.Printf("recorder dropped %d frames under backpressure", drops)
		}
		log.Printf("recording written to %s", dir)
	}

	if controller.SessionID() != "" {
		writeArtifacts(controller, outputDir)
	}

	stop()
	wg.Wait()
}

// writeArtifacts renders the post-session outputs: structured JSON, a
// markdown report and the timeline plots.
func writeArtifacts(controller *session.Controller, outputDir string) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Printf("create output directory: %v", err)
		return
	}

	summary := controller.Summary()
	st := controller.Stats()
	info := export.SessionInfo{
		SessionID:   summary.SessionID,
		StartTime:   summary.StartedAt,
		EndTime:     summary.EndedAt,
		TotalFrames: st.Basic.TotalFrames,
		Source:      summary.Source,
	}

	jsonPath := filepath.Join(outputDir, "session.json")
	if f, err := os.Create(jsonPath); err != nil {
		log.Printf("create %s: %v", jsonPath, err)
	} else {
		doc := export.BuildDocument(info, controller.Ring(), st)
		if err := export.WriteJSON(f, doc); err != nil {
			log.Printf("write session json: %v", err)
		}
		f.Close()
	}

	reportPath := filepath.Join(outputDir, "report.md")
	if f, err := os.Create(reportPath); err != nil {
		log.Printf("create %s: %v", reportPath, err)
	} else {
		if err := export.WriteMarkdownReport(f, info, st); err != nil {
			log.Printf("write report: %v", err)
		}
		f.Close()
	}

	if err := report.SavePlots(controller.Ring().Records(), outputDir); err != nil {
		log.Printf("save plots: %v", err)
	}

	log.Printf("session artifacts written to %s", outputDir)
}

// runMigrate handles the 'migrate' subcommand.
func runMigrate(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: reba migrate <up|down|version>")
		os.Exit(1)
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(*migrations); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied successfully")

	case "down":
		if err := database.MigrateDown(*migrations); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")

	case "version":
		version, dirty, err := database.MigrateVersion(*migrations)
		if err != nil {
			log.Fatalf("Failed to get migration version: %v", err)
		}
		log.Printf("Database at version %d (dirty: %v)", version, dirty)

	default:
		fmt.Printf("Unknown migrate action: %s\n", args[0])
		os.Exit(1)
	}
}
