// Package config loads the processing configuration from JSON. Fields are
// pointers so a partial file overrides only what it names; the Get* methods
// supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/recorder"
)

// ProcessingConfig is the root configuration. The schema matches the
// /api/session/params endpoint so the same JSON serves startup configuration
// and runtime updates.
type ProcessingConfig struct {
	// Analysis params
	Side          *string  `json:"side,omitempty"` // "left" or "right"
	SkipInterval  *int     `json:"skip_interval,omitempty"`
	PollInterval  *string  `json:"poll_interval,omitempty"` // duration string like "50ms"
	LoopDelay     *string  `json:"loop_delay,omitempty"`
	StopTimeout   *string  `json:"stop_timeout,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`

	// Assessment qualifiers
	LoadKg         *float64 `json:"load_kg,omitempty"`
	Coupling       *string  `json:"coupling,omitempty"` // good, fair, poor, unacceptable
	StaticHold     *bool    `json:"static_hold,omitempty"`
	HighRepetition *bool    `json:"high_repetition,omitempty"`

	// Buffer params
	RingCapacity *int `json:"ring_capacity,omitempty"`

	// Recorder params
	OutputDir     *string  `json:"output_dir,omitempty"`
	QueueCapacity *int     `json:"queue_capacity,omitempty"`
	DropStrategy  *string  `json:"drop_strategy,omitempty"` // drop_oldest or drop_newest
	RecordFPS     *float64 `json:"record_fps,omitempty"`
}

// EmptyProcessingConfig returns a ProcessingConfig with all fields nil.
func EmptyProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{}
}

// LoadProcessingConfig loads a ProcessingConfig from a JSON file. Fields
// omitted from the file retain their defaults, so partial configs are safe.
func LoadProcessingConfig(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyProcessingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ProcessingConfig) Validate() error {
	if c.Side != nil {
		if s := pose.Side(*c.Side); !s.Valid() {
			return fmt.Errorf("side must be %q or %q, got %q", pose.SideLeft, pose.SideRight, *c.Side)
		}
	}

	if c.SkipInterval != nil && *c.SkipInterval < 0 {
		return fmt.Errorf("skip_interval must be non-negative, got %d", *c.SkipInterval)
	}

	for name, v := range map[string]*string{
		"poll_interval": c.PollInterval,
		"loop_delay":    c.LoopDelay,
		"stop_timeout":  c.StopTimeout,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.LoadKg != nil && *c.LoadKg < 0 {
		return fmt.Errorf("load_kg must be non-negative, got %f", *c.LoadKg)
	}

	if c.Coupling != nil {
		switch reba.Coupling(*c.Coupling) {
		case reba.CouplingGood, reba.CouplingFair, reba.CouplingPoor, reba.CouplingUnacceptable:
		default:
			return fmt.Errorf("unknown coupling %q", *c.Coupling)
		}
	}

	if c.RingCapacity != nil && *c.RingCapacity < 0 {
		return fmt.Errorf("ring_capacity must be non-negative, got %d", *c.RingCapacity)
	}

	if c.QueueCapacity != nil && *c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be non-negative, got %d", *c.QueueCapacity)
	}

	if c.DropStrategy != nil {
		switch recorder.Strategy(*c.DropStrategy) {
		case recorder.DropOldest, recorder.DropNewest:
		default:
			return fmt.Errorf("unknown drop_strategy %q", *c.DropStrategy)
		}
	}

	return nil
}

// GetSide returns the analysis side or the default (right).
func (c *ProcessingConfig) GetSide() pose.Side {
	if c.Side == nil {
		return pose.SideRight
	}
	return pose.Side(*c.Side)
}

// GetSkipInterval returns the skip_interval value or the default.
func (c *ProcessingConfig) GetSkipInterval() int {
	if c.SkipInterval == nil {
		return 1 // classify every frame
	}
	return *c.SkipInterval
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *ProcessingConfig) GetPollInterval() time.Duration {
	return c.duration(c.PollInterval, 50*time.Millisecond)
}

// GetLoopDelay parses and returns the LoopDelay as a time.Duration.
func (c *ProcessingConfig) GetLoopDelay() time.Duration {
	return c.duration(c.LoopDelay, 0)
}

// GetStopTimeout parses and returns the StopTimeout as a time.Duration.
func (c *ProcessingConfig) GetStopTimeout() time.Duration {
	return c.duration(c.StopTimeout, 5*time.Second)
}

func (c *ProcessingConfig) duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *ProcessingConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return pose.MinConfidence
	}
	return *c.MinConfidence
}

// GetRingCapacity returns the ring_capacity value or the default.
func (c *ProcessingConfig) GetRingCapacity() int {
	if c.RingCapacity == nil {
		return 0 // session.DefaultRingCapacity applies
	}
	return *c.RingCapacity
}

// GetOutputDir returns the output_dir value or the default.
func (c *ProcessingConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "recordings"
	}
	return *c.OutputDir
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *ProcessingConfig) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return recorder.DefaultQueueCapacity
	}
	return *c.QueueCapacity
}

// GetDropStrategy returns the drop_strategy value or the default.
func (c *ProcessingConfig) GetDropStrategy() recorder.Strategy {
	if c.DropStrategy == nil {
		return recorder.DropOldest
	}
	return recorder.Strategy(*c.DropStrategy)
}

// GetRecordFPS returns the record_fps value or the default.
func (c *ProcessingConfig) GetRecordFPS() float64 {
	if c.RecordFPS == nil || *c.RecordFPS <= 0 {
		return 30
	}
	return *c.RecordFPS
}

// Qualifiers assembles the assessor qualifiers the config carries; the rest
// of the Qualifiers struct stays at its neutral zero value.
func (c *ProcessingConfig) Qualifiers() reba.Qualifiers {
	var q reba.Qualifiers
	if c.LoadKg != nil {
		q.LoadKg = *c.LoadKg
	}
	if c.Coupling != nil {
		q.Coupling = reba.Coupling(*c.Coupling)
	}
	if c.StaticHold != nil {
		q.StaticHold = *c.StaticHold
	}
	if c.HighRepetition != nil {
		q.HighRepetition = *c.HighRepetition
	}
	return q
}
