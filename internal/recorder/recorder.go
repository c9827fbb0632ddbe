package recorder

import (
	"time"

	"candlescope/pkg/model"
)

// RunRecord is the outcome of one charting run
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	Ticker     string
	Category   string
	Fallback   bool
	Candles    int
	LastBar    time.Time
	ChartPath  string
	ExportPath string
	Events     []model.PatternEvent
}

// RunSummary is a stored run without its events
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Ticker    string
	Category  string
	Fallback  bool
	Candles   int
	Patterns  int
	ChartPath string
}

// Recorder persists run history for later review
type Recorder interface {
	RecordRun(rec *RunRecord) error
	Close() error
}

// NoopRecorder is used when no history database is configured
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error { return nil }
func (n *NoopRecorder) Close() error                 { return nil }
