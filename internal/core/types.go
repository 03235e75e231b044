package core

import (
	"context"
	"time"
)

// WatermarkLayout is the day.month.year form used for published dates and
// for the persisted watermark value.
const WatermarkLayout = "02.01.2006"

// dateParseLayout also accepts single-digit days and months ("1.3.2024").
const dateParseLayout = "2.1.2006"

// CategoryCodeWidth is the width of a classification code. Declaration codes
// are truncated to this many characters before category lookup.
const CategoryCodeWidth = 4

// DefaultFallbackCategory is assigned to declaration codes whose prefix has no
// terminal row in the classification table.
const DefaultFallbackCategory = "ПРОЧЕЕ"

// ReportHeader is the fixed header line of the serialized report.
var ReportHeader = []string{"code", "count", "category"}

// RemoteTable describes the classification table currently published upstream.
type RemoteTable struct {
	PublishedAt time.Time
	DownloadURL string
}

// Decision is the outcome of a freshness check. When Proceed is false the run
// terminates early without touching the network again or the stores.
type Decision struct {
	Proceed  bool
	Previous time.Time // stored watermark, zero if absent or unparsable
	Table    RemoteTable
}

// Skip reports whether the remote table is not newer than the watermark.
func (d Decision) Skip() bool { return !d.Proceed }

// ClassificationIndex maps a terminal classification code to its label.
type ClassificationIndex map[string]string

// ReportRow is one line of the enriched report.
type ReportRow struct {
	Code     string
	Count    int
	Category string
}

// Prober decides whether a refresh should run.
type Prober interface {
	Check(ctx context.Context, previous time.Time) (Decision, error)
}

// Ingestor downloads and normalizes the classification archive, returning the
// path of the UTF-8 classification file.
type Ingestor interface {
	Ingest(ctx context.Context, url string) (string, error)
}

// ReportSink persists report rows. EnsureTable must be safe to call repeatedly.
type ReportSink interface {
	EnsureTable(ctx context.Context) error
	Load(ctx context.Context, rows []ReportRow) (int64, error)
}

// WatermarkStore persists the last ingested publication date across runs.
// Get returns ok=false when no value has been stored yet.
type WatermarkStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// ArtifactPublisher stores run artifacts outside the scratch directory.
type ArtifactPublisher interface {
	Publish(ctx context.Context, key, path string) error
}

// RunOutcome is the terminal state of a pipeline run.
type RunOutcome string

const (
	OutcomeSkipped   RunOutcome = "skipped"
	OutcomeCompleted RunOutcome = "completed"
	OutcomeDryRun    RunOutcome = "dry_run"
	OutcomeFailed    RunOutcome = "failed"
)

// RunResult summarizes one pipeline run.
type RunResult struct {
	RunID             string
	Outcome           RunOutcome
	PreviousWatermark string
	NewWatermark      string
	DownloadURL       string
	ReportFile        string
	LogRows           int
	ReportRows        int
	Loaded            int64
	StartedAt         time.Time
	Duration          time.Duration
	Error             string
}
