package core

// pipeline.go sequences one enrichment run:
//
//	probe -> (skip | ingest -> classify) ‖ aggregate -> build -> load -> publish -> commit
//
// The log aggregation does not depend on the archive and runs alongside the
// ingest/classify branch. The watermark is read once before the probe and
// written once, after the load has succeeded. Any failure before the commit
// leaves the watermark untouched, so the next run retries the same refresh.

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/JonMunkholm/customs/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PipelineOptions holds the per-deployment settings of a Pipeline.
type PipelineOptions struct {
	WatermarkKey     string
	LogFile          string // declaration log, tab-delimited
	ReportFile       string // serialized report written each run
	FallbackCategory string
	LoadTimeout      time.Duration
}

// RunOptions holds per-run switches.
type RunOptions struct {
	// DryRun stops after the report is built: nothing is loaded or committed.
	DryRun bool
}

// Pipeline wires the pipeline steps to their collaborators.
type Pipeline struct {
	Prober     Prober
	Ingestor   Ingestor
	Sink       ReportSink
	Watermarks WatermarkStore
	Publisher  ArtifactPublisher // optional
	Guard      *RunGuard
	Options    PipelineOptions

	mu   sync.RWMutex
	last *RunResult
}

// LastResult returns the result of the most recent finished run.
func (p *Pipeline) LastResult() (RunResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return RunResult{}, false
	}
	return *p.last, true
}

// Run executes one pipeline run. A run whose probe finds nothing newer
// returns OutcomeSkipped with a nil error.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	runID := uuid.New().String()
	if err := p.acquire(runID); err != nil {
		return RunResult{RunID: runID}, err
	}
	defer p.release()
	return p.execute(ctx, runID, opts)
}

// RunCompletion is delivered when a run started with Start finishes.
type RunCompletion struct {
	Result RunResult
	Err    error
}

// Start takes the run guard and executes the run in the background. It fails
// immediately with ErrRunInProgress when another run is active. The returned
// channel receives exactly one RunCompletion.
func (p *Pipeline) Start(ctx context.Context, opts RunOptions) (string, <-chan RunCompletion, error) {
	runID := uuid.New().String()
	if err := p.acquire(runID); err != nil {
		return "", nil, err
	}

	done := make(chan RunCompletion, 1)
	go func() {
		defer p.release()
		res, err := p.execute(ctx, runID, opts)
		done <- RunCompletion{Result: res, Err: err}
	}()
	return runID, done, nil
}

// Active returns the state of the run guard.
func (p *Pipeline) Active() RunGuardStatus {
	if p.Guard == nil {
		return RunGuardStatus{}
	}
	return p.Guard.Status()
}

func (p *Pipeline) acquire(runID string) error {
	if p.Guard == nil {
		return nil
	}
	return p.Guard.TryAcquire(runID)
}

func (p *Pipeline) release() {
	if p.Guard != nil {
		p.Guard.Release()
	}
}

func (p *Pipeline) execute(ctx context.Context, runID string, opts RunOptions) (RunResult, error) {
	res := RunResult{
		RunID:     runID,
		StartedAt: time.Now(),
	}
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "dry_run", opts.DryRun)

	logger.Info("run started")
	err := p.run(ctx, logger, opts, &res)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		logger.Error("run failed",
			"step", FailedStep(err),
			"code", MapError(err).Code,
			"error", err,
			"duration_ms", res.Duration.Milliseconds(),
		)
	} else {
		logger.Info("run finished",
			"outcome", res.Outcome,
			"watermark", res.NewWatermark,
			"report_rows", res.ReportRows,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	p.mu.Lock()
	last := res
	p.last = &last
	p.mu.Unlock()

	return res, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, opts RunOptions, res *RunResult) error {
	raw, previous, err := LoadWatermark(ctx, p.Watermarks, p.Options.WatermarkKey)
	if err != nil {
		return wrapStep(StepWatermark, err, nil)
	}
	res.PreviousWatermark = raw

	var decision Decision
	err = step(logger, StepProbe, func() error {
		decision, err = p.Prober.Check(ctx, previous)
		return err
	})
	if err != nil {
		return wrapStep(StepProbe, err, ErrSourceUnavailable)
	}
	if decision.Skip() {
		res.Outcome = OutcomeSkipped
		res.NewWatermark = raw
		logger.Info("classification table is current, skipping",
			"watermark", raw,
			"published", FormatWatermark(decision.Table.PublishedAt),
		)
		return nil
	}
	res.DownloadURL = decision.Table.DownloadURL

	var (
		index  ClassificationIndex
		counts *OccurrenceIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var tablePath string
		err := step(logger, StepIngest, func() error {
			var err error
			tablePath, err = p.Ingestor.Ingest(gctx, decision.Table.DownloadURL)
			return err
		})
		if err != nil {
			return wrapStep(StepIngest, err, ErrFetch)
		}
		err = step(logger, StepClassify, func() error {
			var err error
			index, err = BuildClassificationIndexFile(tablePath)
			return err
		})
		return wrapStep(StepClassify, err, ErrParse)
	})
	g.Go(func() error {
		err := step(logger, StepAggregate, func() error {
			var err error
			counts, err = BuildOccurrenceIndexFile(p.Options.LogFile)
			return err
		})
		return wrapStep(StepAggregate, err, ErrParse)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	res.LogRows = counts.Rows()
	logger.Debug("inputs indexed", "categories", len(index), "codes", counts.Len())

	err = step(logger, StepBuild, func() error {
		rows := BuildReport(index, counts, p.fallback())
		res.ReportRows = len(rows)
		return WriteReportFile(p.Options.ReportFile, rows)
	})
	if err != nil {
		return wrapStep(StepBuild, err, nil)
	}
	res.ReportFile = p.Options.ReportFile

	if opts.DryRun {
		res.Outcome = OutcomeDryRun
		res.NewWatermark = raw
		return nil
	}

	err = step(logger, StepLoad, func() error {
		var err error
		res.Loaded, err = p.load(ctx)
		return err
	})
	if err != nil {
		return wrapStep(StepLoad, err, ErrLoad)
	}

	p.publish(ctx, logger, decision.Table)

	var next string
	err = step(logger, StepCommit, func() error {
		var err error
		next, err = WatermarkCommitter{Store: p.Watermarks, Key: p.Options.WatermarkKey}.
			Commit(ctx, previous, decision.Table.PublishedAt)
		return err
	})
	if err != nil {
		return wrapStep(StepCommit, err, nil)
	}
	res.NewWatermark = next
	res.Outcome = OutcomeCompleted
	return nil
}

// load streams the serialized report into the sink. The report file, not the
// in-memory rows, is the source so the loaded data matches the file left in
// the scratch directory.
func (p *Pipeline) load(ctx context.Context) (int64, error) {
	if p.Options.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Options.LoadTimeout)
		defer cancel()
	}
	if err := p.Sink.EnsureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure report table: %w", err)
	}
	rows, err := ReadReportFile(p.Options.ReportFile)
	if err != nil {
		return 0, err
	}
	return p.Sink.Load(ctx, rows)
}

// publish copies the run's report to the artifact store. Publishing is best
// effort: the report is already loaded, so a failure here is only logged.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, table RemoteTable) {
	if p.Publisher == nil {
		return
	}
	key := path.Join("reports", table.PublishedAt.Format("2006-01-02"), path.Base(p.Options.ReportFile))
	err := step(logger, StepPublish, func() error {
		return p.Publisher.Publish(ctx, key, p.Options.ReportFile)
	})
	if err != nil {
		logger.Warn("report artifact not published", "key", key, "error", err)
	}
}

func (p *Pipeline) fallback() string {
	if p.Options.FallbackCategory == "" {
		return DefaultFallbackCategory
	}
	return p.Options.FallbackCategory
}

// step runs fn and logs its duration.
func step(logger *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	logger.Debug("step started", "step", name)
	err := fn()
	if err != nil {
		return err
	}
	logger.Info("step completed", "step", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
