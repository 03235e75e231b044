package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/customs/internal/artifacts"
	"github.com/JonMunkholm/customs/internal/config"
	"github.com/JonMunkholm/customs/internal/core"
	"github.com/JonMunkholm/customs/internal/ingest"
	"github.com/JonMunkholm/customs/internal/source"
	"github.com/JonMunkholm/customs/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the process-wide resources opened for a command.
type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	watermarks core.WatermarkStore
	closers    []func()
}

// openOptions selects how much openApp touches the database up front.
type openOptions struct {
	// Ping verifies the pool before returning.
	Ping bool

	// ReadOnly attaches to the PostgreSQL watermark table without creating
	// it. The sqlite backend still creates its local file.
	ReadOnly bool
}

// openApp opens the database pool and the watermark store. The pool is
// opened lazily by pgxpool.
func openApp(ctx context.Context, cfg *config.Config, opts openOptions) (*app, error) {
	a := &app{cfg: cfg}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	if opts.Ping {
		if err := pool.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		// Log which database we connected to
		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		}
	}

	if err := a.openWatermarks(ctx, opts.ReadOnly); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openWatermarks(ctx context.Context, readOnly bool) error {
	switch strings.ToLower(a.cfg.Watermark.Backend) {
	case "sqlite":
		s, err := store.OpenSQLiteWatermarks(a.cfg.Watermark.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite watermark store: %w", err)
		}
		a.watermarks = s
		a.closers = append(a.closers, func() { s.Close() })
	case "memory":
		slog.Warn("watermark kept in memory; every restart re-ingests the classification table")
		a.watermarks = store.NewMemoryWatermarks()
	default:
		if readOnly {
			a.watermarks = store.AttachPostgresWatermarks(a.pool)
			break
		}
		s, err := store.NewPostgresWatermarks(ctx, a.pool)
		if err != nil {
			return fmt.Errorf("open postgres watermark store: %w", err)
		}
		a.watermarks = s
	}
	slog.Debug("watermark store ready", "backend", a.cfg.Watermark.Backend)
	return nil
}

// Close releases resources in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// pipeline wires the configured collaborators into a Pipeline.
func (a *app) pipeline(ctx context.Context) (*core.Pipeline, error) {
	cfg := a.cfg

	reader, err := source.NewHTMLPageReader(source.HTMLPageReaderOptions{
		DateMarker: cfg.Source.DateMarker,
		LinkToken:  cfg.Source.LinkToken,
		UserAgent:  cfg.Source.UserAgent,
		Timeout:    cfg.Source.ProbeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("page reader: %w", err)
	}

	ingestor := ingest.New(ingest.Options{
		ScratchDir:         cfg.Paths.ScratchDir,
		ArchiveName:        cfg.Paths.ArchiveName,
		ClassificationFile: cfg.Paths.ClassificationFile,
		OutputFile:         cfg.Paths.ClassificationUTFFile,
		UserAgent:          cfg.Source.UserAgent,
		Timeout:            cfg.Source.FetchTimeout,
	}, nil)

	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}

	return &core.Pipeline{
		Prober: &source.Probe{
			Reader:  reader,
			PageURL: cfg.Source.PageURL,
			Timeout: cfg.Source.ProbeTimeout,
		},
		Ingestor:   ingestor,
		Sink:       store.NewReportLoader(a.pool, cfg.Report.Schema, cfg.Report.Table),
		Watermarks: a.watermarks,
		Publisher:  publisher,
		Guard:      core.NewRunGuard(),
		Options: core.PipelineOptions{
			WatermarkKey:     cfg.Watermark.Key,
			LogFile:          cfg.Paths.LogFile,
			ReportFile:       cfg.Paths.ReportPath(),
			FallbackCategory: cfg.Report.FallbackCategory,
			LoadTimeout:      cfg.Report.LoadTimeout,
		},
	}, nil
}

// publisher returns the configured artifact publisher, or nil when disabled.
func (a *app) publisher(ctx context.Context) (core.ArtifactPublisher, error) {
	cfg := a.cfg.Artifacts
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" {
		slog.Info("publishing reports to local directory", "dir", cfg.LocalDir)
		return artifacts.LocalStore{Root: cfg.LocalDir}, nil
	}

	s3, err := artifacts.NewS3Store(artifacts.S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
		Prefix:    cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	// An unreachable bucket only fails the publish step of each run.
	if err := s3.EnsureBucket(ctx); err != nil {
		slog.Warn("artifact bucket not ready", "bucket", cfg.Bucket, "error", err)
	}
	slog.Info("publishing reports to bucket", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return s3, nil
}
