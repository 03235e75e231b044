// Package ingest downloads the classification archive and turns it into a
// UTF-8 table in the scratch directory.
//
// The scratch directory is reused across runs. Every file is overwritten in
// place, so leftovers from a failed run never block the next one, and nothing
// is cleaned up afterwards so a failed run can be inspected.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/customs/internal/core"
)

// Options configures an ArchiveIngestor.
type Options struct {
	ScratchDir         string
	ArchiveName        string // downloaded archive file name
	ClassificationFile string // file inside the archive, CP866-encoded
	OutputFile         string // transcoded UTF-8 file name
	UserAgent          string
	Timeout            time.Duration // whole download (default: 5m)
}

// ArchiveIngestor implements core.Ingestor.
type ArchiveIngestor struct {
	opts    Options
	fetcher *Fetcher
}

// New returns an ingestor. fetcher may be nil to use a default one.
func New(opts Options, fetcher *Fetcher) *ArchiveIngestor {
	if fetcher == nil {
		fetcher = NewFetcher(opts.UserAgent, opts.Timeout)
	}
	return &ArchiveIngestor{opts: opts, fetcher: fetcher}
}

// Ingest downloads url into the scratch directory, extracts it, and
// transcodes the classification file. It returns the UTF-8 file path.
func (a *ArchiveIngestor) Ingest(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(a.opts.ScratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create scratch dir: %w", core.ErrExtraction, err)
	}

	archivePath := filepath.Join(a.opts.ScratchDir, a.opts.ArchiveName)
	size, err := a.fetcher.Download(ctx, url, archivePath)
	if err != nil {
		return "", err
	}
	slog.Debug("archive downloaded", "path", archivePath, "bytes", size)

	files, err := Extract(archivePath, a.opts.ScratchDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	src, ok := findFile(files, a.opts.ClassificationFile)
	if !ok {
		return "", fmt.Errorf("%w: %s not found in archive", core.ErrExtraction, a.opts.ClassificationFile)
	}

	dst := filepath.Join(a.opts.ScratchDir, a.opts.OutputFile)
	if err := TranscodeFile(src, dst); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	return dst, nil
}
