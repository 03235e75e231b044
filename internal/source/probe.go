// Package source decides whether the upstream classification table has been
// republished since the last ingested date.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/JonMunkholm/customs/internal/core"
)

var datePattern = regexp.MustCompile(`\b(\d{1,2}\.\d{1,2}\.\d{4})\b`)

// PageFacts is what the probe needs from the publication page.
type PageFacts struct {
	DateText string // text that contains the publication date
	Link     string // absolute URL of the archive
}

// PageReader extracts PageFacts from the publication page. Implementations
// decide how the page is rendered.
type PageReader interface {
	Read(ctx context.Context, pageURL string) (PageFacts, error)
}

// Probe implements core.Prober over a PageReader.
type Probe struct {
	Reader  PageReader
	PageURL string
	Timeout time.Duration // 0: no probe-level timeout
}

// Check reads the page and proceeds iff the published date is strictly after
// previous. A zero previous always proceeds.
func (p *Probe) Check(ctx context.Context, previous time.Time) (core.Decision, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	facts, err := p.Reader.Read(ctx, p.PageURL)
	if err != nil {
		return core.Decision{}, fmt.Errorf("%w: read %s: %w", core.ErrSourceUnavailable, p.PageURL, err)
	}

	published, err := ParsePublishedDate(facts.DateText)
	if err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	if facts.Link == "" {
		return core.Decision{}, fmt.Errorf("%w: archive link not found", core.ErrSourceUnavailable)
	}

	return core.Decision{
		Proceed:  published.After(previous),
		Previous: previous,
		Table: core.RemoteTable{
			PublishedAt: published,
			DownloadURL: facts.Link,
		},
	}, nil
}

// ParsePublishedDate finds the first day.month.year date in text.
func ParsePublishedDate(text string) (time.Time, error) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		if text == "" {
			return time.Time{}, errors.New("publication date not found")
		}
		return time.Time{}, fmt.Errorf("no date in %q", text)
	}
	t, err := core.ParseDate(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse publication date %q: %w", m[1], err)
	}
	return t, nil
}
