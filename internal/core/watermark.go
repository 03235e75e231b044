package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ParseDate parses a day.month.year date. Day and month may have one or two
// digits; the year has four.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateParseLayout, strings.TrimSpace(s))
}

// ParseWatermark parses a stored watermark value. An absent or unparsable
// value yields the zero time, which every published date is after.
func ParseWatermark(value string, ok bool) time.Time {
	if !ok {
		return time.Time{}
	}
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatWatermark renders t in the stored day.month.year form.
func FormatWatermark(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(WatermarkLayout)
}

// WatermarkCommitter advances the stored watermark after a successful load.
type WatermarkCommitter struct {
	Store WatermarkStore
	Key   string
}

// Commit overwrites the watermark with next. It refuses to write a date that
// is not strictly after previous.
func (c WatermarkCommitter) Commit(ctx context.Context, previous, next time.Time) (string, error) {
	if !next.After(previous) {
		return "", fmt.Errorf("%w: %s is not after %s", ErrWatermarkRegression,
			FormatWatermark(next), FormatWatermark(previous))
	}
	value := FormatWatermark(next)
	if err := c.Store.Set(ctx, c.Key, value); err != nil {
		return "", fmt.Errorf("store watermark: %w", err)
	}
	return value, nil
}

// LoadWatermark reads the stored watermark and returns both the raw value and
// its parsed date.
func LoadWatermark(ctx context.Context, store WatermarkStore, key string) (string, time.Time, error) {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	return value, ParseWatermark(value, ok), nil
}
