package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"source unavailable", wrapStep(StepProbe, errors.New("dial tcp: no such host"), ErrSourceUnavailable), "SRC001"},
		{"fetch status", wrapStep(StepIngest, fmt.Errorf("%w: status 404", ErrFetch), ErrFetch), "FETCH001"},
		{"fetch timeout", wrapStep(StepIngest, fmt.Errorf("%w: %w", ErrFetch, context.DeadlineExceeded), nil), "FETCH002"},
		{"extraction", wrapStep(StepIngest, fmt.Errorf("%w: zip: not a valid zip file", ErrExtraction), ErrFetch), "EXT001"},
		{"row error", wrapStep(StepClassify, &RowError{File: "TNVED3_UTF.TXT", Line: 4, Msg: "short"}, ErrParse), "PARSE001"},
		{"load", wrapStep(StepLoad, errors.New("connection refused"), ErrLoad), "LOAD001"},
		{"load timeout", wrapStep(StepLoad, context.DeadlineExceeded, ErrLoad), "LOAD002"},
		{"run in progress", ErrRunInProgress, "RUN001"},
		{"watermark regression", fmt.Errorf("%w: x", ErrWatermarkRegression), "WM001"},
		{"unknown error", errors.New("something weird"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError() returned incomplete message: %+v", got)
			}
		})
	}
}

func TestWrapStep_KeepsInnerKind(t *testing.T) {
	inner := fmt.Errorf("%w: corrupt", ErrExtraction)
	err := wrapStep(StepIngest, inner, ErrFetch)

	if !errors.Is(err, ErrExtraction) {
		t.Error("inner kind lost")
	}
	if errors.Is(err, ErrFetch) {
		t.Error("fallback kind attached to an error that already had one")
	}
	if got := FailedStep(err); got != StepIngest {
		t.Errorf("FailedStep() = %q, want %q", got, StepIngest)
	}
}

func TestWrapStep_Nil(t *testing.T) {
	if err := wrapStep(StepLoad, nil, ErrLoad); err != nil {
		t.Errorf("wrapStep(nil) = %v", err)
	}
}

func TestNewStepError_NoDoubleWrap(t *testing.T) {
	err := NewStepError(StepLoad, ErrLoad, errors.New("x"))
	again := NewStepError(StepLoad, ErrLoad, err)
	if again != err {
		t.Error("same-step error wrapped twice")
	}
}

func TestStepError_Message(t *testing.T) {
	err := NewStepError(StepLoad, ErrLoad, errors.New("connection refused"))
	if got := err.Error(); got != "step load: load failed: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRowError(t *testing.T) {
	err := &RowError{File: "customs_log.csv", Line: 12, Msg: "row has 2 fields"}
	if got := err.Error(); got != "customs_log.csv: line 12: row has 2 fields" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrParse) {
		t.Error("RowError should match ErrParse")
	}
}

func TestFailedStep_NotAStepError(t *testing.T) {
	if got := FailedStep(errors.New("plain")); got != "" {
		t.Errorf("FailedStep() = %q, want empty", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(wrapStep(StepLoad, errors.New("connection refused"), ErrLoad))
	if !strings.HasPrefix(got, "load: ") {
		t.Errorf("FormatUserError() = %q, want step prefix", got)
	}
	if !strings.Contains(got, "(Code: LOAD001)") {
		t.Errorf("FormatUserError() = %q, want LOAD001", got)
	}

	got = FormatUserError(ErrRunInProgress)
	if got != "Another run is already in progress (Code: RUN001). Wait for the current run to finish" {
		t.Errorf("FormatUserError() = %q", got)
	}
}
