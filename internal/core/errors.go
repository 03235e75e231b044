package core

import (
	"errors"
	"fmt"
)

// Error kinds. A pipeline failure with a known cause wraps one of these, so callers
// can branch with errors.Is regardless of the underlying cause.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrFetch             = errors.New("fetch failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrParse             = errors.New("parse failed")
	ErrLoad              = errors.New("load failed")

	// ErrRunInProgress is returned when a run is requested while another one
	// holds the run guard.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrWatermarkRegression is returned when a commit would not move the
	// watermark strictly forward.
	ErrWatermarkRegression = errors.New("watermark must advance")
)

// Step names used in StepError and in logs.
const (
	StepProbe     = "probe"
	StepIngest    = "ingest"
	StepClassify  = "classify"
	StepAggregate = "aggregate"
	StepBuild     = "build"
	StepLoad      = "load"
	StepPublish   = "publish"
	StepCommit    = "commit"
	StepWatermark = "watermark"
)

var errorKinds = []error{ErrSourceUnavailable, ErrFetch, ErrExtraction, ErrParse, ErrLoad, ErrRunInProgress, ErrWatermarkRegression}

// StepError records which pipeline step failed, the error kind and the cause.
type StepError struct {
	Step string
	Kind error
	Err  error
}

// NewStepError wraps err as a failure of step with the given kind.
// Returns nil if err is nil.
func NewStepError(step string, kind, err error) error {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) && se.Step == step {
		return err
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}

func (e *StepError) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("step %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// RowError is a malformed input row.
type RowError struct {
	File string
	Line int
	Msg  string
}

func (e *RowError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: line %d: %s", e.File, e.Line, e.Msg)
}

// Is makes every RowError match ErrParse.
func (e *RowError) Is(target error) bool {
	return target == ErrParse
}

// wrapStep records err as a failure of step. If err does not already carry
// one of the error kinds, fallback is attached.
func wrapStep(step string, err, fallback error) error {
	if err == nil {
		return nil
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return NewStepError(step, nil, err)
		}
	}
	return NewStepError(step, fallback, err)
}

// FailedStep returns the step name recorded in err, or "" if err did not come
// from a pipeline step.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
