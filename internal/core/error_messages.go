package core

// error_messages.go maps pipeline errors to operator-facing messages with a
// support code. Codes are grouped by the failing concern:
//
//	SRC001   - publication page unreachable or missing the date/link elements
//	FETCH001 - archive download returned a non-success status
//	FETCH002 - archive download timed out
//	EXT001   - archive extraction or transcoding failed
//	PARSE001 - malformed row in the classification table or declaration log
//	LOAD001  - report store unreachable or write rejected
//	LOAD002  - report load timed out
//	RUN001   - another run is in progress
//	WM001    - watermark would not advance
//	ERR000   - anything else; check the logs for the technical error
//
// Kinds are matched with errors.Is, first match wins, so more specific
// entries (timeouts) come before their general kind.

import (
	"context"
	"errors"
	"fmt"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMatch struct {
	match func(error) bool
	msg   UserMessage
}

func isBoth(kind, cause error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, kind) && errors.Is(err, cause)
	}
}

func is(kind error) func(error) bool {
	return func(err error) bool { return errors.Is(err, kind) }
}

var errorMatches = []errorMatch{
	{
		match: is(ErrSourceUnavailable),
		msg: UserMessage{
			Message: "The classification publication page could not be read",
			Action:  "Check that the page is reachable and still shows the publication date and archive link",
			Code:    "SRC001",
		},
	},
	{
		match: isBoth(ErrFetch, context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Downloading the classification archive timed out",
			Action:  "Retry the run or raise SOURCE_FETCH_TIMEOUT",
			Code:    "FETCH002",
		},
	},
	{
		match: is(ErrFetch),
		msg: UserMessage{
			Message: "The classification archive could not be downloaded",
			Action:  "Retry the run; the watermark was not advanced",
			Code:    "FETCH001",
		},
	},
	{
		match: is(ErrExtraction),
		msg: UserMessage{
			Message: "The classification archive could not be extracted or decoded",
			Action:  "Inspect the scratch directory; files from this run were left in place",
			Code:    "EXT001",
		},
	},
	{
		match: is(ErrParse),
		msg: UserMessage{
			Message: "An input file contains a malformed row",
			Action:  "Check the reported file and line number",
			Code:    "PARSE001",
		},
	},
	{
		match: isBoth(ErrLoad, context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Loading the report timed out",
			Action:  "Retry the run or raise REPORT_LOAD_TIMEOUT",
			Code:    "LOAD002",
		},
	},
	{
		match: is(ErrLoad),
		msg: UserMessage{
			Message: "The report could not be written to the database",
			Action:  "Check database connectivity; the watermark was not advanced",
			Code:    "LOAD001",
		},
	},
	{
		match: is(ErrRunInProgress),
		msg: UserMessage{
			Message: "Another run is already in progress",
			Action:  "Wait for the current run to finish",
			Code:    "RUN001",
		},
	},
	{
		match: is(ErrWatermarkRegression),
		msg: UserMessage{
			Message: "The watermark would not move forward",
			Action:  "Check the stored watermark value",
			Code:    "WM001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator-facing message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMatches {
		if m.match(err) {
			return m.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if step := FailedStep(err); step != "" {
		return fmt.Sprintf("%s: %s (Code: %s). %s", step, msg.Message, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
