package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to get the operator message and code
//  4. Technical error + context is logged with request ID for correlation
//  5. The mapped message is returned as JSON

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/customs/internal/core"
	"github.com/JonMunkholm/customs/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Step    string `json:"step,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// respondError logs the technical error server-side and writes the mapped
// message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	respondRunError(w, r, err, statusCode, "")
}

func respondRunError(w http.ResponseWriter, r *http.Request, err error, statusCode int, runID string) {
	userMsg := core.MapError(err)

	// Log the technical error with context
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Step:    core.FailedStep(err),
		RunID:   runID,
	})
}

// statusFor picks the HTTP status of a failed run.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrSourceUnavailable), errors.Is(err, core.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
