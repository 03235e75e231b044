package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/customs/internal/core"
	"github.com/JonMunkholm/customs/internal/logging"
)

// runResponse is the JSON form of core.RunResult.
type runResponse struct {
	RunID             string    `json:"run_id"`
	Outcome           string    `json:"outcome"`
	PreviousWatermark string    `json:"previous_watermark,omitempty"`
	NewWatermark      string    `json:"new_watermark,omitempty"`
	DownloadURL       string    `json:"download_url,omitempty"`
	ReportFile        string    `json:"report_file,omitempty"`
	LogRows           int       `json:"log_rows"`
	ReportRows        int       `json:"report_rows"`
	Loaded            int64     `json:"loaded"`
	StartedAt         time.Time `json:"started_at"`
	DurationMS        int64     `json:"duration_ms"`
	Error             string    `json:"error,omitempty"`
}

func toRunResponse(r core.RunResult) runResponse {
	return runResponse{
		RunID:             r.RunID,
		Outcome:           string(r.Outcome),
		PreviousWatermark: r.PreviousWatermark,
		NewWatermark:      r.NewWatermark,
		DownloadURL:       r.DownloadURL,
		ReportFile:        r.ReportFile,
		LogRows:           r.LogRows,
		ReportRows:        r.ReportRows,
		Loaded:            r.Loaded,
		StartedAt:         r.StartedAt,
		DurationMS:        r.Duration.Milliseconds(),
		Error:             r.Error,
	}
}

// handleTriggerRun starts a pipeline run.
//
//	POST /api/runs?dry_run=true&wait=true
//
// Without wait the run continues in the background and 202 is returned with
// its ID. With wait the response carries the run result. A client that
// disconnects while waiting does not cancel the run.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	opts := core.RunOptions{DryRun: queryBool(r, "dry_run")}
	wait := queryBool(r, "wait")

	runID, done, err := s.runner.Start(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("run triggered", "run_id", runID, "dry_run", opts.DryRun, "wait", wait)

	if !wait {
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "accepted"})
		return
	}

	select {
	case c := <-done:
		if c.Err != nil {
			respondRunError(w, r, c.Err, statusFor(c.Err), runID)
			return
		}
		writeJSON(w, http.StatusOK, toRunResponse(c.Result))
	case <-r.Context().Done():
		// Client gone; the run keeps going.
	}
}

// handleLastRun returns the most recent finished run.
func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runner.LastResult()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(res))
}

// handleActiveRun reports whether a run is in progress.
func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	st := s.runner.Active()
	resp := map[string]any{"active": st.Active}
	if st.Active {
		resp["run_id"] = st.RunID
		resp["started_at"] = st.Started
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWatermark returns the stored watermark.
func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	value, ok, err := s.opts.Watermarks.Get(r.Context(), s.opts.WatermarkKey)
	if err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     s.opts.WatermarkKey,
		"value":   value,
		"present": ok,
	})
}

// handleHealth reports process and dependency health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.HealthCheck(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryBool parses a boolean query parameter; absent or invalid is false.
func queryBool(r *http.Request, name string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && b
}
