package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deleterr/deleterr/internal/cleaner"
	"github.com/deleterr/deleterr/internal/logger"
)

// RunStatus exposes the state of the cleanup runner.
type RunStatus interface {
	Running() bool
	LastSummary() *cleaner.Summary
}

// StatusHandler reports the last cleanup run.
type StatusHandler struct {
	runner  RunStatus
	dryRun  bool
	version string
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(runner RunStatus, dryRun bool, version string) *StatusHandler {
	return &StatusHandler{runner: runner, dryRun: dryRun, version: version}
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version string       `json:"version"`
	DryRun  bool         `json:"dryRun"`
	Running bool         `json:"running"`
	LastRun *RunResponse `json:"lastRun,omitempty"`
}

// RunResponse summarizes a finished run.
type RunResponse struct {
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	DryRun     bool              `json:"dryRun"`
	Deleted    int               `json:"deleted"`
	BytesFreed int64             `json:"bytesFreed"`
	Freed      string            `json:"freed"`
	Libraries  []LibraryResponse `json:"libraries"`
}

// LibraryResponse is one library of a run.
type LibraryResponse struct {
	Name       string `json:"name"`
	Instance   string `json:"instance"`
	Deleted    int    `json:"deleted"`
	BytesFreed int64  `json:"bytesFreed"`
	Preview    int    `json:"preview"`
	Unmatched  int    `json:"unmatched"`
	Skipped    string `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// GetStatus returns the runner state and the last run.
// GET /api/v1/status
func (h *StatusHandler) GetStatus(c echo.Context) error {
	resp := StatusResponse{
		Version: h.version,
		DryRun:  h.dryRun,
		Running: h.runner.Running(),
	}
	if s := h.runner.LastSummary(); s != nil {
		run := &RunResponse{
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
			DryRun:     s.DryRun,
			Deleted:    s.Deleted,
			BytesFreed: s.BytesFreed,
			Freed:      logger.Size(s.BytesFreed),
			Libraries:  make([]LibraryResponse, 0, len(s.Libraries)),
		}
		for _, l := range s.Libraries {
			lr := LibraryResponse{
				Name:       l.Library,
				Instance:   l.Instance,
				Deleted:    len(l.Deleted),
				BytesFreed: l.BytesFreed,
				Preview:    len(l.Preview),
				Unmatched:  l.Unmatched,
				Skipped:    l.Skipped,
			}
			if l.Err != nil {
				lr.Error = l.Err.Error()
			}
			run.Libraries = append(run.Libraries, lr)
		}
		resp.LastRun = run
	}
	return c.JSON(http.StatusOK, resp)
}
