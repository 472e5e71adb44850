package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/logger"
)

// LogsProvider provides access to recent log events.
type LogsProvider interface {
	Entries(minLevel zerolog.Level) []logger.Entry
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
}

// GetRecentLogs returns recent log entries, optionally filtered with ?level=.
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	level := zerolog.TraceLevel
	if q := c.QueryParam("level"); q != "" {
		level = logger.ParseLevel(q)
	}
	logs := h.provider.Entries(level)
	if logs == nil {
		logs = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, logs)
}
