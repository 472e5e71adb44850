// Package types contains shared type definitions for notification packages.
package types

import (
	"context"
	"time"
)

// NotifierType identifies a notification provider
type NotifierType string

const (
	NotifierWebhook  NotifierType = "webhook"
	NotifierDiscord  NotifierType = "discord"
	NotifierSlack    NotifierType = "slack"
	NotifierTelegram NotifierType = "telegram"
	NotifierEmail    NotifierType = "email"
	NotifierMock     NotifierType = "mock"
)

// Notifier is the interface all notification providers must implement
type Notifier interface {
	Type() NotifierType
	Name() string
	Test(ctx context.Context) error

	OnRunCompleted(ctx context.Context, event RunEvent) error
	OnLeavingSoon(ctx context.Context, event LeavingSoonEvent) error
}

// EventType identifies the type of notification event
type EventType string

const (
	EventRunCompleted EventType = "run_completed"
	EventLeavingSoon  EventType = "leaving_soon"
)

// MediaInfo describes one deleted or upcoming item.
type MediaInfo struct {
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	MediaType string `json:"mediaType"`
	Library   string `json:"library"`
	Instance  string `json:"instance"`
	SizeBytes int64  `json:"sizeBytes"`
	TMDbID    int64  `json:"tmdbId,omitempty"`
	TVDbID    int64  `json:"tvdbId,omitempty"`
	IMDbID    string `json:"imdbId,omitempty"`
}

// LibrarySummary is the outcome of one library pass.
type LibrarySummary struct {
	Name       string `json:"name"`
	Instance   string `json:"instance"`
	Deleted    int    `json:"deleted"`
	BytesFreed int64  `json:"bytesFreed"`
	Preview    int    `json:"preview"`
	Skipped    string `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunEvent summarizes a finished cleanup run.
type RunEvent struct {
	DryRun       bool             `json:"dryRun"`
	StartedAt    time.Time        `json:"startedAt"`
	FinishedAt   time.Time        `json:"finishedAt"`
	BytesFreed   int64            `json:"bytesFreed"`
	Deleted      []MediaInfo      `json:"deleted"`
	Preview      []MediaInfo      `json:"preview,omitempty"`
	Libraries    []LibrarySummary `json:"libraries"`
	DeletionDate *time.Time       `json:"deletionDate,omitempty"`
}

// LeavingSoonEvent lists the items that will be deleted by a later run.
type LeavingSoonEvent struct {
	DryRun       bool        `json:"dryRun"`
	Items        []MediaInfo `json:"items"`
	DeletionDate *time.Time  `json:"deletionDate,omitempty"`
}
