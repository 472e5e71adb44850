package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

func newTestMovie(title string) types.MediaInfo {
	return types.MediaInfo{Title: title, Year: 1999, MediaType: "movie", Library: "Movies", SizeBytes: 1 << 30}
}

func newTestSeries() types.MediaInfo {
	return types.MediaInfo{Title: "Breaking Bad", Year: 2008, MediaType: "show", Library: "TV Shows", SizeBytes: 2 << 30}
}

type capturedRequest struct {
	Payload WebhookPayload
	Calls   int
}

func setupTestServer(t *testing.T, captured *capturedRequest, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		captured.Calls++
		if err := json.NewDecoder(r.Body).Decode(&captured.Payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(status)
	}))
}

func TestNotifier_TypeAndDefaults(t *testing.T) {
	n := New("discord", Settings{}, nil, zerolog.Nop())
	if n.Type() != types.NotifierDiscord {
		t.Errorf("expected type %s, got %s", types.NotifierDiscord, n.Type())
	}
	if n.Name() != "discord" {
		t.Errorf("expected name 'discord', got %s", n.Name())
	}
	if n.settings.Username != "Deleterr" {
		t.Errorf("expected default username 'Deleterr', got %s", n.settings.Username)
	}
}

func TestNotifier_Test(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured, http.StatusNoContent)
	defer server.Close()

	n := New("discord", Settings{WebhookURL: server.URL, Username: "Cleaner"}, server.Client(), zerolog.Nop())
	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if captured.Payload.Username != "Cleaner" {
		t.Errorf("expected username 'Cleaner', got %s", captured.Payload.Username)
	}
	if captured.Payload.Content == "" {
		t.Error("expected test content")
	}
}

func TestNotifier_OnRunCompleted(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured, http.StatusNoContent)
	defer server.Close()

	n := New("discord", Settings{WebhookURL: server.URL, AvatarURL: "https://example.com/a.png"}, server.Client(), zerolog.Nop())

	var deleted []types.MediaInfo
	for i := 0; i < 7; i++ {
		deleted = append(deleted, newTestMovie(fmt.Sprintf("Movie %d", i)))
	}
	deleted = append(deleted, newTestSeries())
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	event := types.RunEvent{
		BytesFreed:   9 << 30,
		Deleted:      deleted,
		Preview:      []types.MediaInfo{newTestMovie("Next")},
		DeletionDate: &date,
	}
	if err := n.OnRunCompleted(context.Background(), event); err != nil {
		t.Fatalf("OnRunCompleted() error = %v", err)
	}

	if captured.Payload.AvatarURL != "https://example.com/a.png" {
		t.Errorf("expected avatar url, got %s", captured.Payload.AvatarURL)
	}
	if len(captured.Payload.Embeds) != 3 {
		t.Fatalf("expected 3 embeds, got %d", len(captured.Payload.Embeds))
	}

	summary := captured.Payload.Embeds[0]
	if summary.Title != "Deleterr Run Complete" {
		t.Errorf("unexpected title %q", summary.Title)
	}
	if summary.Description != "Deleted 8 items, freed 9.0 GiB" {
		t.Errorf("unexpected description %q", summary.Description)
	}
	if summary.Color != ColorSuccess {
		t.Errorf("expected color %d, got %d", ColorSuccess, summary.Color)
	}
	fields := make(map[string]string)
	for _, f := range summary.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Movies"] != "7" || fields["TV Shows"] != "1" {
		t.Errorf("unexpected count fields %v", fields)
	}

	list := captured.Payload.Embeds[1].Description
	if !strings.Contains(list, "• Movie 0 (1999) - 1.0 GiB") {
		t.Errorf("expected first movie line, got %q", list)
	}
	if strings.Contains(list, "Movie 5") {
		t.Errorf("expected list to stop after five movies, got %q", list)
	}
	if !strings.Contains(list, "*...and 2 more*") {
		t.Errorf("expected overflow line, got %q", list)
	}
	if !strings.Contains(list, "**TV Shows:**") {
		t.Errorf("expected shows section, got %q", list)
	}

	preview := captured.Payload.Embeds[2]
	if preview.Title != "Next Scheduled Deletions" {
		t.Errorf("unexpected preview title %q", preview.Title)
	}
	if !strings.Contains(preview.Description, "Removal date: March 14, 2026") {
		t.Errorf("expected removal date, got %q", preview.Description)
	}
}

func TestNotifier_OnRunCompleted_DryRun(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured, http.StatusOK)
	defer server.Close()

	n := New("discord", Settings{WebhookURL: server.URL}, server.Client(), zerolog.Nop())
	event := types.RunEvent{DryRun: true, Deleted: []types.MediaInfo{newTestMovie("Old")}, BytesFreed: 1 << 30}
	if err := n.OnRunCompleted(context.Background(), event); err != nil {
		t.Fatalf("OnRunCompleted() error = %v", err)
	}

	summary := captured.Payload.Embeds[0]
	if summary.Title != "[DRY-RUN] Deleterr Run Complete" {
		t.Errorf("unexpected title %q", summary.Title)
	}
	if !strings.HasPrefix(summary.Description, "Would delete 1 items") {
		t.Errorf("unexpected description %q", summary.Description)
	}
	if summary.Color != ColorDryRun {
		t.Errorf("expected color %d, got %d", ColorDryRun, summary.Color)
	}
}

func TestNotifier_OnLeavingSoon(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured, http.StatusNoContent)
	defer server.Close()

	n := New("discord", Settings{WebhookURL: server.URL}, server.Client(), zerolog.Nop())
	event := types.LeavingSoonEvent{Items: []types.MediaInfo{newTestMovie("Soon"), newTestSeries()}}
	if err := n.OnLeavingSoon(context.Background(), event); err != nil {
		t.Fatalf("OnLeavingSoon() error = %v", err)
	}

	if len(captured.Payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(captured.Payload.Embeds))
	}
	embed := captured.Payload.Embeds[0]
	if embed.Title != "Leaving Soon" {
		t.Errorf("unexpected title %q", embed.Title)
	}
	if !strings.HasPrefix(embed.Description, "*2 items, 3.0 GiB*") {
		t.Errorf("unexpected description %q", embed.Description)
	}
	if strings.Contains(embed.Description, "Removal date") {
		t.Errorf("expected no removal date, got %q", embed.Description)
	}
}

func TestNotifier_ErrorStatus(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured, http.StatusBadRequest)
	defer server.Close()

	n := New("discord", Settings{WebhookURL: server.URL}, server.Client(), zerolog.Nop())
	err := n.Test(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected status error, got %v", err)
	}
}
