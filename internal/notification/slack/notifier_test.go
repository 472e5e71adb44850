package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

func newTestMovie(title string) types.MediaInfo {
	return types.MediaInfo{Title: title, Year: 1999, MediaType: "movie", SizeBytes: 1 << 30}
}

func setupTestServer(t *testing.T, captured *Payload, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		_, _ = w.Write([]byte(reply))
	}))
}

func blockTexts(p Payload) []string {
	var out []string
	for _, b := range p.Blocks {
		if b.Text != nil {
			out = append(out, b.Text.Text)
		}
		for _, e := range b.Elements {
			out = append(out, e.Text)
		}
	}
	return out
}

func TestNotifier_Defaults(t *testing.T) {
	n := New("slack", Settings{}, nil, zerolog.Nop())
	if n.Type() != types.NotifierSlack {
		t.Errorf("expected type %s, got %s", types.NotifierSlack, n.Type())
	}
	if n.settings.Username != "Deleterr" {
		t.Errorf("expected default username, got %s", n.settings.Username)
	}
	if n.settings.IconEmoji != ":wastebasket:" {
		t.Errorf("expected default icon, got %s", n.settings.IconEmoji)
	}
}

func TestNotifier_OnRunCompleted(t *testing.T) {
	var captured Payload
	server := setupTestServer(t, &captured, "ok")
	defer server.Close()

	n := New("slack", Settings{WebhookURL: server.URL, Channel: "#media"}, server.Client(), zerolog.Nop())
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	event := types.RunEvent{
		DryRun:     true,
		BytesFreed: 3 << 30,
		Deleted: []types.MediaInfo{
			newTestMovie("Heat"),
			{Title: "Lost", MediaType: "show", SizeBytes: 2 << 30},
		},
		Preview:      []types.MediaInfo{newTestMovie("Next")},
		DeletionDate: &date,
	}
	if err := n.OnRunCompleted(context.Background(), event); err != nil {
		t.Fatalf("OnRunCompleted() error = %v", err)
	}

	if captured.Channel != "#media" {
		t.Errorf("expected channel '#media', got %s", captured.Channel)
	}
	if captured.Blocks[0].Type != "header" || captured.Blocks[0].Text.Text != "[DRY-RUN] Deleterr Run Complete" {
		t.Errorf("unexpected header block %+v", captured.Blocks[0])
	}

	texts := strings.Join(blockTexts(captured), "\n")
	for _, want := range []string{
		"Would delete *1* movies and *1* TV shows, freeing *3.0 GiB*",
		"*Movies:*\n• Heat (1999) - 1.0 GiB",
		"*TV Shows:*\n• Lost - 2.0 GiB",
		"*Next Scheduled Deletions* (1 items, 1.0 GiB) - Removal date: *March 14, 2026*",
		"Deleterr • Dry Run Mode",
	} {
		if !strings.Contains(texts, want) {
			t.Errorf("expected %q in blocks:\n%s", want, texts)
		}
	}
}

func TestNotifier_OnLeavingSoon(t *testing.T) {
	var captured Payload
	server := setupTestServer(t, &captured, "ok")
	defer server.Close()

	n := New("slack", Settings{WebhookURL: server.URL}, server.Client(), zerolog.Nop())
	var items []types.MediaInfo
	for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
		items = append(items, newTestMovie(title))
	}
	if err := n.OnLeavingSoon(context.Background(), types.LeavingSoonEvent{Items: items}); err != nil {
		t.Fatalf("OnLeavingSoon() error = %v", err)
	}

	texts := strings.Join(blockTexts(captured), "\n")
	if !strings.Contains(texts, "_...and 1 more_") {
		t.Errorf("expected overflow line, got:\n%s", texts)
	}
	if strings.Contains(texts, "• F (1999)") {
		t.Errorf("expected sixth item to be folded, got:\n%s", texts)
	}
	if !strings.Contains(texts, "Deleterr • Live Mode") {
		t.Errorf("expected live footer, got:\n%s", texts)
	}
}

func TestNotifier_RejectedMessage(t *testing.T) {
	var captured Payload
	server := setupTestServer(t, &captured, "invalid_payload")
	defer server.Close()

	n := New("slack", Settings{WebhookURL: server.URL}, server.Client(), zerolog.Nop())
	err := n.Test(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid_payload") {
		t.Errorf("expected rejection error, got %v", err)
	}
	if captured.Text == "" {
		t.Error("expected test text")
	}
}
