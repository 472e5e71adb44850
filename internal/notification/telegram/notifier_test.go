package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

type capturedMessage struct {
	Path      string
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func setupTestServer(t *testing.T, captured *capturedMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		switch r.URL.Path {
		case "/bot123:abc/getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"username":"deleterr_bot"}}`))
		case "/bot123:abc/sendMessage":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("failed to decode payload: %v", err)
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
		}
	}))
}

func TestNotifier_Defaults(t *testing.T) {
	n := New("telegram", Settings{BotToken: "t", ChatID: "1"}, nil, zerolog.Nop())
	if n.Type() != types.NotifierTelegram {
		t.Errorf("expected type %s, got %s", types.NotifierTelegram, n.Type())
	}
	if n.settings.ParseMode != ParseModeMarkdownV2 {
		t.Errorf("expected MarkdownV2 default, got %s", n.settings.ParseMode)
	}
	if got := n.endpoint("getMe"); got != "https://api.telegram.org/bott/getMe" {
		t.Errorf("unexpected endpoint %s", got)
	}
}

func TestNotifier_Test(t *testing.T) {
	var captured capturedMessage
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("telegram", Settings{BotToken: "123:abc", ChatID: "42", APIBase: server.URL + "/"}, server.Client(), zerolog.Nop())
	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if captured.Path != "/bot123:abc/getMe" {
		t.Errorf("expected getMe call, got %s", captured.Path)
	}

	bad := New("telegram", Settings{BotToken: "wrong", ChatID: "42", APIBase: server.URL}, server.Client(), zerolog.Nop())
	err := bad.Test(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("expected unauthorized error, got %v", err)
	}
}

func TestNotifier_OnRunCompleted_MarkdownV2(t *testing.T) {
	var captured capturedMessage
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("telegram", Settings{BotToken: "123:abc", ChatID: "42", APIBase: server.URL}, server.Client(), zerolog.Nop())
	event := types.RunEvent{
		DryRun:     true,
		BytesFreed: 1 << 30,
		Deleted:    []types.MediaInfo{{Title: "Mr. Robot", Year: 2015, MediaType: "show", SizeBytes: 1 << 30}},
	}
	if err := n.OnRunCompleted(context.Background(), event); err != nil {
		t.Fatalf("OnRunCompleted() error = %v", err)
	}

	if captured.ChatID != "42" || captured.ParseMode != "MarkdownV2" {
		t.Errorf("unexpected chat %s or parse mode %s", captured.ChatID, captured.ParseMode)
	}
	for _, want := range []string{
		`*\[DRY\-RUN\] Deleterr Run Complete*`,
		`Would delete 1 items, freeing 1\.0 GiB`,
		`_TV Shows \(1\):_`,
		`• Mr\. Robot \(2015\) \- 1\.0 GiB`,
	} {
		if !strings.Contains(captured.Text, want) {
			t.Errorf("expected %q in message:\n%s", want, captured.Text)
		}
	}
}

func TestNotifier_OnLeavingSoon_HTML(t *testing.T) {
	var captured capturedMessage
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("telegram", Settings{BotToken: "123:abc", ChatID: "42", ParseMode: ParseModeHTML, APIBase: server.URL}, server.Client(), zerolog.Nop())
	event := types.LeavingSoonEvent{Items: []types.MediaInfo{{Title: "Tom & Jerry", MediaType: "movie", SizeBytes: 1 << 30}}}
	if err := n.OnLeavingSoon(context.Background(), event); err != nil {
		t.Fatalf("OnLeavingSoon() error = %v", err)
	}

	if !strings.HasPrefix(captured.Text, "<b>Leaving Soon</b>") {
		t.Errorf("expected bold heading, got:\n%s", captured.Text)
	}
	if !strings.Contains(captured.Text, "• Tom &amp; Jerry - 1.0 GiB") {
		t.Errorf("expected escaped item, got:\n%s", captured.Text)
	}
}

func TestFormatter_Escape(t *testing.T) {
	f := formatter{}
	if got := f.escape("a_b*c.d!"); got != `a\_b\*c\.d\!` {
		t.Errorf("escape() = %s", got)
	}
	if got := (formatter{html: true}).escape("<a>"); got != "&lt;a&gt;" {
		t.Errorf("html escape() = %s", got)
	}
}
