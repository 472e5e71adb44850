package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/notification/mock"
)

func runEvent(dryRun bool, deleted, preview int) RunEvent {
	e := RunEvent{DryRun: dryRun}
	for i := 0; i < deleted; i++ {
		e.Deleted = append(e.Deleted, MediaInfo{Title: "deleted"})
	}
	for i := 0; i < preview; i++ {
		e.Preview = append(e.Preview, MediaInfo{Title: "preview"})
	}
	return e
}

func TestService_NotifyRun(t *testing.T) {
	base := config.NotificationsConfig{Enabled: true, NotifyOnDryRun: true, IncludePreview: true}

	tests := []struct {
		name        string
		cfg         func(c *config.NotificationsConfig)
		event       RunEvent
		sent        bool
		wantPreview int
	}{
		{name: "sends summary", event: runEvent(false, 2, 1), sent: true, wantPreview: 1},
		{name: "disabled", cfg: func(c *config.NotificationsConfig) { c.Enabled = false }, event: runEvent(false, 2, 0)},
		{name: "dry run muted", cfg: func(c *config.NotificationsConfig) { c.NotifyOnDryRun = false }, event: runEvent(true, 2, 0)},
		{name: "dry run allowed", event: runEvent(true, 2, 0), sent: true},
		{name: "below minimum", cfg: func(c *config.NotificationsConfig) { c.MinDeletionsToNotify = 3 }, event: runEvent(false, 2, 0)},
		{name: "at minimum", cfg: func(c *config.NotificationsConfig) { c.MinDeletionsToNotify = 2 }, event: runEvent(false, 2, 0), sent: true},
		{name: "nothing to report", event: runEvent(false, 0, 0)},
		{name: "preview only", event: runEvent(false, 0, 3), sent: true, wantPreview: 3},
		{name: "preview stripped", cfg: func(c *config.NotificationsConfig) { c.IncludePreview = false }, event: runEvent(false, 1, 3), sent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			svc := NewService(cfg, nil, zerolog.Nop())
			m := mock.New("mock", zerolog.Nop())
			svc.AddNotifier(m)

			svc.NotifyRun(context.Background(), tt.event)

			records := m.GetRecords()
			if !tt.sent {
				assert.Empty(t, records)
				return
			}
			require.Len(t, records, 1)
			ev, ok := records[0].Data.(RunEvent)
			require.True(t, ok)
			assert.Len(t, ev.Preview, tt.wantPreview)
		})
	}
}

func TestService_DeliveryFailureIsSwallowed(t *testing.T) {
	svc := NewService(config.NotificationsConfig{Enabled: true}, nil, zerolog.Nop())
	failing := mock.New("failing", zerolog.Nop())
	failing.FailWith(errors.New("unreachable"))
	ok := mock.New("ok", zerolog.Nop())
	svc.AddNotifier(failing)
	svc.AddNotifier(ok)

	svc.NotifyRun(context.Background(), runEvent(false, 1, 0))
	assert.Len(t, ok.GetRecords(), 1)
}

func TestService_NotifyLeavingSoon(t *testing.T) {
	svc := NewService(config.NotificationsConfig{Enabled: true}, nil, zerolog.Nop())
	m := mock.New("mock", zerolog.Nop())
	svc.AddLeavingSoonNotifier(m)

	svc.NotifyLeavingSoon(context.Background(), LeavingSoonEvent{})
	assert.Empty(t, m.GetRecords())

	svc.NotifyLeavingSoon(context.Background(), LeavingSoonEvent{DryRun: true, Items: []MediaInfo{{Title: "a"}}})
	assert.Empty(t, m.GetRecords(), "dry runs are muted by default")

	svc.NotifyLeavingSoon(context.Background(), LeavingSoonEvent{Items: []MediaInfo{{Title: "a"}}})
	assert.Len(t, m.GetRecords(), 1)
}

func TestService_WebhookFromConfig(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "abc", r.Header.Get("X-Token"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewService(config.NotificationsConfig{
		Enabled: true,
		NotificationProviders: config.NotificationProviders{
			Webhook: config.WebhookConfig{URL: server.URL, Headers: map[string]string{"X-Token": "abc"}, Timeout: 5},
		},
	}, server.Client(), zerolog.Nop())
	require.True(t, svc.Enabled())

	svc.NotifyRun(context.Background(), runEvent(false, 1, 0))
	require.NoError(t, svc.Test(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestService_ProvidersFromConfig(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/slack":
			_, _ = w.Write([]byte("ok"))
		case "/bot1:abc/sendMessage", "/bot1:abc/getMe":
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	cfg := config.NotificationsConfig{
		Enabled: true,
		NotificationProviders: config.NotificationProviders{
			Discord:  config.DiscordConfig{WebhookURL: server.URL + "/discord"},
			Slack:    config.SlackConfig{WebhookURL: server.URL + "/slack"},
			Telegram: config.TelegramConfig{BotToken: "1:abc", ChatID: "42", APIURL: server.URL},
			Email:    config.EmailConfig{SMTPServer: "smtp.example.com", FromAddress: "d@example.com"},
		},
		LeavingSoon: config.LeavingSoonNotifications{
			NotificationProviders: config.NotificationProviders{
				Discord: config.DiscordConfig{WebhookURL: server.URL + "/leaving"},
			},
		},
	}
	svc := NewService(cfg, server.Client(), zerolog.Nop())

	var names []string
	for _, n := range svc.run {
		names = append(names, n.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"discord", "slack", "telegram"}, names, "email without recipients is skipped")
	require.Len(t, svc.leavingSoon, 1)
	assert.Equal(t, NotifierDiscord, svc.leavingSoon[0].Type())

	svc.NotifyRun(context.Background(), runEvent(false, 1, 0))
	svc.NotifyLeavingSoon(context.Background(), LeavingSoonEvent{Items: []MediaInfo{{Title: "a"}}})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/discord"])
	assert.Equal(t, 1, hits["/slack"])
	assert.Equal(t, 1, hits["/bot1:abc/sendMessage"])
	assert.Equal(t, 1, hits["/leaving"])
}

func TestEmailSettings(t *testing.T) {
	off := false
	c := config.EmailConfig{SMTPServer: "smtp.example.com", SMTPPort: 465, UseSSL: true, Timeout: 10}

	s := emailSettings(c, "Leaving Soon")
	assert.True(t, s.UseTLS, "STARTTLS defaults to on")
	assert.Equal(t, "Leaving Soon", s.Subject)
	assert.Equal(t, 465, s.Port)
	assert.Equal(t, 10*time.Second, s.Timeout)

	c.UseTLS = &off
	c.Subject = "Own subject"
	s = emailSettings(c, "Leaving Soon")
	assert.False(t, s.UseTLS)
	assert.Equal(t, "Own subject", s.Subject)
}
