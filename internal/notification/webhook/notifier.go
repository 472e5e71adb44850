package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

// Settings contains webhook-specific configuration
type Settings struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// Notifier sends notifications to a custom webhook endpoint
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new webhook notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if settings.Method == "" {
		settings.Method = http.MethodPost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if settings.Timeout > 0 {
		c := *httpClient
		c.Timeout = settings.Timeout
		httpClient = &c
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "webhook").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierWebhook
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	payload := Payload{
		EventType:    "test",
		InstanceName: "Deleterr",
		Message:      "Test notification from Deleterr",
		Timestamp:    time.Now().UTC(),
	}
	return n.send(ctx, payload)
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	verb := "Deleted"
	if event.DryRun {
		verb = "Would delete"
	}
	payload := Payload{
		EventType:    "runCompleted",
		InstanceName: "Deleterr",
		Timestamp:    event.FinishedAt,
		Message: fmt.Sprintf("%s %d items, %s freed",
			verb, len(event.Deleted), humanize.IBytes(uint64(event.BytesFreed))),
		DryRun:       event.DryRun,
		BytesFreed:   event.BytesFreed,
		Deleted:      event.Deleted,
		Preview:      event.Preview,
		Libraries:    event.Libraries,
		DeletionDate: event.DeletionDate,
	}
	return n.send(ctx, payload)
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	msg := fmt.Sprintf("%d items are leaving soon", len(event.Items))
	if event.DeletionDate != nil {
		msg += " (" + humanize.Time(*event.DeletionDate) + ")"
	}
	payload := Payload{
		EventType:    "leavingSoon",
		InstanceName: "Deleterr",
		Timestamp:    time.Now().UTC(),
		Message:      msg,
		DryRun:       event.DryRun,
		Preview:      event.Items,
		DeletionDate: event.DeletionDate,
	}
	return n.send(ctx, payload)
}

func (n *Notifier) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, n.settings.Method, n.settings.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range n.settings.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug().Str("event", payload.EventType).Msg("Webhook delivered")
	return nil
}

type Payload struct {
	EventType    string                 `json:"eventType"`
	InstanceName string                 `json:"instanceName"`
	Timestamp    time.Time              `json:"timestamp"`
	Message      string                 `json:"message,omitempty"`
	DryRun       bool                   `json:"dryRun"`
	BytesFreed   int64                  `json:"bytesFreed,omitempty"`
	Deleted      []types.MediaInfo      `json:"deleted,omitempty"`
	Preview      []types.MediaInfo      `json:"preview,omitempty"`
	Libraries    []types.LibrarySummary `json:"libraries,omitempty"`
	DeletionDate *time.Time             `json:"deletionDate,omitempty"`
}
