package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

// Embed colors
const (
	ColorSuccess = 0x2ECC71 // Green
	ColorDryRun  = 0x3498DB // Blue
	ColorWarning = 0xF39C12 // Orange
)

// Settings contains Discord-specific configuration
type Settings struct {
	WebhookURL string `json:"webhookUrl"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Notifier sends notifications via Discord webhook
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new Discord notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if settings.Username == "" {
		settings.Username = "Deleterr"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "discord").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierDiscord
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, WebhookPayload{
		Username: n.settings.Username,
		Content:  "Connection test successful!",
	})
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	embeds := []Embed{n.summaryEmbed(event)}
	if len(event.Deleted) > 0 {
		embeds = append(embeds, deletedEmbed(event))
	}
	if len(event.Preview) > 0 {
		embeds = append(embeds, previewEmbed("Next Scheduled Deletions", event.Preview, event.DeletionDate))
	}
	return n.send(ctx, n.payload(embeds))
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	return n.send(ctx, n.payload([]Embed{previewEmbed("Leaving Soon", event.Items, event.DeletionDate)}))
}

func (n *Notifier) payload(embeds []Embed) WebhookPayload {
	return WebhookPayload{
		Username:  n.settings.Username,
		AvatarURL: n.settings.AvatarURL,
		Embeds:    embeds,
	}
}

func (n *Notifier) summaryEmbed(event types.RunEvent) Embed {
	color := ColorSuccess
	if event.DryRun {
		color = ColorDryRun
	}

	movies, shows := types.SplitKinds(event.Deleted)
	var fields []EmbedField
	if len(movies) > 0 {
		fields = append(fields, EmbedField{Name: "Movies", Value: strconv.Itoa(len(movies)), Inline: true})
	}
	if len(shows) > 0 {
		fields = append(fields, EmbedField{Name: "TV Shows", Value: strconv.Itoa(len(shows)), Inline: true})
	}
	fields = append(fields, EmbedField{Name: "Space Freed", Value: types.FormatSize(event.BytesFreed), Inline: true})

	return Embed{
		Title:       types.RunTitle(event),
		Description: types.RunSummary(event),
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func deletedEmbed(event types.RunEvent) Embed {
	color := ColorSuccess
	if event.DryRun {
		color = ColorDryRun
	}

	movies, shows := types.SplitKinds(event.Deleted)
	var lines []string
	if len(movies) > 0 {
		lines = append(lines, "**Movies:**")
		lines = append(lines, itemLines(movies)...)
	}
	if len(shows) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "**TV Shows:**")
		lines = append(lines, itemLines(shows)...)
	}

	return Embed{
		Title:       "Deleted Items",
		Description: strings.Join(lines, "\n"),
		Color:       color,
	}
}

func previewEmbed(title string, items []types.MediaInfo, deletionDate *time.Time) Embed {
	lines := []string{
		fmt.Sprintf("*%d items, %s*", len(items), types.FormatSize(types.TotalBytes(items))),
		"",
	}
	if date := types.RemovalDate(deletionDate); date != "" {
		lines = append(lines, "**Removal date: "+date+"**", "")
	}
	lines = append(lines, itemLines(items)...)

	return Embed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Color:       ColorWarning,
	}
}

func itemLines(items []types.MediaInfo) []string {
	head, more := types.Head(items, types.MaxListedItems)
	lines := make([]string, 0, len(head)+1)
	for _, it := range head {
		lines = append(lines, "• "+it.Line())
	}
	if more > 0 {
		lines = append(lines, fmt.Sprintf("*...and %d more*", more))
	}
	return lines
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	n.logger.Debug().Int("embeds", len(payload.Embeds)).Msg("Discord message delivered")
	return nil
}

// WebhookPayload is the Discord webhook request body
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord message embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
