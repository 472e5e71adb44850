package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

// Settings contains Slack-specific configuration
type Settings struct {
	WebhookURL string `json:"webhookUrl"`
	Channel    string `json:"channel,omitempty"`
	Username   string `json:"username,omitempty"`
	IconEmoji  string `json:"iconEmoji,omitempty"`
}

// Notifier sends notifications via Slack incoming webhook
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new Slack notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if settings.Username == "" {
		settings.Username = "Deleterr"
	}
	if settings.IconEmoji == "" {
		settings.IconEmoji = ":wastebasket:"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "slack").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierSlack
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, Payload{
		Username: n.settings.Username,
		Text:     "Deleterr connection test successful!",
	})
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	blocks := []Block{
		header(types.RunTitle(event)),
		section(runSummary(event)),
	}
	if len(event.Deleted) > 0 {
		blocks = append(blocks, divider())
		blocks = append(blocks, deletedBlocks(event.Deleted)...)
	}
	if len(event.Preview) > 0 {
		blocks = append(blocks, divider())
		blocks = append(blocks, previewBlocks("Next Scheduled Deletions", event.Preview, event.DeletionDate)...)
	}
	blocks = append(blocks, footer(event.DryRun))
	return n.send(ctx, n.payload(blocks))
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	blocks := []Block{header("Leaving Soon")}
	blocks = append(blocks, previewBlocks("Scheduled for removal", event.Items, event.DeletionDate)...)
	blocks = append(blocks, footer(event.DryRun))
	return n.send(ctx, n.payload(blocks))
}

func (n *Notifier) payload(blocks []Block) Payload {
	return Payload{
		Username:  n.settings.Username,
		IconEmoji: n.settings.IconEmoji,
		Channel:   n.settings.Channel,
		Blocks:    blocks,
	}
}

func runSummary(event types.RunEvent) string {
	movies, shows := types.SplitKinds(event.Deleted)
	var parts []string
	if len(movies) > 0 {
		parts = append(parts, fmt.Sprintf("*%d* movies", len(movies)))
	}
	if len(shows) > 0 {
		parts = append(parts, fmt.Sprintf("*%d* TV shows", len(shows)))
	}
	items := "0 items"
	if len(parts) > 0 {
		items = strings.Join(parts, " and ")
	}

	size := types.FormatSize(event.BytesFreed)
	if event.DryRun {
		return fmt.Sprintf("Would delete %s, freeing *%s*", items, size)
	}
	return fmt.Sprintf("Deleted %s, freed *%s*", items, size)
}

func deletedBlocks(deleted []types.MediaInfo) []Block {
	blocks := []Block{section("*Deleted Items*")}
	movies, shows := types.SplitKinds(deleted)
	if len(movies) > 0 {
		blocks = append(blocks, section(strings.Join(append([]string{"*Movies:*"}, itemLines(movies)...), "\n")))
	}
	if len(shows) > 0 {
		blocks = append(blocks, section(strings.Join(append([]string{"*TV Shows:*"}, itemLines(shows)...), "\n")))
	}
	return blocks
}

func previewBlocks(title string, items []types.MediaInfo, deletionDate *time.Time) []Block {
	head := fmt.Sprintf("*%s* (%d items, %s)", title, len(items), types.FormatSize(types.TotalBytes(items)))
	if date := types.RemovalDate(deletionDate); date != "" {
		head += " - Removal date: *" + date + "*"
	}
	return []Block{
		section(head),
		section(strings.Join(itemLines(items), "\n")),
	}
}

func itemLines(items []types.MediaInfo) []string {
	head, more := types.Head(items, types.MaxListedItems)
	lines := make([]string, 0, len(head)+1)
	for _, it := range head {
		lines = append(lines, "• "+it.Line())
	}
	if more > 0 {
		lines = append(lines, fmt.Sprintf("_...and %d more_", more))
	}
	return lines
}

func header(text string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: text, Emoji: true}}
}

func section(text string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: text}}
}

func divider() Block {
	return Block{Type: "divider"}
}

func footer(dryRun bool) Block {
	mode := "Live"
	if dryRun {
		mode = "Dry Run"
	}
	return Block{Type: "context", Elements: []Text{{Type: "mrkdwn", Text: "Deleterr • " + mode + " Mode"}}}
}

func (n *Notifier) send(ctx context.Context, payload Payload) error {
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

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	// Incoming webhooks answer "ok" on success and a reason otherwise.
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if text := strings.TrimSpace(string(reply)); text != "" && text != "ok" {
		return fmt.Errorf("slack rejected message: %s", text)
	}

	n.logger.Debug().Int("blocks", len(payload.Blocks)).Msg("Slack message delivered")
	return nil
}

// Payload is the Slack webhook request body
type Payload struct {
	Username  string  `json:"username,omitempty"`
	IconEmoji string  `json:"icon_emoji,omitempty"`
	Channel   string  `json:"channel,omitempty"`
	Text      string  `json:"text,omitempty"`
	Blocks    []Block `json:"blocks,omitempty"`
}

// Block is a Block Kit layout block
type Block struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Elements []Text `json:"elements,omitempty"`
}

// Text is a Block Kit text object
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}
