package telegram

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

const telegramAPIBase = "https://api.telegram.org"

// Parse modes accepted by the Bot API
const (
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

// Settings contains Telegram-specific configuration
type Settings struct {
	BotToken  string `json:"botToken"`
	ChatID    string `json:"chatId"`
	ParseMode string `json:"parseMode,omitempty"`
	APIBase   string `json:"apiBase,omitempty"`
}

// Notifier sends notifications via Telegram bot
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new Telegram notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if settings.ParseMode == "" {
		settings.ParseMode = ParseModeMarkdownV2
	}
	if settings.APIBase == "" {
		settings.APIBase = telegramAPIBase
	}
	settings.APIBase = strings.TrimRight(settings.APIBase, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "telegram").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierTelegram
}

func (n *Notifier) Name() string {
	return n.name
}

// Test checks the bot token with getMe without posting to the chat.
func (n *Notifier) Test(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint("getMe"), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	f := n.formatter()
	var lines []string

	lines = append(lines, f.bold(types.RunTitle(event)), "", f.escape(types.RunSummary(event)), "")

	if len(event.Deleted) > 0 {
		lines = append(lines, f.bold("Deleted Items:"))
		movies, shows := types.SplitKinds(event.Deleted)
		if len(movies) > 0 {
			lines = append(lines, f.italic(fmt.Sprintf("Movies (%d):", len(movies))))
			lines = append(lines, f.items(movies)...)
		}
		if len(shows) > 0 {
			lines = append(lines, f.italic(fmt.Sprintf("TV Shows (%d):", len(shows))))
			lines = append(lines, f.items(shows)...)
		}
		lines = append(lines, "")
	}

	if len(event.Preview) > 0 {
		lines = append(lines, f.previewLines("Next Scheduled Deletions", event.Preview, event.DeletionDate)...)
	}

	return n.sendMessage(ctx, strings.TrimRight(strings.Join(lines, "\n"), "\n"))
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	f := n.formatter()
	lines := append([]string{f.bold("Leaving Soon"), ""}, f.previewLines("Scheduled for removal", event.Items, event.DeletionDate)...)
	return n.sendMessage(ctx, strings.Join(lines, "\n"))
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.settings.APIBase, n.settings.BotToken, method)
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":    n.settings.ChatID,
		"text":       text,
		"parse_mode": n.settings.ParseMode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	n.logger.Debug().Int("length", len(text)).Msg("Telegram message delivered")
	return nil
}

func checkResponse(resp *http.Response) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && result.OK {
		return nil
	}
	if result.Description != "" {
		return fmt.Errorf("telegram error: %s", result.Description)
	}
	return fmt.Errorf("telegram returned status %d", resp.StatusCode)
}

// formatter renders text for the configured parse mode.
type formatter struct {
	html bool
}

func (n *Notifier) formatter() formatter {
	return formatter{html: n.settings.ParseMode == ParseModeHTML}
}

const markdownSpecials = "_*[]()~`>#+-=|{}.!\\"

func (f formatter) escape(s string) string {
	if f.html {
		return html.EscapeString(s)
	}
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (f formatter) bold(s string) string {
	if f.html {
		return "<b>" + f.escape(s) + "</b>"
	}
	return "*" + f.escape(s) + "*"
}

func (f formatter) italic(s string) string {
	if f.html {
		return "<i>" + f.escape(s) + "</i>"
	}
	return "_" + f.escape(s) + "_"
}

func (f formatter) items(items []types.MediaInfo) []string {
	head, more := types.Head(items, types.MaxListedItems)
	lines := make([]string, 0, len(head)+1)
	for _, it := range head {
		lines = append(lines, "• "+f.escape(it.Line()))
	}
	if more > 0 {
		lines = append(lines, f.italic(fmt.Sprintf("...and %d more", more)))
	}
	return lines
}

func (f formatter) previewLines(title string, items []types.MediaInfo, deletionDate *time.Time) []string {
	lines := []string{
		f.bold(title) + " " + f.escape(fmt.Sprintf("(%d items, %s):", len(items), types.FormatSize(types.TotalBytes(items)))),
	}
	if date := types.RemovalDate(deletionDate); date != "" {
		lines = append(lines, f.escape("Removal date: ")+f.bold(date))
	}
	return append(lines, f.items(items)...)
}
