package notification

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/notification/discord"
	"github.com/deleterr/deleterr/internal/notification/email"
	"github.com/deleterr/deleterr/internal/notification/slack"
	"github.com/deleterr/deleterr/internal/notification/telegram"
	"github.com/deleterr/deleterr/internal/notification/webhook"
)

// Service applies the notification settings and fans events out to the
// configured providers. Delivery failures are logged, never returned.
type Service struct {
	cfg         config.NotificationsConfig
	run         []Notifier
	leavingSoon []Notifier
	logger      zerolog.Logger
}

// NewService creates the providers described by cfg.
func NewService(cfg config.NotificationsConfig, httpClient *http.Client, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.With().Str("component", "notification").Logger(),
	}
	s.run = buildNotifiers("", cfg.NotificationProviders, "", httpClient, logger)
	s.leavingSoon = buildNotifiers("leaving-soon-", cfg.LeavingSoon.NotificationProviders, cfg.LeavingSoon.Subject, httpClient, logger)

	if cfg.Enabled {
		var names []string
		for _, n := range append(append([]Notifier{}, s.run...), s.leavingSoon...) {
			names = append(names, n.Name())
		}
		if len(names) == 0 {
			s.logger.Debug().Msg("Notifications enabled but no providers configured")
		} else {
			s.logger.Info().Strs("providers", names).Msg("Notification providers configured")
		}
	}
	return s
}

// buildNotifiers creates one notifier per configured provider.
// defaultSubject applies to email when the provider sets none.
func buildNotifiers(prefix string, p config.NotificationProviders, defaultSubject string, httpClient *http.Client, logger zerolog.Logger) []Notifier {
	var out []Notifier
	if p.Webhook.URL != "" {
		out = append(out, webhook.New(prefix+"webhook", webhookSettings(p.Webhook), httpClient, logger))
	}
	if p.Discord.WebhookURL != "" {
		out = append(out, discord.New(prefix+"discord", discord.Settings{
			WebhookURL: p.Discord.WebhookURL,
			Username:   p.Discord.Username,
			AvatarURL:  p.Discord.AvatarURL,
		}, httpClient, logger))
	}
	if p.Slack.WebhookURL != "" {
		out = append(out, slack.New(prefix+"slack", slack.Settings{
			WebhookURL: p.Slack.WebhookURL,
			Channel:    p.Slack.Channel,
			Username:   p.Slack.Username,
			IconEmoji:  p.Slack.IconEmoji,
		}, httpClient, logger))
	}
	if p.Telegram.BotToken != "" && p.Telegram.ChatID != "" {
		out = append(out, telegram.New(prefix+"telegram", telegram.Settings{
			BotToken:  p.Telegram.BotToken,
			ChatID:    p.Telegram.ChatID,
			ParseMode: p.Telegram.ParseMode,
			APIBase:   p.Telegram.APIURL,
		}, httpClient, logger))
	}
	if p.Email.SMTPServer != "" && p.Email.FromAddress != "" && len(p.Email.ToAddresses) > 0 {
		out = append(out, email.New(prefix+"email", emailSettings(p.Email, defaultSubject), logger))
	}
	return out
}

func webhookSettings(c config.WebhookConfig) webhook.Settings {
	return webhook.Settings{
		URL:     c.URL,
		Method:  c.Method,
		Headers: c.Headers,
		Timeout: time.Duration(c.Timeout) * time.Second,
	}
}

func emailSettings(c config.EmailConfig, defaultSubject string) email.Settings {
	subject := c.Subject
	if subject == "" {
		subject = defaultSubject
	}
	return email.Settings{
		Server:   c.SMTPServer,
		Port:     c.SMTPPort,
		UseTLS:   c.UseTLS == nil || *c.UseTLS,
		UseSSL:   c.UseSSL,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.FromAddress,
		To:       c.ToAddresses,
		Subject:  subject,
		Timeout:  time.Duration(c.Timeout) * time.Second,
	}
}

// AddNotifier registers an extra run summary provider.
func (s *Service) AddNotifier(n Notifier) {
	s.run = append(s.run, n)
}

// AddLeavingSoonNotifier registers an extra leaving-soon provider.
func (s *Service) AddLeavingSoonNotifier(n Notifier) {
	s.leavingSoon = append(s.leavingSoon, n)
}

// Enabled reports whether any provider would receive events.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && (len(s.run) > 0 || len(s.leavingSoon) > 0)
}

// NotifyRun sends the run summary when the settings allow it.
func (s *Service) NotifyRun(ctx context.Context, event RunEvent) {
	if !s.cfg.Enabled || len(s.run) == 0 {
		return
	}
	if event.DryRun && !s.cfg.NotifyOnDryRun {
		s.logger.Debug().Msg("Dry run, skipping run notification")
		return
	}
	if len(event.Deleted) < s.cfg.MinDeletionsToNotify {
		s.logger.Debug().
			Int("deleted", len(event.Deleted)).
			Int("min", s.cfg.MinDeletionsToNotify).
			Msg("Too few deletions, skipping run notification")
		return
	}
	if len(event.Deleted) == 0 && len(event.Preview) == 0 {
		s.logger.Debug().Msg("Nothing to report")
		return
	}
	if !s.cfg.IncludePreview {
		event.Preview = nil
	}
	for _, n := range s.run {
		if err := n.OnRunCompleted(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("notifier", n.Name()).Msg("Failed to send run notification")
		}
	}
}

// NotifyLeavingSoon tells users what the next run will delete.
func (s *Service) NotifyLeavingSoon(ctx context.Context, event LeavingSoonEvent) {
	if !s.cfg.Enabled || len(s.leavingSoon) == 0 || len(event.Items) == 0 {
		return
	}
	if event.DryRun && !s.cfg.NotifyOnDryRun {
		return
	}
	for _, n := range s.leavingSoon {
		if err := n.OnLeavingSoon(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("notifier", n.Name()).Msg("Failed to send leaving soon notification")
		}
	}
}

// Test sends a test event through every provider.
func (s *Service) Test(ctx context.Context) error {
	for _, n := range append(append([]Notifier{}, s.run...), s.leavingSoon...) {
		if err := n.Test(ctx); err != nil {
			return err
		}
	}
	return nil
}
