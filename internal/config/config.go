package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultLockFile guards against two processes running against the same setup.
const DefaultLockFile = "/config/.deleterr.lock"

// Config holds all application configuration.
type Config struct {
	DryRun                          bool `mapstructure:"dry_run"`
	SSLVerify                       bool `mapstructure:"ssl_verify"`
	ActionDelay                     int  `mapstructure:"action_delay" validate:"gte=0"`
	PlexLibraryScanAfterActions     bool `mapstructure:"plex_library_scan_after_actions"`
	TautulliLibraryScanAfterActions bool `mapstructure:"tautulli_library_scan_after_actions"`

	Plex      PlexConfig       `mapstructure:"plex"`
	Tautulli  TautulliConfig   `mapstructure:"tautulli"`
	Radarr    []InstanceConfig `mapstructure:"radarr" validate:"dive"`
	Sonarr    []InstanceConfig `mapstructure:"sonarr" validate:"dive"`
	Trakt     TraktConfig      `mapstructure:"trakt"`
	MDBList   MDBListConfig    `mapstructure:"mdblist"`
	JustWatch JustWatchConfig  `mapstructure:"justwatch"`
	Seerr     SeerrConfig      `mapstructure:"seerr"`
	Overseerr SeerrConfig      `mapstructure:"overseerr"`

	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	StatusServer  StatusServerConfig  `mapstructure:"status_server"`
	LockFile      string              `mapstructure:"lock_file"`

	Libraries []Library `mapstructure:"libraries" validate:"required,min=1,dive"`

	settings map[string]any
}

// PlexConfig holds Plex Media Server connection settings.
type PlexConfig struct {
	URL   string `mapstructure:"url" validate:"required,url"`
	Token string `mapstructure:"token" validate:"required"`
}

// TautulliConfig holds Tautulli connection settings.
type TautulliConfig struct {
	URL    string `mapstructure:"url" validate:"required,url"`
	APIKey string `mapstructure:"api_key" validate:"required"`
}

// InstanceConfig holds a Radarr or Sonarr connection.
type InstanceConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	URL    string `mapstructure:"url" validate:"required,url"`
	APIKey string `mapstructure:"api_key" validate:"required"`
}

// TraktConfig holds Trakt API credentials.
type TraktConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Configured reports whether Trakt credentials are present.
func (c TraktConfig) Configured() bool { return c.ClientID != "" }

// MDBListConfig holds the MDBList API key.
type MDBListConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// JustWatchConfig holds global JustWatch locale settings.
type JustWatchConfig struct {
	Country  string `mapstructure:"country"`
	Language string `mapstructure:"language"`
}

// SeerrConfig holds Seerr/Overseerr connection settings.
type SeerrConfig struct {
	URL    string `mapstructure:"url" validate:"omitempty,url"`
	APIKey string `mapstructure:"api_key"`
}

// Configured reports whether a Seerr server is set up.
func (c SeerrConfig) Configured() bool { return c.URL != "" && c.APIKey != "" }

// SchedulerConfig holds built-in scheduler settings.
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Schedule     string `mapstructure:"schedule"`
	Timezone     string `mapstructure:"timezone"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	NotifyOnDryRun       bool `mapstructure:"notify_on_dry_run"`
	IncludePreview       bool `mapstructure:"include_preview"`
	MinDeletionsToNotify int  `mapstructure:"min_deletions_to_notify" validate:"gte=0"`

	NotificationProviders `mapstructure:",squash"`

	LeavingSoon LeavingSoonNotifications `mapstructure:"leaving_soon"`
}

// LeavingSoonNotifications configures the providers told about upcoming deletions.
type LeavingSoonNotifications struct {
	NotificationProviders `mapstructure:",squash"`

	Subject string `mapstructure:"subject"`
}

// NotificationProviders lists the delivery channels. A provider is active
// when its endpoint is set.
type NotificationProviders struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
}

// WebhookConfig holds a generic webhook endpoint.
type WebhookConfig struct {
	URL     string            `mapstructure:"url" validate:"omitempty,url"`
	Method  string            `mapstructure:"method" validate:"omitempty,oneof=POST PUT"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout int               `mapstructure:"timeout" validate:"gte=0"`
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Username   string `mapstructure:"username"`
	AvatarURL  string `mapstructure:"avatar_url" validate:"omitempty,url"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
	IconEmoji  string `mapstructure:"icon_emoji"`
}

// TelegramConfig holds bot settings. APIURL points at a self-hosted Bot API
// server and defaults to api.telegram.org.
type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChatID    string `mapstructure:"chat_id"`
	ParseMode string `mapstructure:"parse_mode" validate:"omitempty,oneof=MarkdownV2 HTML"`
	APIURL    string `mapstructure:"api_url" validate:"omitempty,url"`
}

// EmailConfig holds SMTP delivery settings. UseTLS means STARTTLS and
// defaults to on; UseSSL dials implicit TLS instead.
type EmailConfig struct {
	SMTPServer   string   `mapstructure:"smtp_server"`
	SMTPPort     int      `mapstructure:"smtp_port" validate:"gte=0,lte=65535"`
	UseTLS       *bool    `mapstructure:"use_tls"`
	UseSSL       bool     `mapstructure:"use_ssl"`
	SMTPUsername string   `mapstructure:"smtp_username"`
	SMTPPassword string   `mapstructure:"smtp_password"`
	FromAddress  string   `mapstructure:"from_address"`
	ToAddresses  []string `mapstructure:"to_addresses"`
	Subject      string   `mapstructure:"subject"`
	Timeout      int      `mapstructure:"timeout" validate:"gte=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// StatusServerConfig holds the read-only status HTTP server configuration.
type StatusServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Address returns the server address string.
func (c *StatusServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine; it only seeds the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath("/config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DELETERR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return nil, fmt.Errorf("%w: no settings file found, copy the example config and edit it to your needs", ErrInvalid)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.settings = v.AllSettings()
	cfg.normalize()

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", true)
	v.SetDefault("ssl_verify", false)
	v.SetDefault("action_delay", 0)
	v.SetDefault("plex_library_scan_after_actions", false)
	v.SetDefault("tautulli_library_scan_after_actions", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedule", "weekly")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.run_on_startup", false)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.notify_on_dry_run", true)
	v.SetDefault("notifications.include_preview", true)
	v.SetDefault("notifications.min_deletions_to_notify", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("status_server.enabled", false)
	v.SetDefault("status_server.host", "0.0.0.0")
	v.SetDefault("status_server.port", 8686)

	v.SetDefault("lock_file", DefaultLockFile)
}

// normalize folds legacy keys into their current names.
func (c *Config) normalize() {
	if !c.Seerr.Configured() && c.Overseerr.Configured() {
		c.Seerr = c.Overseerr
	}
	for i := range c.Libraries {
		lib := &c.Libraries[i]
		if lib.Exclude.Seerr == nil && lib.Exclude.Overseerr != nil {
			lib.Exclude.Seerr = lib.Exclude.Overseerr
		}
		lib.Exclude.Overseerr = nil
	}
}

// Instances returns the configured arr connections of the given kind.
func (c *Config) Instances(kind string) []InstanceConfig {
	switch kind {
	case "radarr":
		return c.Radarr
	case "sonarr":
		return c.Sonarr
	default:
		return nil
	}
}
