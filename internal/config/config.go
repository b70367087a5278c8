package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Approval ApprovalConfig `mapstructure:"approval"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
}

// ApprovalConfig approval cycle settings
type ApprovalConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	PollIntervalMS   int    `mapstructure:"poll_interval_ms"`
	GraceSeconds     int    `mapstructure:"grace_seconds"`
	MaxEntryAgeHours int    `mapstructure:"max_entry_age_hours"`
	MailboxDir       string `mapstructure:"mailbox_dir"`
	// ApproveOnTimeout flips the default outcome when the deadline passes.
	// Off by default: an unanswered request is rejected.
	ApproveOnTimeout bool `mapstructure:"approve_on_timeout"`
}

// ChannelsConfig channel settings
type ChannelsConfig struct {
	Prompt   PromptConfig   `mapstructure:"prompt"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// PromptConfig local interactive prompt settings
type PromptConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SlackConfig slack integration settings
type SlackConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BotToken      string `mapstructure:"bot_token"`
	Channel       string `mapstructure:"channel"`
	SigningSecret string `mapstructure:"signing_secret"`
	// TrustTunnel skips application-level signature verification when an
	// upstream tunnel (e.g. an ngrok traffic policy) already performs it.
	TrustTunnel bool `mapstructure:"trust_tunnel"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Token         string `mapstructure:"token"`
	ChatID        int64  `mapstructure:"chat_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	TrustTunnel   bool   `mapstructure:"trust_tunnel"`
}

// WebhookConfig webhook receiver settings
type WebhookConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	ReplayWindowSecs   int    `mapstructure:"replay_window_seconds"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Approval: ApprovalConfig{
			TimeoutSeconds:   300,
			PollIntervalMS:   500,
			GraceSeconds:     60,
			MaxEntryAgeHours: 24,
			MailboxDir:       "",
		},
		Channels: ChannelsConfig{
			Prompt: PromptConfig{
				Enabled: true,
			},
			Slack: SlackConfig{
				Enabled: false,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		Webhook: WebhookConfig{
			Host:               "0.0.0.0",
			Port:               18791,
			RateLimitPerMinute: 60,
			RateLimitBurst:     10,
			MaxBodyBytes:       100 * 1024,
			ReplayWindowSecs:   300,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the citegate config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".citegate")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("CITEGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	a := &c.Approval

	if a.TimeoutSeconds < 0 {
		return fmt.Errorf("approval.timeout_seconds must not be negative, got %d", a.TimeoutSeconds)
	}
	if a.TimeoutSeconds == 0 {
		a.TimeoutSeconds = 300
	}
	if a.PollIntervalMS <= 0 {
		a.PollIntervalMS = 500
	}
	if a.GraceSeconds <= 0 {
		a.GraceSeconds = 60
	}
	if a.MaxEntryAgeHours <= 0 {
		a.MaxEntryAgeHours = 24
	}

	if c.Channels.Slack.Enabled {
		if strings.TrimSpace(c.Channels.Slack.BotToken) == "" {
			return fmt.Errorf("channels.slack.bot_token is required when slack is enabled")
		}
		if strings.TrimSpace(c.Channels.Slack.Channel) == "" {
			return fmt.Errorf("channels.slack.channel is required when slack is enabled")
		}
		if !c.Channels.Slack.TrustTunnel && strings.TrimSpace(c.Channels.Slack.SigningSecret) == "" {
			return fmt.Errorf("channels.slack.signing_secret is required unless trust_tunnel is set")
		}
	}
	if c.Channels.Telegram.Enabled {
		if strings.TrimSpace(c.Channels.Telegram.Token) == "" {
			return fmt.Errorf("channels.telegram.token is required when telegram is enabled")
		}
		if c.Channels.Telegram.ChatID == 0 {
			return fmt.Errorf("channels.telegram.chat_id is required when telegram is enabled")
		}
		if !c.Channels.Telegram.TrustTunnel && strings.TrimSpace(c.Channels.Telegram.WebhookSecret) == "" {
			return fmt.Errorf("channels.telegram.webhook_secret is required unless trust_tunnel is set")
		}
	}

	if c.Webhook.Port <= 0 || c.Webhook.Port > 65535 {
		return fmt.Errorf("webhook.port must be between 1 and 65535, got %d", c.Webhook.Port)
	}
	if c.Webhook.RateLimitPerMinute <= 0 {
		c.Webhook.RateLimitPerMinute = 60
	}
	if c.Webhook.RateLimitBurst <= 0 {
		c.Webhook.RateLimitBurst = 10
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		c.Webhook.MaxBodyBytes = 100 * 1024
	}
	if c.Webhook.ReplayWindowSecs <= 0 {
		c.Webhook.ReplayWindowSecs = 300
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// MailboxPath returns the expanded mailbox directory
func (c *Config) MailboxPath() string {
	dir := strings.TrimSpace(c.Approval.MailboxDir)
	if dir == "" {
		return filepath.Join(ConfigDir(), "mailbox")
	}
	if dir[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(ConfigDir(), "mailbox")
		}
		rest := strings.TrimPrefix(dir[1:], string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest)
	}
	return dir
}

// RemoteEnabled reports whether any remote platform channel is enabled.
func (c *Config) RemoteEnabled() bool {
	return c.Channels.Slack.Enabled || c.Channels.Telegram.Enabled
}

// PromptActive reports whether the local blocking prompt should run. The
// prompt is suppressed whenever a remote platform is enabled so the user is
// not asked twice; the always-on file channel covers the gap if the remote
// platform is unreachable.
func (c *Config) PromptActive() bool {
	return c.Channels.Prompt.Enabled && !c.RemoteEnabled()
}

// Timeout returns the approval timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}

// PollInterval returns the mailbox poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Approval.PollIntervalMS) * time.Millisecond
}

// Grace returns the post-resolution retention period as a duration.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.Approval.GraceSeconds) * time.Second
}

// MaxEntryAge returns the orphaned entry reap age as a duration.
func (c *Config) MaxEntryAge() time.Duration {
	return time.Duration(c.Approval.MaxEntryAgeHours) * time.Hour
}

// ReplayWindow returns the webhook signature replay window as a duration.
func (c *Config) ReplayWindow() time.Duration {
	return time.Duration(c.Webhook.ReplayWindowSecs) * time.Second
}
