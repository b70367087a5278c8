package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Approval.TimeoutSeconds != 300 {
		t.Errorf("expected TimeoutSeconds=300, got %d", cfg.Approval.TimeoutSeconds)
	}
	if cfg.Webhook.Port != 18791 {
		t.Errorf("expected Port=18791, got %d", cfg.Webhook.Port)
	}
	if !cfg.Channels.Prompt.Enabled {
		t.Error("expected prompt enabled by default")
	}
	if cfg.Channels.Slack.Enabled || cfg.Channels.Telegram.Enabled {
		t.Error("expected remote channels disabled by default")
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.Webhook.Port = 18791

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Approval.TimeoutSeconds != 300 {
		t.Errorf("expected timeout default applied, got %d", cfg.Approval.TimeoutSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level default, got %q", cfg.Log.Level)
	}
	if cfg.Webhook.MaxBodyBytes != 100*1024 {
		t.Errorf("expected body cap default, got %d", cfg.Webhook.MaxBodyBytes)
	}
}

func TestValidate_SlackRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels.Slack.Enabled = true

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("expected bot_token error, got %v", err)
	}

	cfg.Channels.Slack.BotToken = "xoxb-test"
	cfg.Channels.Slack.Channel = "C123"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "signing_secret") {
		t.Fatalf("expected signing_secret error, got %v", err)
	}

	cfg.Channels.Slack.TrustTunnel = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("trust_tunnel should waive signing_secret, got %v", err)
	}
}

func TestValidate_TelegramRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels.Telegram.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing telegram token")
	}

	cfg.Channels.Telegram.Token = "123:abc"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing chat_id")
	}

	cfg.Channels.Telegram.ChatID = 42
	cfg.Channels.Telegram.WebhookSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidate_RejectsBadPortAndLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhook.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port error")
	}

	cfg = DefaultConfig()
	cfg.Log.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected log level error")
	}
}

func TestPromptActive(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.PromptActive() {
		t.Fatal("prompt should be active when no remote channel is enabled")
	}

	cfg.Channels.Slack.Enabled = true
	if cfg.PromptActive() {
		t.Fatal("prompt must be suppressed when a remote channel is enabled")
	}

	cfg.Channels.Slack.Enabled = false
	cfg.Channels.Telegram.Enabled = true
	if cfg.PromptActive() {
		t.Fatal("prompt must be suppressed when telegram is enabled")
	}

	cfg.Channels.Prompt.Enabled = false
	cfg.Channels.Telegram.Enabled = false
	if cfg.PromptActive() {
		t.Fatal("disabled prompt must stay disabled")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout() != 5*time.Minute {
		t.Errorf("unexpected timeout: %s", cfg.Timeout())
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Grace() != time.Minute {
		t.Errorf("unexpected grace: %s", cfg.Grace())
	}
	if cfg.MaxEntryAge() != 24*time.Hour {
		t.Errorf("unexpected max entry age: %s", cfg.MaxEntryAge())
	}
	if cfg.ReplayWindow() != 5*time.Minute {
		t.Errorf("unexpected replay window: %s", cfg.ReplayWindow())
	}
}
