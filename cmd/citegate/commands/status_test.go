package commands

import (
	"strings"
	"testing"

	"github.com/MEKXH/citegate/internal/config"
)

func TestStatus_DefaultConfig(t *testing.T) {
	prepareWorkspace(t)

	output := captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus: %v", err)
		}
	})

	for _, want := range []string{
		"=== Citegate Status ===",
		"file: enabled (always on)",
		"slack: disabled",
		"telegram: disabled",
		"On timeout: reject",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatus_RemoteSuppressesPrompt(t *testing.T) {
	cfg := prepareWorkspace(t)
	cfg.Channels.Slack.Enabled = true
	cfg.Channels.Slack.BotToken = "xoxb-test"
	cfg.Channels.Slack.Channel = "#approvals"
	cfg.Channels.Slack.SigningSecret = "secret"
	if err := config.Save(cfg); err != nil {
		t.Fatalf("config.Save: %v", err)
	}

	output := captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus: %v", err)
		}
	})

	if !strings.Contains(output, "prompt: enabled (suppressed: remote channel active)") {
		t.Fatalf("expected suppressed prompt, got: %s", output)
	}
	if !strings.Contains(output, "slack: enabled (ready)") {
		t.Fatalf("expected ready slack, got: %s", output)
	}
	if !strings.Contains(output, "Status: required (run 'citegate serve')") {
		t.Fatalf("expected webhook required, got: %s", output)
	}
}
