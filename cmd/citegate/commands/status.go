package commands

import (
	"fmt"
	"os"

	"github.com/MEKXH/citegate/internal/channel/prompt"
	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Citegate configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("=== Citegate Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'citegate init')")
	}

	fmt.Printf("\nMailbox: %s\n", cfg.MailboxPath())
	store := mailbox.NewFileStore(cfg.MailboxPath())
	if requests, err := store.ListRequests(); err == nil {
		fmt.Printf("  Pending requests: %d\n", len(requests))
	} else {
		fmt.Println("  Status: unavailable")
	}

	fmt.Println("\nChannels:")
	fmt.Println("  file: enabled (always on)")

	promptLine := "disabled"
	if cfg.Channels.Prompt.Enabled {
		switch {
		case cfg.RemoteEnabled():
			promptLine = "enabled (suppressed: remote channel active)"
		case !prompt.Available():
			promptLine = "enabled (no TTY)"
		default:
			promptLine = "enabled (ready)"
		}
	}
	fmt.Printf("  prompt: %s\n", promptLine)

	slackLine := "disabled"
	if cfg.Channels.Slack.Enabled {
		slackLine = "enabled (ready)"
		if cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.Channel == "" {
			slackLine = "enabled (missing bot_token or channel)"
		}
	}
	fmt.Printf("  slack: %s\n", slackLine)

	telegramLine := "disabled"
	if cfg.Channels.Telegram.Enabled {
		telegramLine = "enabled (ready)"
		if cfg.Channels.Telegram.Token == "" || cfg.Channels.Telegram.ChatID == 0 {
			telegramLine = "enabled (missing token or chat_id)"
		}
	}
	fmt.Printf("  telegram: %s\n", telegramLine)

	fmt.Println("\nWebhook:")
	fmt.Printf("  Address: %s:%d\n", cfg.Webhook.Host, cfg.Webhook.Port)
	if cfg.RemoteEnabled() {
		fmt.Println("  Status: required (run 'citegate serve')")
	} else {
		fmt.Println("  Status: not needed")
	}

	fmt.Println("\nApproval:")
	fmt.Printf("  Timeout: %s\n", cfg.Timeout())
	onTimeout := "reject"
	if cfg.Approval.ApproveOnTimeout {
		onTimeout = "approve"
	}
	fmt.Printf("  On timeout: %s\n", onTimeout)

	return nil
}
