package commands

import (
	"fmt"
	"os"

	"github.com/MEKXH/citegate/internal/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Citegate configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		cfg.MailboxPath(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Citegate initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Mailbox: %s\n", cfg.MailboxPath())
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to enable Slack or Telegram (optional)\n", configPath)
	fmt.Printf("2. Run 'citegate ask <tool> <preview>' to gate a tool call\n")

	return nil
}
