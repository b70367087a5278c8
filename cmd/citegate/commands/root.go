package commands

import (
	"github.com/MEKXH/citegate/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "citegate",
		Short: "Citegate - Approval gate for agent tool calls",
		Long:  `Citegate pauses mutating tool calls until a human approves them, via a local prompt, a decision file, Slack, or Telegram.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewApproveCmd(),
		NewRejectCmd(),
		NewPendingCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
