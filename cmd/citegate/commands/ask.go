package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/channel"
	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
	"github.com/MEKXH/citegate/internal/orchestrator"
	"github.com/spf13/cobra"
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <tool> <preview>",
		Short: "Request approval for a tool call and wait for the decision",
		Long: `Ask runs one approval cycle: it notifies every enabled channel and blocks
until someone decides, the deadline passes, or the process is interrupted.
The exit code is 0 when the call is approved and non-zero otherwise, so it
can gate a tool call directly from a script or hook.`,
		Args: cobra.ExactArgs(2),
		RunE: runAsk,
	}
	cmd.Flags().String("args", "", "Tool arguments as a JSON object")
	cmd.Flags().Duration("timeout", 0, "Override the approval timeout")
	cmd.SilenceUsage = true
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var toolArgs map[string]any
	if raw, _ := cmd.Flags().GetString("args"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
			return fmt.Errorf("invalid --args: %w", err)
		}
	}

	opts := orchestrator.Options{
		Timeout:          cfg.Timeout(),
		PollInterval:     cfg.PollInterval(),
		Grace:            cfg.Grace(),
		MaxEntryAge:      cfg.MaxEntryAge(),
		ApproveOnTimeout: cfg.Approval.ApproveOnTimeout,
	}
	if override, _ := cmd.Flags().GetDuration("timeout"); override > 0 {
		opts.Timeout = override
	}

	store := mailbox.NewFileStore(cfg.MailboxPath())
	orch := orchestrator.New(store, channel.Enabled(cfg, store), opts)
	go orch.RunSweeper(ctx, 10*time.Minute)

	decision, err := orch.RequestApproval(ctx, args[0], args[1], toolArgs)
	switch {
	case err == nil:
	case errors.Is(err, approval.ErrTimeout):
		if decision.Approved {
			fmt.Printf("No response within %s; approved by policy.\n", opts.Timeout)
			return nil
		}
		return fmt.Errorf("no response within %s; rejected", opts.Timeout)
	case errors.Is(err, context.Canceled):
		return errors.New("interrupted; rejected")
	default:
		return err
	}

	if decision.Approved {
		fmt.Printf("Approved via %s%s.\n", decision.Channel, byActor(decision.Actor))
		return nil
	}
	return fmt.Errorf("rejected via %s%s", decision.Channel, byActor(decision.Actor))
}

func byActor(actor string) string {
	if actor == "" {
		return ""
	}
	return " by " + actor
}
