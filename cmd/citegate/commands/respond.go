package commands

import (
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
	"github.com/spf13/cobra"
)

func NewApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprove,
	}
	cmd.Flags().String("by", "", "Decision maker (defaults to the current user)")
	return cmd
}

func NewRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  runReject,
	}
	cmd.Flags().String("by", "", "Decision maker (defaults to the current user)")
	return cmd
}

func NewPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List requests waiting for a decision",
		RunE:  runPending,
	}
}

func runApprove(cmd *cobra.Command, args []string) error {
	return runDecision(cmd, args[0], true)
}

func runReject(cmd *cobra.Command, args []string) error {
	return runDecision(cmd, args[0], false)
}

func runDecision(cmd *cobra.Command, id string, approve bool) error {
	store, err := loadMailbox()
	if err != nil {
		return err
	}

	by, _ := cmd.Flags().GetString("by")
	if by == "" {
		if u, err := user.Current(); err == nil {
			by = u.Username
		}
	}

	err = store.Put(id, mailbox.Entry{
		Approved: approve,
		Channel:  "cli",
		Actor:    by,
	})
	switch {
	case err == nil:
	case errors.Is(err, approval.ErrAlreadyResolved):
		return fmt.Errorf("request %s already has a decision", id)
	default:
		return err
	}

	if approve {
		fmt.Printf("Request %s approved.\n", id)
	} else {
		fmt.Printf("Request %s rejected.\n", id)
	}
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	store, err := loadMailbox()
	if err != nil {
		return err
	}

	requests, err := store.ListRequests()
	if err != nil {
		return err
	}

	// Requests that already have a decision entry are no longer pending.
	pending := requests[:0]
	for _, req := range requests {
		if _, decided, err := store.Get(req.ID); err == nil && !decided {
			pending = append(pending, req)
		}
	}
	if len(pending) == 0 {
		fmt.Println("No pending requests.")
		return nil
	}

	for _, req := range pending {
		remaining := "expired"
		if left := time.Until(req.Deadline); left > 0 {
			remaining = left.Round(time.Second).String() + " left"
		}
		fmt.Printf("%s %s %s (%s)\n", req.ID, req.ToolName, req.Preview, remaining)
	}
	return nil
}

func loadMailbox() (*mailbox.FileStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mailbox.NewFileStore(cfg.MailboxPath()), nil
}
