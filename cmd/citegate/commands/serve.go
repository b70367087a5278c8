package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
	"github.com/MEKXH/citegate/internal/webhook"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook receiver",
		Long: `Serve runs the public-facing webhook receiver that turns Slack and
Telegram button presses into mailbox decisions. It runs as its own process
so approvals keep working while no 'ask' cycle is active.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.RemoteEnabled() {
		return errors.New("no remote channel enabled; nothing to receive")
	}

	store := mailbox.NewFileStore(cfg.MailboxPath())
	server := webhook.New(cfg, store)

	// Reap mailbox entries orphaned by crashed ask processes.
	go runSweeper(ctx, store, cfg.MaxEntryAge())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("webhook server failed: %w", err)
		}
	}()

	fmt.Printf("Citegate webhook receiver running on http://%s\nPress Ctrl+C to stop.\n", server.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("webhook shutdown failed", "error", err)
	}

	return runErr
}

func runSweeper(ctx context.Context, store mailbox.Store, maxAge time.Duration) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(maxAge)
			if err != nil {
				slog.Warn("mailbox sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("mailbox sweep reaped orphaned entries", "count", removed)
			}
		}
	}
}
