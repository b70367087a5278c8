// Package webhook is the public-facing receiver for chat-platform callback
// events. It authenticates, validates, and rate-limits every inbound event
// before translating it into a mailbox write; it never talks to the
// orchestrator directly, since the two may run as separate processes.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
	"github.com/MEKXH/citegate/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Server receives platform callbacks and writes decisions to the mailbox.
type Server struct {
	cfg        *config.Config
	store      mailbox.Store
	limiter    *SourceLimiter
	httpServer *http.Server
	now        func() time.Time

	// tg edits the original Telegram message after a decision; best
	// effort, nil when the bot token is unavailable.
	tg telegramSender
}

// New creates a webhook server over the given mailbox.
func New(cfg *config.Config, store mailbox.Store) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		limiter: NewSourceLimiter(cfg.Webhook.RateLimitPerMinute, cfg.Webhook.RateLimitBurst),
		now:     time.Now,
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		if bot, err := tgbotapi.NewBotAPI(cfg.Channels.Telegram.Token); err == nil {
			s.tg = bot
		} else {
			slog.Warn("telegram bot unavailable, message edits disabled", "error", err)
		}
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Webhook.Host, s.cfg.Webhook.Port)
}

// Handler builds the router. Only endpoints for enabled platforms are
// mounted, so a disabled platform is a plain 404.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.cfg.Channels.Slack.Enabled {
		r.Post("/slack/interactive", s.handleSlack)
	}
	if s.cfg.Channels.Telegram.Enabled {
		r.Post("/telegram/webhook", s.handleTelegram)
	}
	return r
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("webhook receiver listening",
		"addr", s.httpServer.Addr,
		"slack", s.cfg.Channels.Slack.Enabled,
		"telegram", s.cfg.Channels.Telegram.Enabled)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"platforms": map[string]bool{
			"slack":    s.cfg.Channels.Slack.Enabled,
			"telegram": s.cfg.Channels.Telegram.Enabled,
		},
	})
}

// Per-event outcomes, logged for every inbound callback.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeIgnored  = "ignored"
)

func logEvent(platform, outcome, reason, approvalID string) {
	slog.Info("webhook event",
		"platform", platform,
		"outcome", outcome,
		"reason", reason,
		"approval_id", approvalID)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
