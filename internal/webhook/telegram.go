package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MEKXH/citegate/internal/approval"
	telegramchannel "github.com/MEKXH/citegate/internal/channel/telegram"
	"github.com/MEKXH/citegate/internal/mailbox"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramUpdate is the subset of a Telegram Update carrying a button press.
type telegramUpdate struct {
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Message *struct {
			MessageID int `json:"message_id"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	cfg := &s.cfg.Channels.Telegram

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Webhook.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logEvent("telegram", outcomeRejected, "oversized body", "")
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if !cfg.TrustTunnel {
		token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if !SecretEqual(cfg.WebhookSecret, token) {
			logEvent("telegram", outcomeRejected, "invalid secret token", "")
			writeError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	if !s.limiter.Allow(r.RemoteAddr) {
		logEvent("telegram", outcomeRejected, "rate limited", "")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		logEvent("telegram", outcomeRejected, "malformed update", "")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cb := update.CallbackQuery
	if cb == nil {
		logEvent("telegram", outcomeIgnored, "no callback query", "")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	id, approved, ok := telegramchannel.ParseCallbackData(cb.Data)
	if !ok {
		logEvent("telegram", outcomeIgnored, "unrecognized callback data", "")
		s.answerCallback(w, cb.ID, "Unrecognized action")
		return
	}
	if !approval.ValidID(id) {
		logEvent("telegram", outcomeRejected, "invalid approval id", "")
		writeError(w, http.StatusBadRequest, "invalid approval id")
		return
	}

	actor := cb.From.Username
	if actor == "" {
		actor = cb.From.FirstName
	}

	err = s.store.Put(id, mailbox.Entry{
		Approved: approved,
		Channel:  "telegram",
		Actor:    actor,
	})
	switch {
	case err == nil:
		logEvent("telegram", outcomeAccepted, "", id)
	case errors.Is(err, approval.ErrAlreadyResolved):
		logEvent("telegram", outcomeIgnored, "already resolved", id)
	default:
		logEvent("telegram", outcomeRejected, "mailbox write failed", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Strip the buttons from the original message so the decision is
	// visible in the chat. Best effort; the webhook response below is
	// what acknowledges the press.
	if s.tg != nil && cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, decisionText(approved, actor))
		if _, err := s.tg.Send(edit); err != nil {
			slog.Debug("telegram message edit failed", "approval_id", id, "error", err)
		}
	}

	s.answerCallback(w, cb.ID, decisionText(approved, actor))
}

// answerCallback acknowledges a button press in the webhook response
// itself, which Telegram accepts in place of a separate API call.
func (s *Server) answerCallback(w http.ResponseWriter, callbackID, text string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"method":            "answerCallbackQuery",
		"callback_query_id": callbackID,
		"text":              text,
	})
}
