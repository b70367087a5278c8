// Package telegram implements the Telegram notification channel. Notify
// sends a message with an inline approve/reject keyboard and returns; the
// callback query comes back through the webhook receiver and the mailbox.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	approvePrefix = "approve:"
	rejectPrefix  = "reject:"
)

// CallbackData builds the inline button payload for an approval ID.
func CallbackData(id string, approve bool) string {
	if approve {
		return approvePrefix + id
	}
	return rejectPrefix + id
}

// ParseCallbackData extracts the approval ID and outcome from a callback
// query payload. The ID is not yet validated against the token grammar.
func ParseCallbackData(data string) (id string, approved, ok bool) {
	if rest, found := strings.CutPrefix(data, approvePrefix); found {
		return rest, true, true
	}
	if rest, found := strings.CutPrefix(data, rejectPrefix); found {
		return rest, false, true
	}
	return "", false, false
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter sends approval requests to a Telegram chat.
type Adapter struct {
	cfg *config.TelegramConfig

	initOnce sync.Once
	initErr  error
	bot      sender
}

// New creates a Telegram channel adapter. The bot API connection is
// established on first Notify so a misconfigured token surfaces as a
// notification error instead of failing construction.
func New(cfg *config.TelegramConfig) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) init() error {
	a.initOnce.Do(func() {
		if a.bot != nil {
			return
		}
		bot, err := tgbotapi.NewBotAPI(a.cfg.Token)
		if err != nil {
			a.initErr = fmt.Errorf("telegram init failed: %w", err)
			return
		}
		slog.Info("telegram bot connected", "username", bot.Self.UserName)
		a.bot = bot
	})
	return a.initErr
}

// Notify sends the approval message with inline buttons and returns.
func (a *Adapter) Notify(ctx context.Context, req approval.Request) (*approval.Decision, error) {
	if err := a.init(); err != nil {
		return nil, err
	}

	msg := tgbotapi.NewMessage(a.cfg.ChatID, messageText(req))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", CallbackData(req.ID, true)),
			tgbotapi.NewInlineKeyboardButtonData("Reject", CallbackData(req.ID, false)),
		),
	)

	if _, err := a.bot.Send(msg); err != nil {
		return nil, fmt.Errorf("send telegram approval message: %w", err)
	}

	slog.Debug("telegram approval message sent",
		"approval_id", req.ID,
		"chat_id", a.cfg.ChatID)
	return nil, nil
}

func messageText(req approval.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approval required: %s\n\n", req.ToolName)
	fmt.Fprintf(&b, "%s\n", req.Preview)
	if len(req.Args) > 0 {
		if encoded, err := json.MarshalIndent(req.Args, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nArguments:\n%s\n", string(encoded))
		}
	}
	fmt.Fprintf(&b, "\nID: %s", req.ID)
	return b.String()
}
