package channel

import (
	"log/slog"

	"github.com/MEKXH/citegate/internal/channel/file"
	"github.com/MEKXH/citegate/internal/channel/prompt"
	"github.com/MEKXH/citegate/internal/channel/slack"
	"github.com/MEKXH/citegate/internal/channel/telegram"
	"github.com/MEKXH/citegate/internal/config"
	"github.com/MEKXH/citegate/internal/mailbox"
)

var promptAvailable = prompt.Available

// Enabled assembles the adapter set for a configuration.
//
// The file channel is unconditional: it is the universal fallback with no
// external dependency. The blocking prompt is suppressed whenever any
// remote platform is enabled, so the user is not prompted twice for the
// same request.
func Enabled(cfg *config.Config, store *mailbox.FileStore) []Adapter {
	adapters := []Adapter{file.New(store)}

	if cfg.PromptActive() {
		if promptAvailable() {
			adapters = append(adapters, prompt.New())
		} else {
			slog.Debug("prompt channel unavailable, stdin is not a terminal")
		}
	}
	if cfg.Channels.Slack.Enabled {
		adapters = append(adapters, slack.New(&cfg.Channels.Slack))
	}
	if cfg.Channels.Telegram.Enabled {
		adapters = append(adapters, telegram.New(&cfg.Channels.Telegram))
	}
	return adapters
}
