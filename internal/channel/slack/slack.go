// Package slack implements the Slack notification channel. Notify posts a
// Block Kit message with approve/reject buttons and returns immediately;
// the button click comes back through the webhook receiver and the mailbox.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/config"
	"github.com/slack-go/slack"
)

const (
	// Action IDs the webhook receiver matches on.
	ApproveActionID = "approve_action"
	RejectActionID  = "reject_action"
)

// ButtonValue is the payload carried by each interactive button.
type ButtonValue struct {
	Action     string `json:"action"`
	ApprovalID string `json:"approval_id"`
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Adapter posts approval requests to a Slack channel or DM.
type Adapter struct {
	cfg *config.SlackConfig
	api poster
}

// New creates a Slack channel adapter.
func New(cfg *config.SlackConfig) *Adapter {
	return &Adapter{
		cfg: cfg,
		api: slack.New(cfg.BotToken),
	}
}

func (a *Adapter) Name() string { return "slack" }

// Notify posts the interactive approval message and returns.
func (a *Adapter) Notify(ctx context.Context, req approval.Request) (*approval.Decision, error) {
	blocks, err := approvalBlocks(req)
	if err != nil {
		return nil, err
	}

	_, ts, err := a.api.PostMessageContext(ctx, a.cfg.Channel,
		slack.MsgOptionText(fmt.Sprintf("Approval required for %s", req.ToolName), false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return nil, fmt.Errorf("post slack approval message: %w", err)
	}

	slog.Debug("slack approval message sent",
		"approval_id", req.ID,
		"channel", a.cfg.Channel,
		"ts", ts)
	return nil, nil
}

func approvalBlocks(req approval.Request) ([]slack.Block, error) {
	approveValue, err := json.Marshal(ButtonValue{Action: "approve", ApprovalID: req.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal approve button value: %w", err)
	}
	rejectValue, err := json.Marshal(ButtonValue{Action: "reject", ApprovalID: req.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal reject button value: %w", err)
	}

	argsText := "{}"
	if len(req.Args) > 0 {
		if encoded, err := json.MarshalIndent(req.Args, "", "  "); err == nil {
			argsText = string(encoded)
		}
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Approval Required", false, false)),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Tool:*\n`%s`", req.ToolName), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Approval ID:*\n`%s`", req.ID), false, false),
		}, nil),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Description:*\n%s", req.Preview), false, false),
			nil, nil),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Arguments:*\n```%s```", argsText), false, false),
			nil, nil),
		slack.NewActionBlock("approval_actions",
			slack.NewButtonBlockElement(ApproveActionID, string(approveValue),
				slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false)).
				WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(RejectActionID, string(rejectValue),
				slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false)).
				WithStyle(slack.StyleDanger),
		),
	}
	return blocks, nil
}
