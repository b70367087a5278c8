package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MEKXH/citegate/internal/approval"
	slackchannel "github.com/MEKXH/citegate/internal/channel/slack"
	"github.com/MEKXH/citegate/internal/mailbox"
)

// slackInteraction is the subset of Slack's block_actions payload we need.
type slackInteraction struct {
	Type string `json:"type"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

func (s *Server) handleSlack(w http.ResponseWriter, r *http.Request) {
	cfg := &s.cfg.Channels.Slack

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Webhook.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logEvent("slack", outcomeRejected, "oversized body", "")
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if !cfg.TrustTunnel {
		timestamp := r.Header.Get("X-Slack-Request-Timestamp")
		signature := r.Header.Get("X-Slack-Signature")
		if !VerifySlackSignature(cfg.SigningSecret, body, timestamp, signature, s.cfg.ReplayWindow(), s.now()) {
			logEvent("slack", outcomeRejected, "invalid signature", "")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	if !s.limiter.Allow(r.RemoteAddr) {
		logEvent("slack", outcomeRejected, "rate limited", "")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Slack delivers the interaction JSON form-encoded in `payload`.
	form, err := parseForm(body)
	if err != nil {
		logEvent("slack", outcomeRejected, "malformed form", "")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var interaction slackInteraction
	if err := json.Unmarshal([]byte(form.Get("payload")), &interaction); err != nil {
		logEvent("slack", outcomeRejected, "malformed payload", "")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if interaction.Type != "block_actions" {
		logEvent("slack", outcomeIgnored, "unhandled interaction type", "")
		writeJSON(w, http.StatusOK, map[string]any{"text": "Interaction received"})
		return
	}

	for _, action := range interaction.Actions {
		if action.ActionID != slackchannel.ApproveActionID && action.ActionID != slackchannel.RejectActionID {
			continue
		}
		var value slackchannel.ButtonValue
		if err := json.Unmarshal([]byte(action.Value), &value); err != nil {
			logEvent("slack", outcomeRejected, "malformed button value", "")
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		// Structural validation before the ID touches the store.
		if !approval.ValidID(value.ApprovalID) {
			logEvent("slack", outcomeRejected, "invalid approval id", "")
			writeError(w, http.StatusBadRequest, "invalid approval id")
			return
		}

		approved := action.ActionID == slackchannel.ApproveActionID
		actor := interaction.User.Username
		if actor == "" {
			actor = interaction.User.ID
		}

		err := s.store.Put(value.ApprovalID, mailbox.Entry{
			Approved: approved,
			Channel:  "slack",
			Actor:    actor,
		})
		switch {
		case err == nil:
			logEvent("slack", outcomeAccepted, "", value.ApprovalID)
		case errors.Is(err, approval.ErrAlreadyResolved):
			// Another channel already won; still acknowledge so the
			// user sees a confirmation.
			logEvent("slack", outcomeIgnored, "already resolved", value.ApprovalID)
		default:
			logEvent("slack", outcomeRejected, "mailbox write failed", value.ApprovalID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Replace the interactive message so the buttons disappear.
		writeJSON(w, http.StatusOK, map[string]any{
			"replace_original": true,
			"text":             decisionText(approved, actor),
		})
		return
	}

	logEvent("slack", outcomeIgnored, "no approval action", "")
	writeJSON(w, http.StatusOK, map[string]any{"text": "No actions found"})
}

func parseForm(body []byte) (url.Values, error) {
	return url.ParseQuery(string(body))
}

func decisionText(approved bool, actor string) string {
	verdict := "Rejected"
	if approved {
		verdict = "Approved"
	}
	if actor == "" {
		return verdict
	}
	return fmt.Sprintf("%s by @%s", verdict, actor)
}
