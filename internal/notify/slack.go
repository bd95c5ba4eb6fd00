// Package notify posts operational summaries to Slack.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/foliolab/folio/internal/gitsync"
)

// PostAPI is the slice of the Slack client the notifier needs.
type PostAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts sync summaries to a fixed channel. A nil *Notifier is a
// valid no-op, so callers never have to branch on whether Slack is wired.
type Notifier struct {
	api     PostAPI
	channel string
	logger  zerolog.Logger
}

// New creates a notifier around an existing Slack client (or a test double).
func New(api PostAPI, channel string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// FromToken builds a notifier with a real Slack client.
func FromToken(token, channel string, logger zerolog.Logger) *Notifier {
	return New(slack.New(token), channel, logger)
}

// SyncSummary posts the outcome of a scheduled sync run. Failures are logged
// and swallowed; notification is best effort and never blocks the caller.
func (n *Notifier) SyncSummary(results []gitsync.Result) {
	if n == nil {
		return
	}

	succeeded := 0
	var failed []string
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed = append(failed, fmt.Sprintf("• %s: %s", r.ProjectID, r.Error))
		}
	}

	text := fmt.Sprintf("Repository sync finished: %d synced, %d failed.", succeeded, len(failed))
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Repository sync*\n"+text, false, false),
			nil, nil,
		),
	}
	if len(failed) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, joinLines(failed), false, false),
			nil, nil,
		))
	}

	_, _, err := n.api.PostMessage(n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		n.logger.Warn().Err(err).Msg("posting sync summary failed")
		return
	}
	n.logger.Debug().Int("succeeded", succeeded).Int("failed", len(failed)).Msg("sync summary posted")
}

// SyncAborted posts a notice that a scheduled run was pre-empted.
func (n *Notifier) SyncAborted(reason error) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("Scheduled repository sync aborted: %v", reason)
	if _, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(text, false)); err != nil {
		n.logger.Warn().Err(err).Msg("posting abort notice failed")
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
