// Package notify posts best-effort notifications about noteworthy bug
// events to Slack. A notifier without a token is a no-op, so callers never
// need to branch on whether Slack is configured.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/bugbase/bugbase/internal/database"
)

// SlackNotifier posts to a single channel via the Slack Web API
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier for the given channel. An empty token
// or channel yields a disabled notifier that silently drops everything.
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	n := &SlackNotifier{channel: channel}
	if botToken != "" && channel != "" {
		n.client = slack.New(botToken)
	}
	return n
}

// Enabled reports whether notifications actually go anywhere
func (n *SlackNotifier) Enabled() bool {
	return n != nil && n.client != nil
}

func (n *SlackNotifier) post(message string) {
	if !n.Enabled() {
		return
	}
	_, _, err := n.client.PostMessage(
		n.channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		log.Printf("Failed to post Slack notification: %v", err)
	}
}

// BugCreated announces newly filed bugs that were classified as critical.
// Lower-severity bugs stay quiet to keep the channel readable.
func (n *SlackNotifier) BugCreated(bug *database.Bug) {
	if !n.Enabled() || bug == nil {
		return
	}
	severity := bug.SuggestedSeverity
	if bug.Severity != nil {
		severity = bug.Severity
	}
	if severity == nil || (*severity != database.SeverityS0 && *severity != database.SeverityS1) {
		return
	}

	area := "unclassified"
	if bug.Area != nil {
		area = string(*bug.Area)
	} else if bug.SuggestedArea != nil {
		area = string(*bug.SuggestedArea)
	}

	n.post(fmt.Sprintf(`:rotating_light: *New %s bug filed*
:memo: *Title:* %s
:gear: *Area:* %s
:id: %s`,
		string(*severity),
		bug.Title,
		area,
		bug.ID,
	))
}

// MergeCompleted announces a finished duplicate merge
func (n *SlackNotifier) MergeCompleted(primaryBugID, mergedTitle string, duplicatesRemoved int, commentsTransferred int64) {
	if !n.Enabled() {
		return
	}
	n.post(fmt.Sprintf(`:link: *Duplicate bugs merged*
:memo: *Title:* %s
:wastebasket: *Duplicates removed:* %d
:speech_balloon: *Comments transferred:* %d
:id: %s`,
		mergedTitle,
		duplicatesRemoved,
		commentsTransferred,
		primaryBugID,
	))
}
