package botcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlaihq/pesto/airtable"
	"github.com/mlaihq/pesto/survey"
)

// notifySpacing throttles invitation DMs so a bulk fan-out does not
// trip Slack rate limits.
const notifySpacing = 2 * time.Second

type recordLister interface {
	ListRecords(ctx context.Context, table string) ([]airtable.Record, error)
}

type notifier struct {
	records recordLister
	api     *slackAPI
	flow    *survey.Flow
	script  survey.Script
	log     *slog.Logger
}

// notifyUsersInTable DMs every row in the table a survey invitation
// with the start button. Test mode stops after the first row. Per-user
// failures are logged and skipped; the success count comes back either
// way.
func (n *notifier) notifyUsersInTable(ctx context.Context, table, idColumn, nameColumn string, testMode bool) (int, error) {
	records, err := n.records.ListRecords(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("list table %s: %w", table, err)
	}
	rows := airtable.UserRows(records, idColumn, nameColumn)
	if len(rows) == 0 {
		n.log.Warn("notify_no_users", "table", table, "id_column", idColumn)
		return 0, nil
	}
	if testMode {
		rows = rows[:1]
	}
	n.log.Info("notify_start", "table", table, "users", len(rows), "test_mode", testMode)

	sent := 0
	for i, row := range rows {
		if err := n.inviteUser(ctx, row.SlackID, row.Name); err != nil {
			n.log.Warn("notify_user_error", "user_id", row.SlackID, "error", err.Error())
		} else {
			sent++
		}
		if i < len(rows)-1 {
			if err := sleepWithContext(ctx, notifySpacing); err != nil {
				return sent, err
			}
		}
	}
	n.log.Info("notify_done", "table", table, "sent", sent, "total", len(rows))
	return sent, nil
}

func (n *notifier) inviteUser(ctx context.Context, userID, userName string) error {
	channelID, err := n.api.openConversation(ctx, userID)
	if err != nil {
		return err
	}
	welcome := fmt.Sprintf(n.script.Welcome, userName)
	ts, err := n.api.postMessage(ctx, channelID, welcome, "", inviteBlocks(welcome, n.script.ButtonLabel))
	if err != nil {
		return err
	}
	n.flow.Prime(userID, userName, ts)
	return nil
}

func inviteBlocks(welcome, buttonLabel string) []map[string]any {
	return []map[string]any{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": welcome},
		},
		{
			"type": "actions",
			"elements": []map[string]any{
				{
					"type":      "button",
					"text":      map[string]any{"type": "plain_text", "text": buttonLabel},
					"style":     "primary",
					"action_id": startSurveyActionID,
				},
			},
		},
	}
}

// surveyStartedBlocks replaces the invitation once the button is
// clicked.
func surveyStartedBlocks(firstQuestion string) []map[string]any {
	return []map[string]any{
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "🚀 Survey Started!\n\n" + strings.TrimSpace(firstQuestion),
			},
		},
	}
}

func surveyAlreadyDoneBlocks() []map[string]any {
	return []map[string]any{
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "✅ Thank you! Your survey responses have already been recorded.\n\nNo further input is needed.",
			},
		},
	}
}
