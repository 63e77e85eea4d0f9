package botcmd

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slackMentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]+)?>`)

type slackSocketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type slackEventAuthorization struct {
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

type slackEventsAPIPayload struct {
	TeamID         string                    `json:"team_id,omitempty"`
	EventID        string                    `json:"event_id,omitempty"`
	EventTime      int64                     `json:"event_time,omitempty"`
	Event          json.RawMessage           `json:"event,omitempty"`
	Authorizations []slackEventAuthorization `json:"authorizations,omitempty"`
}

type slackEvent struct {
	Type        string `json:"type,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user,omitempty"`
	Text        string `json:"text,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Team        string `json:"team,omitempty"`
}

// slackInboundEvent is a message or app_mention after filtering out
// bot echoes, subtypes, and empty fields.
type slackInboundEvent struct {
	TeamID       string
	ChannelID    string
	ChatType     string
	MessageTS    string
	ThreadTS     string
	UserID       string
	Text         string
	EventID      string
	SentAt       time.Time
	IsAppMention bool
}

func parseSlackInboundEvent(envelope slackSocketEnvelope, botUserID string) (slackInboundEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return slackInboundEvent{}, false, nil
	}
	var payload slackEventsAPIPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return slackInboundEvent{}, false, err
	}
	var event slackEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return slackInboundEvent{}, false, err
	}
	eventType := strings.TrimSpace(event.Type)
	if eventType != "message" && eventType != "app_mention" {
		return slackInboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.Subtype) != "" {
		return slackInboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.BotID) != "" {
		return slackInboundEvent{}, false, nil
	}
	userID := strings.TrimSpace(event.User)
	if userID == "" || userID == strings.TrimSpace(botUserID) {
		return slackInboundEvent{}, false, nil
	}
	channelID := strings.TrimSpace(event.Channel)
	messageTS := strings.TrimSpace(event.TS)
	text := strings.TrimSpace(event.Text)
	if channelID == "" || messageTS == "" || text == "" {
		return slackInboundEvent{}, false, nil
	}
	teamID := strings.TrimSpace(payload.TeamID)
	if teamID == "" {
		teamID = strings.TrimSpace(event.Team)
	}
	if teamID == "" && len(payload.Authorizations) > 0 {
		teamID = strings.TrimSpace(payload.Authorizations[0].TeamID)
	}
	if teamID == "" {
		return slackInboundEvent{}, false, fmt.Errorf("missing team_id in slack event")
	}

	sentAt := time.Now().UTC()
	if payload.EventTime > 0 {
		sentAt = time.Unix(payload.EventTime, 0).UTC()
	}

	return slackInboundEvent{
		TeamID:       teamID,
		ChannelID:    channelID,
		ChatType:     normalizeSlackChatType(event.ChannelType, channelID),
		MessageTS:    messageTS,
		ThreadTS:     strings.TrimSpace(event.ThreadTS),
		UserID:       userID,
		Text:         text,
		EventID:      strings.TrimSpace(payload.EventID),
		SentAt:       sentAt,
		IsAppMention: eventType == "app_mention",
	}, true, nil
}

func normalizeSlackChatType(channelType, channelID string) string {
	channelType = strings.TrimSpace(strings.ToLower(channelType))
	switch channelType {
	case "im":
		return "im"
	case "mpim", "group", "channel":
		return channelType
	}
	if strings.HasPrefix(channelID, "D") {
		return "im"
	}
	return "channel"
}

// slackBlockActionEvent is a button click from an interactive payload.
type slackBlockActionEvent struct {
	ActionID  string
	UserID    string
	ChannelID string
	MessageTS string
}

type slackInteractivePayload struct {
	Type string `json:"type,omitempty"`
	User struct {
		ID string `json:"id,omitempty"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id,omitempty"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts,omitempty"`
	} `json:"message"`
	Actions []struct {
		ActionID string `json:"action_id,omitempty"`
	} `json:"actions"`
}

func parseSlackBlockAction(envelope slackSocketEnvelope) (slackBlockActionEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "interactive" || len(envelope.Payload) == 0 {
		return slackBlockActionEvent{}, false, nil
	}
	var payload slackInteractivePayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return slackBlockActionEvent{}, false, err
	}
	if strings.TrimSpace(payload.Type) != "block_actions" || len(payload.Actions) == 0 {
		return slackBlockActionEvent{}, false, nil
	}
	actionID := strings.TrimSpace(payload.Actions[0].ActionID)
	userID := strings.TrimSpace(payload.User.ID)
	if actionID == "" || userID == "" {
		return slackBlockActionEvent{}, false, nil
	}
	return slackBlockActionEvent{
		ActionID:  actionID,
		UserID:    userID,
		ChannelID: strings.TrimSpace(payload.Channel.ID),
		MessageTS: strings.TrimSpace(payload.Message.TS),
	}, true, nil
}

// slackSlashCommandEvent is one slash command invocation.
type slackSlashCommandEvent struct {
	Command   string
	Text      string
	UserID    string
	ChannelID string
}

type slackSlashCommandPayload struct {
	Command   string `json:"command,omitempty"`
	Text      string `json:"text,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

func parseSlackSlashCommand(envelope slackSocketEnvelope) (slackSlashCommandEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "slash_commands" || len(envelope.Payload) == 0 {
		return slackSlashCommandEvent{}, false, nil
	}
	var payload slackSlashCommandPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return slackSlashCommandEvent{}, false, err
	}
	command := strings.TrimSpace(payload.Command)
	userID := strings.TrimSpace(payload.UserID)
	if command == "" || userID == "" {
		return slackSlashCommandEvent{}, false, nil
	}
	return slackSlashCommandEvent{
		Command:   command,
		Text:      strings.TrimSpace(payload.Text),
		UserID:    userID,
		ChannelID: strings.TrimSpace(payload.ChannelID),
	}, true, nil
}

// collectSlackMentionUsers extracts the user IDs actually tagged in a
// rendered message.
func collectSlackMentionUsers(text string) []string {
	matches := slackMentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
