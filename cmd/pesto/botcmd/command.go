// Package botcmd runs the Slack community bot: Socket Mode event loop,
// DM survey conversations, and the channel tagging pipeline.
package botcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mlaihq/pesto/airtable"
	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/internal/configutil"
	"github.com/mlaihq/pesto/internal/healthcheck"
	openaiprovider "github.com/mlaihq/pesto/providers/openai"
	"github.com/mlaihq/pesto/suggest"
	"github.com/mlaihq/pesto/survey"
)

const startSurveyActionID = "start_survey_button"

const triggerSurveyCommand = "/trigger-survey"

const sweepInterval = 10 * time.Minute

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the community bot with Slack Socket Mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()

			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or PESTO_SLACK_BOT_TOKEN)")
			}
			appToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-app-token", "slack.app_token"))
			if appToken == "" {
				return fmt.Errorf("missing slack.app_token (set via --slack-app-token or PESTO_SLACK_APP_TOKEN)")
			}
			adminIDs := toAllowlist(configutil.FlagOrViperStringArray(cmd, "admin-user-id", "slack.admin_user_ids"))

			openaiKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "openai-api-key", "openai.api_key"))
			if openaiKey == "" {
				return fmt.Errorf("missing openai.api_key (set via --openai-api-key or PESTO_OPENAI_API_KEY)")
			}
			model := strings.TrimSpace(configutil.FlagOrViperString(cmd, "openai-model", "openai.model"))
			if model == "" {
				model = "o3-mini"
			}
			client, err := openaiprovider.NewClient(openaiprovider.Options{
				APIKey: openaiKey,
				Model:  model,
			})
			if err != nil {
				return fmt.Errorf("openai client: %w", err)
			}

			neo4jURI := strings.TrimSpace(configutil.FlagOrViperString(cmd, "neo4j-uri", "neo4j.uri"))
			if neo4jURI == "" {
				return fmt.Errorf("missing neo4j.uri (set via --neo4j-uri or PESTO_NEO4J_URI)")
			}
			store, err := graph.NewNeo4jStore(cmd.Context(), graph.Neo4jOptions{
				URI:      neo4jURI,
				Username: configutil.FlagOrViperString(cmd, "neo4j-username", "neo4j.username"),
				Password: configutil.FlagOrViperString(cmd, "neo4j-password", "neo4j.password"),
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("neo4j: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = store.Close(closeCtx)
				cancel()
			}()
			if err := store.EnsureConstraints(cmd.Context()); err != nil {
				return fmt.Errorf("neo4j constraints: %w", err)
			}

			airtableKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-api-key", "airtable.api_key"))
			airtableBase := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-base-id", "airtable.base_id"))
			surveyTable := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-table", "airtable.table"))
			idColumn := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-id-column", "airtable.id_column"))
			if idColumn == "" {
				idColumn = "SlackID"
			}
			nameColumn := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-name-column", "airtable.name_column"))
			if airtableKey == "" || airtableBase == "" || surveyTable == "" {
				return fmt.Errorf("missing airtable.api_key, airtable.base_id or airtable.table")
			}
			records, err := airtable.NewClient(airtable.Options{APIKey: airtableKey, BaseID: airtableBase})
			if err != nil {
				return fmt.Errorf("airtable client: %w", err)
			}
			transcripts, err := survey.NewTranscripts(survey.TranscriptsOptions{
				Store:    records,
				Table:    surveyTable,
				IDColumn: idColumn,
			})
			if err != nil {
				return fmt.Errorf("transcripts: %w", err)
			}

			script, err := survey.LoadScript(configutil.FlagOrViperString(cmd, "survey-script", "survey.script"))
			if err != nil {
				return fmt.Errorf("survey script: %w", err)
			}
			flow, err := survey.NewFlow(survey.FlowOptions{
				Client:  client,
				Model:   model,
				Store:   survey.NewSessionStore(),
				Saver:   transcripts,
				Script:  script,
				Timeout: configutil.FlagOrViperDuration(cmd, "survey-timeout", "survey.timeout"),
				Logger:  logger,
			})
			if err != nil {
				return fmt.Errorf("survey flow: %w", err)
			}

			userCooldown := configutil.FlagOrViperDuration(cmd, "user-cooldown", "tagging.user_cooldown")
			channelCooldown := configutil.FlagOrViperDuration(cmd, "channel-cooldown", "tagging.channel_cooldown")
			if channelCooldown <= 0 {
				channelCooldown = suggest.DefaultChannelCooldown
			}
			userCooldowns := suggest.NewCooldownTracker(userCooldown)
			channelThrottle := suggest.NewCooldownTracker(channelCooldown)

			expander, err := suggest.NewExpander(suggest.ExpanderOptions{Client: client, Model: model, Logger: logger})
			if err != nil {
				return err
			}
			ranker, err := suggest.NewRanker(suggest.RankerOptions{Reader: store, Logger: logger})
			if err != nil {
				return err
			}
			gate, err := suggest.NewGate(suggest.GateOptions{Client: client, Model: model, Logger: logger})
			if err != nil {
				return err
			}
			engine, err := suggest.NewEngine(suggest.EngineOptions{
				Expander:       expander,
				Ranker:         ranker,
				Cooldowns:      userCooldowns,
				MaxSuggestions: configutil.FlagOrViperInt(cmd, "max-suggestions", "tagging.max_suggestions"),
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: 30 * time.Second}
			api := newSlackAPI(httpClient, "https://slack.com/api", botToken, appToken)
			auth, err := api.authTest(cmd.Context())
			if err != nil {
				return fmt.Errorf("slack auth.test: %w", err)
			}
			botUserID := auth.UserID
			if botUserID == "" {
				return fmt.Errorf("slack auth.test returned empty user_id")
			}

			pipeline, err := newTaggingPipeline(taggingPipelineOptions{
				Client:          client,
				Model:           model,
				Writer:          store,
				Gate:            gate,
				Engine:          engine,
				ChannelThrottle: channelThrottle,
				Sender:          api,
				ResolveName:     api.userDisplayName,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			notify := &notifier{records: records, api: api, flow: flow, script: script, log: logger}

			healthListen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen"))
			if healthListen != "" {
				healthServer, err := healthcheck.StartServer(cmd.Context(), logger, healthListen, "bot")
				if err != nil {
					logger.Warn("bot_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = healthServer.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			go runCooldownSweeper(cmd.Context(), logger, userCooldowns, channelThrottle)

			logger.Info("bot_start",
				"bot_user_id", botUserID,
				"team", auth.Team,
				"model", model,
				"admin_user_ids", len(adminIDs),
				"user_cooldown", userCooldowns.Window().String(),
				"channel_cooldown", channelThrottle.Window().String(),
			)

			handler := &eventHandler{
				api:        api,
				flow:       flow,
				pipeline:   pipeline,
				notify:     notify,
				adminIDs:   adminIDs,
				botUserID:  botUserID,
				idColumn:   idColumn,
				nameColumn: nameColumn,
				log:        logger,
			}

			for {
				if cmd.Context().Err() != nil {
					logger.Info("bot_stop", "reason", "context_canceled")
					return nil
				}
				conn, err := api.connectSocket(cmd.Context())
				if err != nil {
					if cmd.Context().Err() != nil {
						logger.Info("bot_stop", "reason", "context_canceled")
						return nil
					}
					logger.Warn("bot_socket_connect_error", "error", err.Error())
					if err := sleepWithContext(cmd.Context(), 2*time.Second); err != nil {
						return nil
					}
					continue
				}
				logger.Info("bot_socket_connected")
				readErr := consumeSocket(cmd.Context(), conn, handler.handleEnvelope)
				_ = conn.Close()
				if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
					logger.Warn("bot_socket_read_error", "error", readErr.Error())
				}
			}
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token for Socket Mode (xapp-...).")
	cmd.Flags().StringArray("admin-user-id", nil, "Slack user id(s) allowed to run /trigger-survey.")
	cmd.Flags().String("openai-api-key", "", "OpenAI API key.")
	cmd.Flags().String("openai-model", "", "OpenAI model for all classifier calls.")
	cmd.Flags().String("neo4j-uri", "", "Neo4j connection URI (neo4j://... or bolt://...).")
	cmd.Flags().String("neo4j-username", "", "Neo4j username.")
	cmd.Flags().String("neo4j-password", "", "Neo4j password.")
	cmd.Flags().String("airtable-api-key", "", "Airtable API key.")
	cmd.Flags().String("airtable-base-id", "", "Airtable base id.")
	cmd.Flags().String("airtable-table", "", "Airtable table holding survey participants.")
	cmd.Flags().String("airtable-id-column", "SlackID", "Column carrying each participant's Slack user id.")
	cmd.Flags().String("airtable-name-column", "Name", "Column carrying each participant's display name.")
	cmd.Flags().String("survey-script", "", "Path to a YAML survey script (welcome text, button label, system prompt).")
	cmd.Flags().Duration("survey-timeout", 0, "Idle time before a started survey is closed (default 10m).")
	cmd.Flags().Int("max-suggestions", 0, "Max users tagged per suggestion (default 3).")
	cmd.Flags().Duration("user-cooldown", 0, "Per-user tag cooldown (default 1h).")
	cmd.Flags().Duration("channel-cooldown", 0, "Minimum gap between tags in one channel (default 5m).")
	cmd.Flags().String("health-listen", "", "Optional health endpoint listen address (e.g. :8080).")

	return cmd
}

type eventHandler struct {
	api        *slackAPI
	flow       *survey.Flow
	pipeline   *taggingPipeline
	notify     *notifier
	adminIDs   map[string]bool
	botUserID  string
	idColumn   string
	nameColumn string
	log        *slog.Logger
}

func (h *eventHandler) handleEnvelope(ctx context.Context, envelope slackSocketEnvelope) error {
	if action, ok, err := parseSlackBlockAction(envelope); err != nil {
		h.log.Warn("bot_block_action_parse_error", "error", err.Error())
		return nil
	} else if ok {
		h.handleBlockAction(ctx, action)
		return nil
	}

	if slash, ok, err := parseSlackSlashCommand(envelope); err != nil {
		h.log.Warn("bot_slash_parse_error", "error", err.Error())
		return nil
	} else if ok {
		h.handleSlashCommand(ctx, slash)
		return nil
	}

	ev, ok, err := parseSlackInboundEvent(envelope, h.botUserID)
	if err != nil {
		h.log.Warn("bot_event_parse_error", "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	switch {
	case ev.IsAppMention:
		go h.handleAppMention(ctx, ev)
	case ev.ChatType == "im":
		go h.handleDirectMessage(ctx, ev)
	default:
		go h.pipeline.HandleChannelMessage(ctx, ev)
	}
	return nil
}

func (h *eventHandler) handleDirectMessage(ctx context.Context, ev slackInboundEvent) {
	reply, err := h.flow.Respond(ctx, ev.UserID, ev.Text)
	if err != nil {
		h.log.Warn("bot_survey_reply_error", "user_id", ev.UserID, "error", err.Error())
		reply = "Sorry, I'm having trouble responding right now. Please try again!"
	}
	threadTS := ev.ThreadTS
	if threadTS == "" {
		if session, ok := h.flow.Store().Get(ev.UserID); ok {
			threadTS = session.ThreadTS
		}
	}
	if _, err := h.api.postMessage(ctx, ev.ChannelID, reply, threadTS, nil); err != nil {
		h.log.Warn("bot_dm_send_error", "user_id", ev.UserID, "error", err.Error())
	}
}

func (h *eventHandler) handleBlockAction(ctx context.Context, action slackBlockActionEvent) {
	if action.ActionID != startSurveyActionID {
		return
	}
	session, _ := h.flow.Store().Get(action.UserID)
	if session.Step == survey.StepCompleted {
		if err := h.api.updateMessage(ctx, action.ChannelID, action.MessageTS, "Survey already completed!", surveyAlreadyDoneBlocks()); err != nil {
			h.log.Warn("bot_button_update_error", "user_id", action.UserID, "error", err.Error())
		}
		return
	}
	firstQuestion := h.flow.Start(ctx, action.UserID)
	if err := h.api.updateMessage(ctx, action.ChannelID, action.MessageTS, "Survey Started!", surveyStartedBlocks(firstQuestion)); err != nil {
		h.log.Warn("bot_button_update_error", "user_id", action.UserID, "error", err.Error())
	}
}

func (h *eventHandler) handleSlashCommand(ctx context.Context, slash slackSlashCommandEvent) {
	if slash.Command != triggerSurveyCommand {
		return
	}
	if !h.adminIDs[slash.UserID] {
		h.ephemeral(ctx, slash, "🚫 Sorry, only MLAI admins can trigger the survey bot.")
		return
	}
	args := strings.Fields(slash.Text)
	if len(args) == 0 {
		h.ephemeral(ctx, slash, "📋 *Survey Bot - Usage*\n\n"+
			"`/trigger-survey <table_id> [test|all] [column_name]`\n\n"+
			"*Examples:*\n"+
			"• `/trigger-survey tbl123ABC456DEF test` - Send to first user only\n"+
			"• `/trigger-survey tbl123ABC456DEF all` - Send to all users")
		return
	}
	if len(args) < 2 {
		h.ephemeral(ctx, slash, "❌ *Invalid arguments*\n\nUsage: `/trigger-survey <table_id> [test|all] [column_name]`")
		return
	}
	table := args[0]
	mode := strings.ToLower(args[1])
	if mode != "test" && mode != "all" {
		h.ephemeral(ctx, slash, "❌ *Invalid mode*\n\nMode must be either `test` or `all`")
		return
	}
	idColumn := h.idColumn
	if len(args) > 2 {
		idColumn = args[2]
	}
	testMode := mode == "test"

	h.ephemeral(ctx, slash, fmt.Sprintf("🚀 *Triggering Survey Bot*\n\n• Table: `%s`\n• Mode: `%s`\n• Column: `%s`\n\n_Processing in background..._",
		table, mode, idColumn))

	go func() {
		sent, err := h.notify.notifyUsersInTable(ctx, table, idColumn, h.nameColumn, testMode)
		if err != nil {
			h.ephemeral(ctx, slash, fmt.Sprintf("❌ *Survey Bot Failed*\n\n%s", err.Error()))
			return
		}
		h.ephemeral(ctx, slash, fmt.Sprintf("✅ *Survey Bot Completed*\n\nSuccessfully sent messages to %d user(s) from table `%s`", sent, table))
	}()
}

func (h *eventHandler) handleAppMention(ctx context.Context, ev slackInboundEvent) {
	text := fmt.Sprintf("Hi <@%s>! 👋 I'm Pesto, the MLAI community bot. I run surveys through private DMs, keep an eye out for an invitation!", ev.UserID)
	if _, err := h.api.postMessage(ctx, ev.ChannelID, text, ev.ThreadTS, nil); err != nil {
		h.log.Warn("bot_mention_reply_error", "channel_id", ev.ChannelID, "error", err.Error())
	}
}

func (h *eventHandler) ephemeral(ctx context.Context, slash slackSlashCommandEvent, text string) {
	if slash.ChannelID == "" {
		return
	}
	if err := h.api.postEphemeral(ctx, slash.ChannelID, slash.UserID, text); err != nil {
		h.log.Warn("bot_ephemeral_error", "user_id", slash.UserID, "error", err.Error())
	}
}

func consumeSocket(ctx context.Context, conn *websocket.Conn, onEnvelope func(ctx context.Context, envelope slackSocketEnvelope) error) error {
	if conn == nil {
		return fmt.Errorf("slack websocket connection is nil")
	}
	for {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope slackSocketEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if strings.TrimSpace(envelope.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}
		if onEnvelope == nil {
			continue
		}
		if err := onEnvelope(ctx, envelope); err != nil {
			return err
		}
	}
}

func runCooldownSweeper(ctx context.Context, logger *slog.Logger, trackers ...*suggest.CooldownTracker) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			for _, tracker := range trackers {
				removed += tracker.Sweep()
			}
			if removed > 0 {
				logger.Debug("cooldown_sweep", "removed", removed)
			}
		}
	}
}

func toAllowlist(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out[id] = true
		}
	}
	return out
}
