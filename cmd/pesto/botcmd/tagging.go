package botcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mlaihq/pesto/extract"
	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
	"github.com/mlaihq/pesto/suggest"
)

// messageSender is the slice of the Slack API the pipeline needs.
type messageSender interface {
	postMessage(ctx context.Context, channelID, text, threadTS string, blocks []map[string]any) (string, error)
}

// taggingPipeline processes one channel message end to end: record what
// the author talked about, then maybe tag relevant community members.
type taggingPipeline struct {
	client          llm.Client
	model           string
	writer          graph.Writer
	gate            *suggest.Gate
	engine          *suggest.Engine
	channelThrottle *suggest.CooldownTracker
	sender          messageSender
	resolveName     func(ctx context.Context, userID string) string
	log             *slog.Logger
}

type taggingPipelineOptions struct {
	Client          llm.Client
	Model           string
	Writer          graph.Writer
	Gate            *suggest.Gate
	Engine          *suggest.Engine
	ChannelThrottle *suggest.CooldownTracker
	Sender          messageSender
	ResolveName     func(ctx context.Context, userID string) string
	Logger          *slog.Logger
}

func newTaggingPipeline(opts taggingPipelineOptions) (*taggingPipeline, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("graph writer is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.ChannelThrottle == nil {
		return nil, fmt.Errorf("channel throttle is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	resolveName := opts.ResolveName
	if resolveName == nil {
		resolveName = func(_ context.Context, userID string) string { return userID }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &taggingPipeline{
		client:          opts.Client,
		model:           strings.TrimSpace(opts.Model),
		writer:          opts.Writer,
		gate:            opts.Gate,
		engine:          opts.Engine,
		channelThrottle: opts.ChannelThrottle,
		sender:          opts.Sender,
		resolveName:     resolveName,
		log:             log,
	}, nil
}

// HandleChannelMessage records the message's topics in the graph and,
// when the gate and throttles allow, posts a suggestion tagging
// relevant members. Every failure degrades to "no tag"; this path never
// returns an error to the socket loop.
func (p *taggingPipeline) HandleChannelMessage(ctx context.Context, ev slackInboundEvent) {
	traceID := uuid.NewString()
	topics, err := extract.Topics(ctx, p.client, p.model, ev.Text)
	if err != nil {
		p.log.Warn("tagging_extract_error", "trace_id", traceID, "channel_id", ev.ChannelID, "error", err.Error())
		return
	}
	if len(topics) == 0 {
		return
	}
	p.log.Debug("tagging_topics_extracted", "trace_id", traceID, "channel_id", ev.ChannelID, "topics", topics)

	displayName := p.resolveName(ctx, ev.UserID)
	if err := p.writer.UpsertMentions(ctx, ev.UserID, displayName, topics, fmt.Sprintf("%d", ev.SentAt.Unix())); err != nil {
		p.log.Warn("tagging_graph_write_error", "user_id", ev.UserID, "error", err.Error())
	}

	if p.channelThrottle.IsInCooldown(ev.ChannelID) {
		p.log.Debug("tagging_channel_throttled",
			"trace_id", traceID,
			"channel_id", ev.ChannelID,
			"remaining", p.channelThrottle.Remaining(ev.ChannelID).String(),
		)
		return
	}
	if !p.gate.Admit(ctx, ev.ChannelID, topics) {
		p.log.Debug("tagging_gate_rejected", "trace_id", traceID, "channel_id", ev.ChannelID, "topics", topics)
		return
	}

	set := p.engine.Suggest(ctx, topics, ev.UserID)
	if set == nil {
		return
	}

	text := suggest.FormatSuggestions(ctx, p.client, p.model, set, ev.Text)
	if text == "" {
		return
	}
	if _, err := p.sender.postMessage(ctx, ev.ChannelID, text, ev.ThreadTS, nil); err != nil {
		p.log.Warn("tagging_delivery_error", "trace_id", traceID, "channel_id", ev.ChannelID, "error", err.Error())
		return
	}

	// Only users actually named in the delivered text burn their
	// cooldown; the formatter may tag fewer than the engine selected.
	tagged := collectSlackMentionUsers(text)
	for _, userID := range tagged {
		p.engine.Cooldowns().MarkTagged(userID)
	}
	p.channelThrottle.MarkTagged(ev.ChannelID)
	p.log.Info("tagging_delivered",
		"trace_id", traceID,
		"channel_id", ev.ChannelID,
		"topics", set.Topics,
		"tagged", tagged,
	)
}
