package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlaihq/pesto/llm"
)

// MaxGateTopics hard-rejects overly broad discussions regardless of
// what the classifier would say.
const MaxGateTopics = 8

// fallbackMaxTopics is the stricter cap applied by the local heuristic
// when the classifier is unreachable.
const fallbackMaxTopics = 3

// fallbackKeywords admit a topic set without the classifier. The local
// path is deliberately more conservative than the classifier.
var fallbackKeywords = []string{
	"ai", "ml", "machine learning", "artificial intelligence",
	"data", "software", "programming", "robotics", "research",
}

// Gate decides whether a topic set in a channel should trigger a
// suggestion at all.
type Gate struct {
	client llm.Client
	model  string
	log    *slog.Logger
}

type GateOptions struct {
	Client llm.Client
	Model  string
	Logger *slog.Logger
}

func NewGate(opts GateOptions) (*Gate, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		client: opts.Client,
		model:  strings.TrimSpace(opts.Model),
		log:    log,
	}, nil
}

// Admit reports whether the topic set warrants tagging anyone. The
// empty and too-many guards apply before any classifier call; classifier
// failure falls back to the keyword heuristic.
func (g *Gate) Admit(ctx context.Context, channelID string, topics []string) bool {
	if len(topics) == 0 {
		return false
	}
	if len(topics) > MaxGateTopics {
		g.log.Debug("gate_reject_too_many_topics", "channel_id", channelID, "topics", len(topics))
		return false
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Model:           g.model,
		ReasoningEffort: "low",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: admissionPrompt(channelID, topics)},
		},
	})
	if err != nil {
		g.log.Warn("gate_classifier_error", "channel_id", channelID, "error", err.Error())
		return g.fallback(channelID, topics)
	}
	decision := strings.ToUpper(strings.TrimSpace(resp.Text))
	if decision == "" {
		g.log.Warn("gate_classifier_empty", "channel_id", channelID, "truncated", resp.Truncated)
		return g.fallback(channelID, topics)
	}
	admit := decision == "YES"
	g.log.Debug("gate_decision", "channel_id", channelID, "decision", decision, "admit", admit)
	return admit
}

// fallback admits only small, clearly technical topic sets.
func (g *Gate) fallback(channelID string, topics []string) bool {
	if len(topics) > fallbackMaxTopics {
		g.log.Debug("gate_fallback_reject", "channel_id", channelID, "reason", "too_many_topics")
		return false
	}
	hasTech := false
	for _, topic := range topics {
		topicLower := strings.ToLower(topic)
		for _, keyword := range fallbackKeywords {
			if strings.Contains(topicLower, keyword) {
				hasTech = true
				break
			}
		}
		if hasTech {
			break
		}
	}
	g.log.Debug("gate_fallback_decision", "channel_id", channelID, "has_tech", hasTech, "topics", len(topics))
	return hasTech
}
