// Package extract turns free text into topic labels and typed
// user-topic interests via an LLM call. Parsing is defensive: a bad
// item is skipped, never fatal to the batch.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
)

const maxTopicsPerMessage = 5

// Topics extracts 1-5 short canonical topic labels from text.
func Topics(ctx context.Context, client llm.Client, model, text string) ([]string, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	resp, err := client.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: topicsSystemPrompt},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("topic extraction: %w", err)
	}
	topics := splitTopicList(resp.Text)
	if len(topics) > maxTopicsPerMessage {
		topics = topics[:maxTopicsPerMessage]
	}
	return topics, nil
}

// MessageInterests extracts Topic|RELATIONSHIP pairs from a channel
// message, classifying how the author relates to each topic.
func MessageInterests(ctx context.Context, client llm.Client, model, text string) ([]graph.Interest, error) {
	return interests(ctx, client, model, messageInterestsPrompt, text)
}

// ProfileInterests extracts Topic|RELATIONSHIP pairs from a member
// profile blurb, with the stricter expert criteria.
func ProfileInterests(ctx context.Context, client llm.Client, model, text string) ([]graph.Interest, error) {
	return interests(ctx, client, model, profileInterestsPrompt, text)
}

func interests(ctx context.Context, client llm.Client, model, prompt, text string) ([]graph.Interest, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	resp, err := client.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("interest extraction: %w", err)
	}
	// Truncated output still parses; complete pairs before the cut
	// survive and a dangling tail degrades to a MENTIONS entry.
	return ParseInterestPairs(resp.Text), nil
}

// ParseInterestPairs parses a comma-separated list of
// "Label|RELATIONSHIP" entries. An entry without the pipe defaults to
// MENTIONS; an unknown relationship label normalizes to MENTIONS; empty
// items are skipped.
func ParseInterestPairs(raw string) []graph.Interest {
	out := make([]graph.Interest, 0, 4)
	seen := make(map[string]bool)
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(item, "|", 2)
		topic := strings.TrimSpace(parts[0])
		if topic == "" {
			continue
		}
		rel := graph.Mentions
		if len(parts) == 2 {
			rel = graph.ParseRelationship(parts[1])
		}
		key := strings.ToLower(topic) + "|" + rel.Label()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, graph.Interest{Topic: topic, Relationship: rel})
	}
	return out
}

func splitTopicList(raw string) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]bool)
	for _, item := range strings.Split(raw, ",") {
		topic := strings.TrimSpace(item)
		if topic == "" || seen[strings.ToLower(topic)] {
			continue
		}
		seen[strings.ToLower(topic)] = true
		out = append(out, topic)
	}
	return out
}
