package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlaihq/pesto/llm"
)

// Expander widens a set of canonical topics into a matching vocabulary
// (synonyms, abbreviations, variants) via an LLM call. It degrades to
// identity on any failure: the caller always gets at least the topics
// it passed in, and never an error.
type Expander struct {
	client llm.Client
	model  string
	log    *slog.Logger
}

type ExpanderOptions struct {
	Client llm.Client
	Model  string
	Logger *slog.Logger
}

func NewExpander(opts ExpanderOptions) (*Expander, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Expander{
		client: opts.Client,
		model:  strings.TrimSpace(opts.Model),
		log:    log,
	}, nil
}

// Expand returns the matching vocabulary for topics. The result always
// contains every input topic; originals the classifier missed are
// appended at the end.
func (e *Expander) Expand(ctx context.Context, topics []string) []string {
	if len(topics) == 0 {
		return nil
	}
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:           e.model,
		ReasoningEffort: "low",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: expansionPrompt(topics)},
		},
	})
	if err != nil {
		e.log.Warn("topic_expansion_error", "topics", len(topics), "error", err.Error())
		return append([]string(nil), topics...)
	}
	if resp.Truncated && resp.Text == "" {
		e.log.Warn("topic_expansion_truncated_empty", "topics", len(topics))
		return append([]string(nil), topics...)
	}
	expanded := parseExpansion(resp.Text, topics)
	e.log.Debug("topic_expansion_done",
		"original", len(topics),
		"expanded", len(expanded),
		"truncated", resp.Truncated,
	)
	return expanded
}

// parseExpansion reads the classifier's delimiter format: groups
// separated by '|', terms within a group by ','. Terms dedupe by exact
// trimmed match in first-occurrence order; missing originals are
// appended so the superset invariant holds on every path.
func parseExpansion(raw string, originals []string) []string {
	out := make([]string, 0, len(originals)*4)
	seen := make(map[string]bool)
	for _, group := range strings.Split(raw, "|") {
		for _, term := range strings.Split(group, ",") {
			term = strings.TrimSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, term)
		}
	}
	for _, topic := range originals {
		if !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out
}
