package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
)

// relationshipDescriptor feeds the formatter prompt a hint about how to
// address each candidate.
func relationshipDescriptor(rel graph.Relationship) string {
	switch rel {
	case graph.Expert:
		return "deep expertise"
	case graph.WorkingOn:
		return "actively building in this space"
	case graph.InterestedIn:
		return "keen to learn more"
	default:
		return "has touched on this before"
	}
}

// FormatSuggestions turns a suggestion set into a single casual Slack
// line tagging the candidates. On any LLM failure it degrades to a
// minimal tag of the top candidate, so a formatting outage never
// suppresses a suggestion the engine already approved.
func FormatSuggestions(ctx context.Context, client llm.Client, model string, set *SuggestionSet, originalMessage string) string {
	if set == nil || len(set.Candidates) == 0 {
		return ""
	}

	userContext := make([]string, 0, len(set.Candidates))
	for _, cand := range set.Candidates {
		name := cand.Name
		if name == "" {
			name = "teammate"
		}
		userContext = append(userContext, fmt.Sprintf("<@%s> (%s - %s %s - %s)",
			cand.UserID, name, cand.Best.Label(),
			strings.Join(cand.Topics, ", "),
			relationshipDescriptor(cand.Best),
		))
	}

	resp, err := client.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: formattingPrompt(userContext, set.Topics, originalMessage)},
		},
	})
	if err == nil {
		text := strings.TrimSpace(resp.Text)
		if text != "" {
			return text
		}
	}
	return fmt.Sprintf("<@%s>, this one's for you!", set.Candidates[0].UserID)
}
