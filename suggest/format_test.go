package suggest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
)

func sampleSet() *SuggestionSet {
	return &SuggestionSet{
		Topics: []string{"Robotics"},
		Candidates: []Candidate{
			{UserID: "U1", Name: "Ana", Best: graph.Expert, ActivityLevel: 5, Topics: []string{"Robotics"}},
			{UserID: "U2", Name: "Ben", Best: graph.InterestedIn, ActivityLevel: 2, Topics: []string{"Robotics"}},
		},
	}
}

func TestFormatSuggestionsUsesModelOutput(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "  hey <@U1> and <@U2>, robotics talk happening! \n"}}

	got := FormatSuggestions(context.Background(), client, "o3-mini", sampleSet(), "anyone into robot arms?")
	if got != "hey <@U1> and <@U2>, robotics talk happening!" {
		t.Fatalf("FormatSuggestions() = %q", got)
	}
	prompt := client.last.Messages[0].Content
	for _, want := range []string{"<@U1>", "IS_EXPERT_IN", "<@U2>", "INTERESTED_IN", "anyone into robot arms?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestFormatSuggestionsFallbackOnError(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("formatter down")}
	got := FormatSuggestions(context.Background(), client, "o3-mini", sampleSet(), "msg")
	if got != "<@U1>, this one's for you!" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestFormatSuggestionsFallbackOnEmptyReply(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "   "}}
	got := FormatSuggestions(context.Background(), client, "o3-mini", sampleSet(), "msg")
	if got != "<@U1>, this one's for you!" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestFormatSuggestionsNilSet(t *testing.T) {
	if got := FormatSuggestions(context.Background(), &fakeLLM{}, "o3-mini", nil, "msg"); got != "" {
		t.Fatalf("FormatSuggestions(nil) = %q, want empty", got)
	}
}
