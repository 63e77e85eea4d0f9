package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
)

type fakeLLM struct {
	resp llm.Response
	err  error
	last llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.last = req
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return f.resp, nil
}

func TestTopicsParsesCommaSeparatedList(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "Machine Learning, Robotics , , Robotics, Data"}}
	topics, err := Topics(context.Background(), client, "o3-mini", "some message")
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	want := []string{"Machine Learning", "Robotics", "Data"}
	if len(topics) != len(want) {
		t.Fatalf("Topics() = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("Topics()[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestTopicsCapsAtFive(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "a, b, c, d, e, f, g"}}
	topics, err := Topics(context.Background(), client, "o3-mini", "msg")
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	if len(topics) != 5 {
		t.Fatalf("expected 5 topics, got %d: %v", len(topics), topics)
	}
}

func TestTopicsPropagatesClientError(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("boom")}
	if _, err := Topics(context.Background(), client, "o3-mini", "msg"); err == nil {
		t.Fatalf("expected error from failing client")
	}
}

func TestParseInterestPairs(t *testing.T) {
	pairs := ParseInterestPairs("Computer Vision|WORKING_ON, Machine Learning|INTERESTED_IN, AI|IS_EXPERT_IN")
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].Topic != "Computer Vision" || pairs[0].Relationship != graph.WorkingOn {
		t.Fatalf("pair 0 = %+v", pairs[0])
	}
	if pairs[2].Relationship != graph.Expert {
		t.Fatalf("pair 2 = %+v", pairs[2])
	}
}

func TestParseInterestPairsMissingPipeDefaultsToMentions(t *testing.T) {
	pairs := ParseInterestPairs("Robotics, Startups|WORKING_ON")
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].Relationship != graph.Mentions {
		t.Fatalf("expected MENTIONS default, got %v", pairs[0].Relationship)
	}
}

func TestParseInterestPairsUnknownRelationshipNormalizes(t *testing.T) {
	pairs := ParseInterestPairs("Robotics|GURU_OF")
	if len(pairs) != 1 || pairs[0].Relationship != graph.Mentions {
		t.Fatalf("expected normalized MENTIONS pair, got %v", pairs)
	}
}

func TestParseInterestPairsSkipsMalformedItems(t *testing.T) {
	pairs := ParseInterestPairs("  , |WORKING_ON, AI|IS_EXPERT_IN,")
	if len(pairs) != 1 || pairs[0].Topic != "AI" {
		t.Fatalf("expected only the AI pair, got %v", pairs)
	}
}

func TestMessageInterestsParsesTruncatedOutput(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "AI|IS_EXPERT_IN, Robo", Truncated: true}}
	pairs, err := MessageInterests(context.Background(), client, "o3-mini", "msg")
	if err != nil {
		t.Fatalf("MessageInterests() error = %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected partial parse of 2 items, got %v", pairs)
	}
	if pairs[1].Topic != "Robo" || pairs[1].Relationship != graph.Mentions {
		t.Fatalf("dangling tail should default to MENTIONS: %+v", pairs[1])
	}
}
