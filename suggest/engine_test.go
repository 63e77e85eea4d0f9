package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/mlaihq/pesto/graph"
)

func newTestEngine(t *testing.T, g graph.Reader, tracker *CooldownTracker, maxSuggestions int) *Engine {
	t.Helper()
	// Identity expansion: the classifier is down, Expand degrades to
	// returning its input, which keeps engine tests deterministic.
	expander := newTestExpander(t, &fakeLLM{err: context.DeadlineExceeded})
	ranker := newTestRanker(t, g)
	engine, err := NewEngine(EngineOptions{
		Expander:       expander,
		Ranker:         ranker,
		Cooldowns:      tracker,
		MaxSuggestions: maxSuggestions,
		Logger:         testLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func roboticsGraph() *fakeGraph {
	return &fakeGraph{
		edges: map[string][]graph.Edge{
			"Robotics": {
				{UserID: "A", UserName: "Ana", Relationship: graph.Expert, ActivityLevel: 5},
				{UserID: "B", UserName: "Ben", Relationship: graph.WorkingOn, ActivityLevel: 9},
				{UserID: "C", UserName: "Cleo", Relationship: graph.Expert, ActivityLevel: 2},
			},
		},
	}
}

func TestSuggestTierOrderBeatsRawActivity(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	engine := newTestEngine(t, roboticsGraph(), tracker, 2)

	set := engine.Suggest(context.Background(), []string{"Robotics"}, "")
	if set == nil {
		t.Fatalf("Suggest() = nil, want suggestions")
	}
	if len(set.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(set.Candidates))
	}
	if set.Candidates[0].UserID != "A" || set.Candidates[1].UserID != "C" {
		t.Fatalf("order = [%s %s], want [A C]", set.Candidates[0].UserID, set.Candidates[1].UserID)
	}
	if len(set.Topics) != 1 || set.Topics[0] != "Robotics" {
		t.Fatalf("Topics = %v, want original canonical list", set.Topics)
	}
}

func TestSuggestTrickleDownPastCooldown(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	tracker.MarkTagged("A")
	engine := newTestEngine(t, roboticsGraph(), tracker, 2)

	set := engine.Suggest(context.Background(), []string{"Robotics"}, "")
	if set == nil {
		t.Fatalf("Suggest() = nil, want suggestions")
	}
	if set.Candidates[0].UserID != "C" || set.Candidates[1].UserID != "B" {
		t.Fatalf("order = [%s %s], want [C B]", set.Candidates[0].UserID, set.Candidates[1].UserID)
	}
}

func TestSuggestTrickleDownCapacity(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	tracker.MarkTagged("A")
	tracker.MarkTagged("C")
	engine := newTestEngine(t, roboticsGraph(), tracker, 3)

	// N=3 candidates, |S|=2 suppressed: expect min(3, 3-2) = 1 survivor.
	set := engine.Suggest(context.Background(), []string{"Robotics"}, "")
	if set == nil || len(set.Candidates) != 1 || set.Candidates[0].UserID != "B" {
		t.Fatalf("Suggest() = %+v, want exactly [B]", set)
	}
}

func TestSuggestAllInCooldownReturnsNil(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	for _, id := range []string{"A", "B", "C"} {
		tracker.MarkTagged(id)
	}
	engine := newTestEngine(t, roboticsGraph(), tracker, 3)

	if set := engine.Suggest(context.Background(), []string{"Robotics"}, ""); set != nil {
		t.Fatalf("Suggest() = %+v, want nil when every candidate is cooling down", set)
	}
}

func TestSuggestFailClosedOnTotalGraphFailure(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	engine := newTestEngine(t, &fakeGraph{failAll: true}, tracker, 3)

	if set := engine.Suggest(context.Background(), []string{"Robotics"}, ""); set != nil {
		t.Fatalf("Suggest() = %+v, want nil on total ranker failure", set)
	}
}

func TestSuggestOverFetchesPerTopic(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	g := roboticsGraph()
	engine := newTestEngine(t, g, tracker, 2)

	_ = engine.Suggest(context.Background(), []string{"Robotics"}, "")
	if g.lastLimit != 6 {
		t.Fatalf("per-topic limit = %d, want 3x max suggestions = 6", g.lastLimit)
	}
}

func TestSuggestExcludesAuthor(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	engine := newTestEngine(t, roboticsGraph(), tracker, 3)

	set := engine.Suggest(context.Background(), []string{"Robotics"}, "A")
	if set == nil {
		t.Fatalf("Suggest() = nil, want suggestions")
	}
	for _, cand := range set.Candidates {
		if cand.UserID == "A" {
			t.Fatalf("author must not be suggested: %+v", set.Candidates)
		}
	}
}

func TestSuggestEmptyTopics(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	engine := newTestEngine(t, roboticsGraph(), tracker, 3)

	if set := engine.Suggest(context.Background(), nil, ""); set != nil {
		t.Fatalf("Suggest(nil topics) = %+v, want nil", set)
	}
}

func TestSuggestDoesNotMarkCooldowns(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	engine := newTestEngine(t, roboticsGraph(), tracker, 3)

	set := engine.Suggest(context.Background(), []string{"Robotics"}, "")
	if set == nil {
		t.Fatalf("Suggest() = nil, want suggestions")
	}
	for _, cand := range set.Candidates {
		if tracker.IsInCooldown(cand.UserID) {
			t.Fatalf("engine must not mark cooldowns; %s is marked", cand.UserID)
		}
	}
}
