package botcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/llm"
	"github.com/mlaihq/pesto/suggest"
)

// scriptedLLM replies with queued responses in call order.
type scriptedLLM struct {
	queue []llm.Response
	err   error
	calls int
}

func (s *scriptedLLM) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	s.calls++
	if s.err != nil {
		return llm.Response{}, s.err
	}
	if len(s.queue) == 0 {
		return llm.Response{}, fmt.Errorf("no scripted response left")
	}
	resp := s.queue[0]
	s.queue = s.queue[1:]
	return resp, nil
}

type fakeWriter struct {
	userID string
	topics []string
	err    error
	calls  int
}

func (f *fakeWriter) UpsertMentions(_ context.Context, userID, _ string, topics []string, _ string) error {
	f.calls++
	f.userID = userID
	f.topics = topics
	return f.err
}

func (f *fakeWriter) UpsertInterests(_ context.Context, _, _ string, _ []graph.Interest, _ string) error {
	return nil
}

type fakeReader struct {
	edges map[string][]graph.Edge
}

func (f *fakeReader) UsersForTopic(_ context.Context, topic, excludeUserID string, _ int) ([]graph.Edge, error) {
	edges := make([]graph.Edge, 0)
	for _, e := range f.edges[topic] {
		if e.UserID != excludeUserID {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

type fakeSender struct {
	channelID string
	text      string
	threadTS  string
	err       error
	calls     int
}

func (f *fakeSender) postMessage(_ context.Context, channelID, text, threadTS string, _ []map[string]any) (string, error) {
	f.calls++
	f.channelID = channelID
	f.text = text
	f.threadTS = threadTS
	if f.err != nil {
		return "", f.err
	}
	return "1700.0002", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type pipelineFixture struct {
	pipeline *taggingPipeline
	llm      *scriptedLLM
	writer   *fakeWriter
	sender   *fakeSender
	users    *suggest.CooldownTracker
	channels *suggest.CooldownTracker
}

func newPipelineFixture(t *testing.T, client *scriptedLLM, reader graph.Reader) *pipelineFixture {
	t.Helper()
	logger := discardLogger()
	expander, err := suggest.NewExpander(suggest.ExpanderOptions{Client: client, Model: "o3-mini", Logger: logger})
	if err != nil {
		t.Fatalf("NewExpander() error = %v", err)
	}
	ranker, err := suggest.NewRanker(suggest.RankerOptions{Reader: reader, Logger: logger})
	if err != nil {
		t.Fatalf("NewRanker() error = %v", err)
	}
	gate, err := suggest.NewGate(suggest.GateOptions{Client: client, Model: "o3-mini", Logger: logger})
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	users := suggest.NewCooldownTracker(time.Hour)
	channels := suggest.NewCooldownTracker(5 * time.Minute)
	engine, err := suggest.NewEngine(suggest.EngineOptions{
		Expander:  expander,
		Ranker:    ranker,
		Cooldowns: users,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	writer := &fakeWriter{}
	sender := &fakeSender{}
	pipeline, err := newTaggingPipeline(taggingPipelineOptions{
		Client:          client,
		Model:           "o3-mini",
		Writer:          writer,
		Gate:            gate,
		Engine:          engine,
		ChannelThrottle: channels,
		Sender:          sender,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("newTaggingPipeline() error = %v", err)
	}
	return &pipelineFixture{
		pipeline: pipeline,
		llm:      client,
		writer:   writer,
		sender:   sender,
		users:    users,
		channels: channels,
	}
}

func channelEvent(text string) slackInboundEvent {
	return slackInboundEvent{
		TeamID:    "T1",
		ChannelID: "C1",
		ChatType:  "channel",
		MessageTS: "1700.0001",
		UserID:    "UAUTHOR",
		Text:      text,
		SentAt:    time.Unix(1_700_000_000, 0),
	}
}

func TestHandleChannelMessageTagsAndMarksCooldowns(t *testing.T) {
	// Call order: topic extraction, gate, expansion, formatter.
	client := &scriptedLLM{queue: []llm.Response{
		{Text: "Robotics"},
		{Text: "YES"},
		{Text: "Robotics"},
		{Text: "hey <@U1>, robotics talk happening!"},
	}}
	reader := &fakeReader{edges: map[string][]graph.Edge{
		"Robotics": {
			{UserID: "U1", UserName: "Ana", Relationship: graph.Expert, ActivityLevel: 5},
			{UserID: "U2", UserName: "Ben", Relationship: graph.WorkingOn, ActivityLevel: 3},
		},
	}}
	fx := newPipelineFixture(t, client, reader)

	fx.pipeline.HandleChannelMessage(context.Background(), channelEvent("who's into robot arms?"))

	if fx.writer.calls != 1 || fx.writer.userID != "UAUTHOR" {
		t.Fatalf("writer = %+v", fx.writer)
	}
	if fx.sender.calls != 1 || fx.sender.channelID != "C1" {
		t.Fatalf("sender = %+v", fx.sender)
	}
	// Only the user actually mentioned in the delivered text burns a
	// cooldown, even though the engine selected two candidates.
	if !fx.users.IsInCooldown("U1") {
		t.Fatalf("U1 should be in cooldown after delivery")
	}
	if fx.users.IsInCooldown("U2") {
		t.Fatalf("U2 was not mentioned and must not be in cooldown")
	}
	if !fx.channels.IsInCooldown("C1") {
		t.Fatalf("channel throttle should be stamped after delivery")
	}
}

func TestHandleChannelMessageRespectsChannelThrottle(t *testing.T) {
	client := &scriptedLLM{queue: []llm.Response{{Text: "Robotics"}}}
	fx := newPipelineFixture(t, client, &fakeReader{})
	fx.channels.MarkTagged("C1")

	fx.pipeline.HandleChannelMessage(context.Background(), channelEvent("robots!"))

	if fx.writer.calls != 1 {
		t.Fatalf("graph write must still happen under throttle")
	}
	if fx.sender.calls != 0 {
		t.Fatalf("no suggestion may be sent while the channel is throttled")
	}
	if fx.llm.calls != 1 {
		t.Fatalf("llm calls = %d, want extraction only", fx.llm.calls)
	}
}

func TestHandleChannelMessageGateRejects(t *testing.T) {
	client := &scriptedLLM{queue: []llm.Response{
		{Text: "Coffee, Lunch"},
		{Text: "NO"},
	}}
	fx := newPipelineFixture(t, client, &fakeReader{})

	fx.pipeline.HandleChannelMessage(context.Background(), channelEvent("lunch anyone?"))

	if fx.sender.calls != 0 {
		t.Fatalf("gate rejection must suppress delivery")
	}
	if fx.channels.IsInCooldown("C1") {
		t.Fatalf("channel throttle must not be stamped without a delivery")
	}
}

func TestHandleChannelMessageExtractionFailureStopsPipeline(t *testing.T) {
	client := &scriptedLLM{err: fmt.Errorf("classifier down")}
	fx := newPipelineFixture(t, client, &fakeReader{})

	fx.pipeline.HandleChannelMessage(context.Background(), channelEvent("robots!"))

	if fx.writer.calls != 0 || fx.sender.calls != 0 {
		t.Fatalf("nothing may happen when extraction fails: writer=%d sender=%d", fx.writer.calls, fx.sender.calls)
	}
}

func TestHandleChannelMessageDeliveryFailureLeavesCooldownsUntouched(t *testing.T) {
	client := &scriptedLLM{queue: []llm.Response{
		{Text: "Robotics"},
		{Text: "YES"},
		{Text: "Robotics"},
		{Text: "hey <@U1>!"},
	}}
	reader := &fakeReader{edges: map[string][]graph.Edge{
		"Robotics": {{UserID: "U1", UserName: "Ana", Relationship: graph.Expert, ActivityLevel: 5}},
	}}
	fx := newPipelineFixture(t, client, reader)
	fx.sender.err = fmt.Errorf("slack down")

	fx.pipeline.HandleChannelMessage(context.Background(), channelEvent("robots!"))

	if fx.users.IsInCooldown("U1") {
		t.Fatalf("cooldown must not be marked on failed delivery")
	}
	if fx.channels.IsInCooldown("C1") {
		t.Fatalf("channel throttle must not be stamped on failed delivery")
	}
}
