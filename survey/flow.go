package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlaihq/pesto/llm"
)

// DefaultTimeout ends a started survey that has gone quiet.
const DefaultTimeout = 10 * time.Minute

// startTrigger is sent on behalf of the user when the button is
// clicked; trigger messages never enter the recorded history.
const startTrigger = "Please ask the first question"

// TranscriptSaver persists a finished conversation. Failures are
// logged, never surfaced to the user mid-conversation.
type TranscriptSaver interface {
	SaveTranscript(ctx context.Context, userID, transcript string) error
}

// Flow drives one survey conversation per user on top of the session
// store.
type Flow struct {
	client  llm.Client
	model   string
	store   *SessionStore
	saver   TranscriptSaver
	script  Script
	timeout time.Duration
	nowFn   func() time.Time
	log     *slog.Logger
}

type FlowOptions struct {
	Client  llm.Client
	Model   string
	Store   *SessionStore
	Saver   TranscriptSaver
	Script  Script
	Timeout time.Duration
	NowFunc func() time.Time
	Logger  *slog.Logger
}

func NewFlow(opts FlowOptions) (*Flow, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	script := opts.Script
	if script.SystemPrompt == "" {
		script = DefaultScript()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	nowFn := opts.NowFunc
	if nowFn == nil {
		nowFn = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		client:  opts.Client,
		model:   strings.TrimSpace(opts.Model),
		store:   opts.Store,
		saver:   opts.Saver,
		script:  script,
		timeout: timeout,
		nowFn:   nowFn,
		log:     log,
	}, nil
}

// Store exposes the session store for callers that seed sessions at
// invitation time.
func (f *Flow) Store() *SessionStore {
	return f.store
}

// Prime records the invitation DM so later replies stay in its thread.
func (f *Flow) Prime(userID, userName, threadTS string) {
	f.store.Update(userID, func(s *Session) {
		s.Step = StepNotStarted
		s.UserName = userName
		s.ThreadTS = threadTS
		s.History = nil
		s.StartedAt = time.Time{}
	})
}

// Start moves the user into the conversation and returns the opening
// question. A classifier outage degrades to a fixed first question.
func (f *Flow) Start(ctx context.Context, userID string) string {
	f.store.Update(userID, func(s *Session) {
		s.Step = StepStarted
		s.StartedAt = f.nowFn()
	})
	f.log.Info("survey_started", "user_id", userID)

	reply, err := f.Respond(ctx, userID, startTrigger)
	if err != nil {
		f.log.Warn("survey_opener_error", "user_id", userID, "error", err.Error())
		return firstQuestionFallback
	}
	return reply
}

// Respond handles one user message and returns the bot's reply. The
// fixed-state branches (timed out, completed, not started) never error;
// only a failed LLM call during an active conversation does.
func (f *Flow) Respond(ctx context.Context, userID, text string) (string, error) {
	session, _ := f.store.Get(userID)

	if session.Step == StepStarted && f.timedOut(session) {
		f.store.Update(userID, func(s *Session) { s.Step = StepCompleted })
		f.log.Info("survey_timed_out", "user_id", userID)
		f.saveTranscript(ctx, userID)
		return timeoutReply, nil
	}
	if session.Step == StepCompleted {
		return completedReply, nil
	}
	if session.Step == StepNotStarted {
		return notStartedReply, nil
	}

	messages := make([]llm.Message, 0, len(session.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: f.systemPrompt(session)})
	messages = append(messages, session.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	resp, err := f.client.Complete(ctx, llm.Request{
		Model:    f.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("survey reply: %w", err)
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", fmt.Errorf("survey reply: empty completion")
	}

	if !isTrigger(text) {
		f.store.Update(userID, func(s *Session) {
			s.History = append(s.History,
				llm.Message{Role: llm.RoleUser, Content: text},
				llm.Message{Role: llm.RoleAssistant, Content: reply},
			)
		})
	}

	if isCompletionPhrase(reply) {
		f.store.Update(userID, func(s *Session) { s.Step = StepCompleted })
		f.log.Info("survey_completed", "user_id", userID)
		f.saveTranscript(ctx, userID)
	}
	return reply, nil
}

func (f *Flow) timedOut(session Session) bool {
	if session.StartedAt.IsZero() {
		return false
	}
	return f.nowFn().Sub(session.StartedAt) > f.timeout
}

// systemPrompt appends an exchange counter so the model keeps the
// conversation coherent across turns.
func (f *Flow) systemPrompt(session Session) string {
	exchanges := len(session.History) / 2
	if exchanges == 0 {
		return f.script.SystemPrompt
	}
	return fmt.Sprintf("%s\n\nCONVERSATION CONTEXT: This is exchange #%d in an ongoing conversation. Maintain natural flow and reference previous responses when appropriate.",
		f.script.SystemPrompt, exchanges+1)
}

func (f *Flow) saveTranscript(ctx context.Context, userID string) {
	if f.saver == nil {
		return
	}
	session, ok := f.store.Get(userID)
	if !ok || len(session.History) == 0 {
		return
	}
	if err := f.saver.SaveTranscript(ctx, userID, FormatTranscript(session.History)); err != nil {
		f.log.Warn("survey_transcript_save_error", "user_id", userID, "error", err.Error())
		return
	}
	f.log.Info("survey_transcript_saved", "user_id", userID, "messages", len(session.History))
}

// FormatTranscript renders history as alternating Bot/User lines.
func FormatTranscript(history []llm.Message) string {
	var b strings.Builder
	for _, msg := range history {
		role := "User"
		if msg.Role == llm.RoleAssistant {
			role = "Bot"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, msg.Content)
	}
	return strings.TrimSpace(b.String())
}

func isTrigger(text string) bool {
	return text == startTrigger || text == "start survey"
}

func isCompletionPhrase(reply string) bool {
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "thank you for sharing") &&
		strings.Contains(lower, "responses have been recorded")
}
