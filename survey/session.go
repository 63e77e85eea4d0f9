// Package survey drives the conversational DM survey: per-user session
// state, the LLM-backed conversation flow, and transcript persistence.
package survey

import (
	"sync"
	"time"

	"github.com/mlaihq/pesto/llm"
)

// Step is the lifecycle stage of one user's survey.
type Step string

const (
	StepNotStarted Step = "not_started"
	StepStarted    Step = "started"
	StepCompleted  Step = "completed"
)

// Session is the conversation state for one user. ThreadTS pins DM
// replies to the invitation thread.
type Session struct {
	Step      Step
	ThreadTS  string
	UserName  string
	StartedAt time.Time
	History   []llm.Message
}

func (s Session) clone() Session {
	out := s
	out.History = append([]llm.Message(nil), s.History...)
	return out
}

// SessionStore holds sessions keyed by Slack user ID. All access goes
// through the mutex; no I/O ever happens under the lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns a deep copy of the session, so callers can read history
// without racing concurrent updates.
func (s *SessionStore) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{Step: StepNotStarted}, false
	}
	return sess.clone(), true
}

// Update applies fn to the user's session under the lock, creating a
// fresh not_started session first if none exists.
func (s *SessionStore) Update(userID string, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{Step: StepNotStarted}
		s.sessions[userID] = sess
	}
	fn(sess)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
