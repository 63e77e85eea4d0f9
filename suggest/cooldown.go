package suggest

import (
	"sync"
	"time"
)

// DefaultUserCooldown suppresses re-tagging a user for an hour.
const DefaultUserCooldown = time.Hour

// DefaultChannelCooldown spaces tagging messages within one channel.
const DefaultChannelCooldown = 5 * time.Minute

// CooldownTracker records when an ID (user or channel) was last tagged
// and answers whether it is still inside the suppression window. All
// map access is guarded by one mutex; readers get computed values, never
// internal state.
type CooldownTracker struct {
	mu         sync.Mutex
	lastTagged map[string]time.Time
	window     time.Duration
	nowFn      func() time.Time
}

type CooldownOption func(*CooldownTracker)

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) CooldownOption {
	return func(t *CooldownTracker) {
		if fn != nil {
			t.nowFn = fn
		}
	}
}

func NewCooldownTracker(window time.Duration, opts ...CooldownOption) *CooldownTracker {
	if window <= 0 {
		window = DefaultUserCooldown
	}
	t := &CooldownTracker{
		lastTagged: make(map[string]time.Time),
		window:     window,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the configured suppression window.
func (t *CooldownTracker) Window() time.Duration {
	return t.window
}

// IsInCooldown reports whether id was tagged less than a window ago.
// IDs never tagged are never in cooldown.
func (t *CooldownTracker) IsInCooldown(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastTagged[id]
	if !ok {
		return false
	}
	return t.nowFn().Sub(last) < t.window
}

// Remaining returns how long until id leaves cooldown; zero when absent
// or already expired.
func (t *CooldownTracker) Remaining(id string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastTagged[id]
	if !ok {
		return 0
	}
	remaining := t.window - t.nowFn().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkTagged stamps id with the current time. Re-marking simply
// restarts the window.
func (t *CooldownTracker) MarkTagged(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTagged[id] = t.nowFn()
}

// Sweep drops entries whose window has fully elapsed and returns how
// many were removed. Safe to call concurrently and redundantly; entries
// still inside the window are never touched.
func (t *CooldownTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	removed := 0
	for id, last := range t.lastTagged {
		if now.Sub(last) > t.window {
			delete(t.lastTagged, id)
			removed++
		}
	}
	return removed
}

// CooldownEntry describes one ID still inside the window.
type CooldownEntry struct {
	ID        string
	Remaining time.Duration
}

// CooldownStats is a point-in-time snapshot for operational visibility.
type CooldownStats struct {
	TotalTracked int
	Active       []CooldownEntry
	Window       time.Duration
}

// Stats returns a defensive snapshot of the tracker state.
func (t *CooldownTracker) Stats() CooldownStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	stats := CooldownStats{
		TotalTracked: len(t.lastTagged),
		Window:       t.window,
	}
	for id, last := range t.lastTagged {
		remaining := t.window - now.Sub(last)
		if remaining > 0 {
			stats.Active = append(stats.Active, CooldownEntry{ID: id, Remaining: remaining})
		}
	}
	return stats
}
