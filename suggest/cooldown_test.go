package suggest

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func newTestTracker(window time.Duration, clock *fakeClock) *CooldownTracker {
	return NewCooldownTracker(window, WithNowFunc(clock.Now))
}

func TestMarkTaggedStartsFullWindow(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)

	if tracker.IsInCooldown("U1") {
		t.Fatalf("unknown user must not be in cooldown")
	}
	if got := tracker.Remaining("U1"); got != 0 {
		t.Fatalf("Remaining(unknown) = %v, want 0", got)
	}

	tracker.MarkTagged("U1")
	if !tracker.IsInCooldown("U1") {
		t.Fatalf("expected U1 in cooldown right after MarkTagged")
	}
	if got := tracker.Remaining("U1"); got != time.Hour {
		t.Fatalf("Remaining = %v, want %v", got, time.Hour)
	}
}

func TestCooldownExpiresAndSweepRemoves(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	tracker.MarkTagged("U1")

	clock.Advance(time.Hour + time.Second)
	if tracker.IsInCooldown("U1") {
		t.Fatalf("cooldown should have expired")
	}
	if got := tracker.Remaining("U1"); got != 0 {
		t.Fatalf("Remaining after expiry = %v, want 0", got)
	}
	if removed := tracker.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if tracker.Stats().TotalTracked != 0 {
		t.Fatalf("entry should be gone after sweep")
	}
}

func TestSweepKeepsLiveEntries(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	tracker.MarkTagged("U1")
	clock.Advance(30 * time.Minute)
	tracker.MarkTagged("U2")

	if removed := tracker.Sweep(); removed != 0 {
		t.Fatalf("Sweep() mid-window = %d, want 0", removed)
	}
	if !tracker.IsInCooldown("U1") || !tracker.IsInCooldown("U2") {
		t.Fatalf("live entries must survive a sweep")
	}
}

func TestRemarkRestampsWithoutDoubleCounting(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)

	tracker.MarkTagged("U1")
	tracker.MarkTagged("U1")
	if got := tracker.Remaining("U1"); got != time.Hour {
		t.Fatalf("Remaining after double mark = %v, want %v", got, time.Hour)
	}

	clock.Advance(20 * time.Minute)
	tracker.MarkTagged("U1")
	if got := tracker.Remaining("U1"); got != time.Hour {
		t.Fatalf("Remaining after re-stamp = %v, want full window %v", got, time.Hour)
	}
}

func TestStatsSnapshot(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(time.Hour, clock)
	tracker.MarkTagged("U1")
	clock.Advance(time.Hour + time.Minute)
	tracker.MarkTagged("U2")

	stats := tracker.Stats()
	if stats.TotalTracked != 2 {
		t.Fatalf("TotalTracked = %d, want 2", stats.TotalTracked)
	}
	if len(stats.Active) != 1 || stats.Active[0].ID != "U2" {
		t.Fatalf("Active = %+v, want only U2", stats.Active)
	}
	if stats.Window != time.Hour {
		t.Fatalf("Window = %v, want 1h", stats.Window)
	}
}

func TestZeroWindowFallsBackToDefault(t *testing.T) {
	tracker := NewCooldownTracker(0)
	if tracker.Window() != DefaultUserCooldown {
		t.Fatalf("Window() = %v, want %v", tracker.Window(), DefaultUserCooldown)
	}
}
