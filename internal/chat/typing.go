package chat

import (
	"time"
)

// typingSignaler keeps the transient "who is typing" state for one mode.
// The display side is a last-writer-wins slot with a fixed expiry window:
// every observed typing=true from a peer replaces the active typer and
// pushes the deadline out; when the window elapses with no new signal the
// slot clears itself. At most one typer is shown per mode.
type typingSignaler struct {
	s      *Session // lock owner
	window time.Duration

	activeTyper string
	timer       *time.Timer
	seq         uint64
}

func newTypingSignaler(s *Session, window time.Duration) *typingSignaler {
	return &typingSignaler{s: s, window: window}
}

// observeLocked records a peer typing signal and rearms the expiry timer.
// Caller holds s.mu. Self-notifications are filtered by the caller.
func (t *typingSignaler) observeLocked(from string) {
	t.activeTyper = from
	t.seq++
	seq := t.seq
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, func() {
		t.s.mu.Lock()
		// A newer signal rearmed the window after this timer was scheduled.
		if t.seq != seq {
			t.s.mu.Unlock()
			return
		}
		t.activeTyper = ""
		t.s.mu.Unlock()
		t.s.notifyUpdate()
	})
}

// stopLocked clears the display state immediately. Caller holds s.mu.
func (t *typingSignaler) stopLocked() {
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.activeTyper = ""
}
