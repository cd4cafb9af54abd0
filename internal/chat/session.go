// Package chat implements the client-side synchronization core of Lounge:
// a dual-mode state machine reconciling local user intent with the
// asynchronous, unordered stream of server events. It owns mode selection,
// group room membership, the private match lifecycle, message timelines,
// typing signals and the media upload hand-off. Rendering is someone
// else's job; this package only keeps the state straight.
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/loungechat/internal/channel"
	"github.com/loungechat/internal/model"
)

// DefaultTypingWindow is how long a peer's typing indicator stays visible
// without a fresh typing event.
const DefaultTypingWindow = 1400 * time.Millisecond

// Screen is the derived UI state of the session.
type Screen string

const (
	ScreenHome           Screen = "home"
	ScreenGroupPicker    Screen = "group_picker"
	ScreenGroupRoom      Screen = "group_room"
	ScreenPrivatePicker  Screen = "private_picker"
	ScreenPrivateWaiting Screen = "private_waiting"
	ScreenPrivateRoom    Screen = "private_room"
)

// Options tune a Session. Zero values pick sane defaults.
type Options struct {
	// Identity overrides the generated guest name (tests).
	Identity string
	// TypingWindow overrides DefaultTypingWindow (tests).
	TypingWindow time.Duration
	// Uploader handles media uploads; nil disables AttachAndSend.
	Uploader Uploader
}

// Session is the single authoritative record of the client's chat state:
// identity, active mode and the two controllers. All transitions go
// through it. Methods are safe for concurrent use; internally every
// mutation runs to completion under one lock, so handlers never observe
// half-applied state.
type Session struct {
	mu sync.Mutex

	me   string
	ch   channel.Channel
	mode model.Mode

	group    *GroupController
	private  *PrivateController
	composer *Composer

	onUpdate func()
}

// NewSession creates a session with a fresh guest identity. The channel is
// shared by both controllers; only one of them is semantically subscribed
// at a time.
func NewSession(ch channel.Channel, opts Options) *Session {
	me := opts.Identity
	if me == "" {
		me = model.NewGuestName()
	}
	window := opts.TypingWindow
	if window <= 0 {
		window = DefaultTypingWindow
	}
	s := &Session{me: me, ch: ch}
	s.group = newGroupController(s, window)
	s.private = newPrivateController(s, window)
	s.composer = newComposer(s, opts.Uploader)
	return s
}

// Identity returns the ephemeral display name, stable for the session.
func (s *Session) Identity() string { return s.me }

// OnUpdate registers a callback invoked after every server-driven state
// change (incoming events and typing expiry), so the presentation layer
// knows to re-render. Called outside the session lock. Local actions do
// not trigger it; the caller already knows it acted.
func (s *Session) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

func (s *Session) notifyUpdate() {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// notifying wraps an event handler so the update callback fires after the
// handler has run to completion.
func (s *Session) notifying(h channel.Handler) channel.Handler {
	return func(payload json.RawMessage) {
		h(payload)
		s.notifyUpdate()
	}
}

// Mode returns the currently selected mode.
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Group returns the group room controller.
func (s *Session) Group() *GroupController { return s.group }

// Private returns the private match controller.
func (s *Session) Private() *PrivateController { return s.private }

// Composer returns the message composer.
func (s *Session) Composer() *Composer { return s.composer }

// SelectMode switches the active mode. The previously active controller is
// torn down first: its subscriptions are cancelled and its leave event is
// emitted before any state of the new mode exists.
func (s *Session) SelectMode(m model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == m {
		return
	}
	s.teardownActiveLocked()
	s.mode = m
}

// ExitToHome leaves whatever the client is doing and returns to the home
// state. Local cleanup is unconditional; it does not wait for the server.
func (s *Session) ExitToHome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownActiveLocked()
	s.mode = model.ModeNone
}

func (s *Session) teardownActiveLocked() {
	switch s.mode {
	case model.ModeGroup:
		s.group.teardownLocked()
	case model.ModePrivate:
		s.private.teardownLocked()
	}
}

// Screen derives which surface the UI should present.
func (s *Session) Screen() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case model.ModeGroup:
		if s.group.joined {
			return ScreenGroupRoom
		}
		return ScreenGroupPicker
	case model.ModePrivate:
		switch s.private.status {
		case StatusMatched:
			return ScreenPrivateRoom
		case StatusWaiting:
			return ScreenPrivateWaiting
		default:
			return ScreenPrivatePicker
		}
	default:
		return ScreenHome
	}
}

// activeSenderLocked returns the sender the composer should hand media to,
// given the mode current at upload completion time.
func (s *Session) activeSenderLocked() mediaSender {
	switch s.mode {
	case model.ModeGroup:
		return s.group
	case model.ModePrivate:
		return s.private
	default:
		return nil
	}
}
