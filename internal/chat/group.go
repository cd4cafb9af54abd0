package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/loungechat/internal/channel"
	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/protocol"
)

// GroupController manages membership, roster and message timeline for the
// group lounge mode. Room creation is optimistic: the room surface appears
// as soon as a join is requested, and the roster/message events that follow
// populate it. There is no explicit join failure path: a join the server
// never acted on simply presents an empty roster.
type GroupController struct {
	s *Session

	topic    model.Topic
	joined   bool
	roster   []string
	timeline model.Timeline
	typing   *typingSignaler
	subs     []channel.Subscription
	gen      uint64 // bumped on teardown; stale dispatches check it
}

func newGroupController(s *Session, typingWindow time.Duration) *GroupController {
	return &GroupController{s: s, typing: newTypingSignaler(s, typingWindow)}
}

// Join enters the room for a topic. The timeline is cleared, the room is
// presented immediately, and the join request is emitted; no server
// acknowledgment is awaited.
func (g *GroupController) Join(topic model.Topic) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if !topic.Valid() {
		logger.Errorf("group join: unknown topic %q", topic)
		return
	}
	g.teardownLocked()
	g.topic = topic
	g.joined = true
	g.subscribeLocked()
	g.emit(protocol.EventJoinGroup, protocol.JoinGroupPayload{Interest: topic, GuestID: g.s.me})
}

// JoinRandom asks the server to pick the room. Unlike Join, the local state
// is not assumed: the room appears only once the server answers with the
// assigned topic. This is the one place where the server retroactively
// corrects local group state instead of following it.
func (g *GroupController) JoinRandom() {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.teardownLocked()
	g.subscribeLocked()
	g.emit(protocol.EventJoinGroupRandom, protocol.JoinGroupRandomPayload{GuestID: g.s.me})
}

// Leave departs the current room. Cleanup is local and unconditional; the
// leave notification is emitted but not confirmed.
func (g *GroupController) Leave() {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.teardownLocked()
}

// Send emits a text message to the room and reports whether it did. Blank
// or whitespace-only input and sends outside a room are declined. The
// message is not appended locally: the rendered timeline is driven entirely
// by the server echo, own messages included.
func (g *GroupController) Send(text string) bool {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" || !g.joined {
		return false
	}
	msg := model.NewTextMessage(g.s.me, text)
	g.emit(protocol.EventSendGroupMessage, protocol.GroupMessagePayload{
		Interest: g.topic, Text: msg.Text, Sender: msg.Sender, SentAt: msg.SentAt, Kind: msg.Kind,
	})
	g.notifyTypingLocked(false)
	return true
}

// SendMedia emits an image message pointing at an uploaded URL. Same
// non-optimistic rule as Send.
func (g *GroupController) SendMedia(url string) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if url == "" || !g.joined {
		return
	}
	msg := model.NewImageMessage(g.s.me, url)
	g.emit(protocol.EventSendGroupMessage, protocol.GroupMessagePayload{
		Interest: g.topic, Sender: msg.Sender, SentAt: msg.SentAt, Kind: msg.Kind, MediaURL: msg.MediaURL,
	})
}

// NotifyTyping emits a typing signal for the room. The emit side is not
// debounced: callers re-emit on every keystroke, and emit typing=false on
// send or stop.
func (g *GroupController) NotifyTyping(typing bool) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.notifyTypingLocked(typing)
}

func (g *GroupController) notifyTypingLocked(typing bool) {
	if !g.joined {
		return
	}
	g.emit(protocol.EventTypingGroup, protocol.TypingGroupPayload{Interest: g.topic, From: g.s.me, Typing: typing})
}

// Topic returns the current room topic, empty when not in a room.
func (g *GroupController) Topic() model.Topic {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.topic
}

// Joined reports whether a room is currently presented.
func (g *GroupController) Joined() bool {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.joined
}

// Roster returns the latest membership snapshot.
func (g *GroupController) Roster() []string {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	out := make([]string, len(g.roster))
	copy(out, g.roster)
	return out
}

// Timeline returns the room's message history in arrival order.
func (g *GroupController) Timeline() []model.Message {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.timeline.Messages()
}

// ActiveTyper returns the peer currently shown as typing, if any.
func (g *GroupController) ActiveTyper() string {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.typing.activeTyper
}

// subscribeLocked registers the room-session handlers. Cancel alone is not
// enough to stop a dispatch already in flight on the read loop, so every
// handler re-checks the generation it was registered under after taking the
// session lock; a teardown bumps the generation and the stale dispatch
// becomes a no-op.
func (g *GroupController) subscribeLocked() {
	gen := g.gen
	wrap := func(h func(payload json.RawMessage)) channel.Handler {
		return g.s.notifying(func(payload json.RawMessage) {
			g.s.mu.Lock()
			defer g.s.mu.Unlock()
			if g.gen != gen {
				return
			}
			h(payload)
		})
	}
	g.subs = []channel.Subscription{
		g.s.ch.Subscribe(protocol.EventGroupRoster, wrap(g.onRoster)),
		g.s.ch.Subscribe(protocol.EventGroupMessage, wrap(g.onMessage)),
		g.s.ch.Subscribe(protocol.EventTypingGroup, wrap(g.onTyping)),
		g.s.ch.Subscribe(protocol.EventJoinedGroupRandom, wrap(g.onRandomAssigned)),
	}
}

// teardownLocked emits the leave notification (if in a room), invalidates
// the subscriptions and drops all room state.
func (g *GroupController) teardownLocked() {
	if g.joined {
		g.emit(protocol.EventLeaveGroup, protocol.LeaveGroupPayload{GuestID: g.s.me, Interest: g.topic})
	}
	g.gen++
	for _, sub := range g.subs {
		sub.Cancel()
	}
	g.subs = nil
	g.topic = ""
	g.joined = false
	g.roster = nil
	g.timeline.Clear()
	g.typing.stopLocked()
}

// Handlers below run under s.mu with the generation already verified.

func (g *GroupController) onRoster(payload json.RawMessage) {
	var p protocol.GroupRosterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		logger.Errorf("group roster decode: %v", err)
		return
	}
	// Snapshot semantics: the roster is replaced wholesale, never merged.
	g.roster = p.Users
}

func (g *GroupController) onMessage(payload json.RawMessage) {
	var p protocol.GroupMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		logger.Errorf("group message decode: %v", err)
		return
	}
	g.timeline.Append(p.Message())
}

func (g *GroupController) onTyping(payload json.RawMessage) {
	var p protocol.TypingGroupPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		logger.Errorf("group typing decode: %v", err)
		return
	}
	if !p.Typing || p.From == g.s.me {
		return
	}
	g.typing.observeLocked(p.From)
}

func (g *GroupController) onRandomAssigned(payload json.RawMessage) {
	var p protocol.JoinedGroupRandomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		logger.Errorf("group random assignment decode: %v", err)
		return
	}
	g.topic = p.Interest
	g.joined = true
}

func (g *GroupController) emit(event protocol.EventType, payload any) {
	if err := g.s.ch.Emit(event, payload); err != nil {
		logger.Errorf("group emit %s: %v", event, err)
	}
}
