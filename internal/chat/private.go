package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/loungechat/internal/channel"
	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/protocol"
)

// Status is the private match lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusMatched Status = "matched"
)

// PrivateController manages the matchmaking lifecycle and message timeline
// for one-to-one private sessions:
//
//	Idle --RequestMatch--> Waiting --match found--> Matched --Leave|peer left--> Idle
//
// Matched is never assumed locally: only the server's match event carries
// the room token that scopes all subsequent sends.
type PrivateController struct {
	s *Session

	status    Status
	criterion model.Topic // requested topic, or the Random sentinel
	topic     model.Topic // resolved topic, set at match time
	roomToken string
	partner   string
	timeline  model.Timeline
	typing    *typingSignaler
	subs      []channel.Subscription
	gen       uint64 // bumped on teardown; stale dispatches check it
}

func newPrivateController(s *Session, typingWindow time.Duration) *PrivateController {
	return &PrivateController{s: s, status: StatusIdle, typing: newTypingSignaler(s, typingWindow)}
}

// RequestMatch enqueues for a private match by topic, or by the Random
// sentinel. The timeline is cleared and status moves to Waiting; there is
// no client-side timeout; the client waits until a match arrives or the
// user cancels by leaving the mode.
func (p *PrivateController) RequestMatch(criterion model.Topic) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if criterion != model.TopicRandom && !criterion.Valid() {
		logger.Errorf("private match: unknown criterion %q", criterion)
		return
	}
	p.teardownLocked()
	p.criterion = criterion
	p.status = StatusWaiting
	p.subscribeLocked()

	req := protocol.RequestPrivateMatchPayload{Mode: protocol.MatchModeInterest, Interest: criterion, GuestID: p.s.me}
	if criterion == model.TopicRandom {
		req = protocol.RequestPrivateMatchPayload{Mode: protocol.MatchModeRandom, GuestID: p.s.me}
	}
	p.emit(protocol.EventRequestPrivateMatch, req)
}

// Leave abandons the current match or wait. The leave notification carries
// no token; the server resolves the session from the connection identity.
// Local reset is unconditional.
func (p *PrivateController) Leave() {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.teardownLocked()
}

// Send emits a text message scoped to the match's room token and reports
// whether it did. Declined unless matched and the trimmed input is
// non-empty. Own messages appear in the timeline only via the server echo.
func (p *PrivateController) Send(text string) bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" || p.roomToken == "" {
		return false
	}
	msg := model.NewTextMessage(p.s.me, text)
	p.emit(protocol.EventSendPrivateMessage, protocol.PrivateMessagePayload{
		RoomID: p.roomToken, Text: msg.Text, Sender: msg.Sender, SentAt: msg.SentAt, Kind: msg.Kind,
	})
	p.notifyTypingLocked(false)
	return true
}

// SendMedia emits an image message scoped to the room token.
func (p *PrivateController) SendMedia(url string) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if url == "" || p.roomToken == "" {
		return
	}
	msg := model.NewImageMessage(p.s.me, url)
	p.emit(protocol.EventSendPrivateMessage, protocol.PrivateMessagePayload{
		RoomID: p.roomToken, Sender: msg.Sender, SentAt: msg.SentAt, Kind: msg.Kind, MediaURL: msg.MediaURL,
	})
}

// NotifyTyping emits a typing signal for the match. No-op unless matched.
func (p *PrivateController) NotifyTyping(typing bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.notifyTypingLocked(typing)
}

func (p *PrivateController) notifyTypingLocked(typing bool) {
	if p.roomToken == "" {
		return
	}
	p.emit(protocol.EventTypingPrivate, protocol.TypingPrivatePayload{RoomID: p.roomToken, From: p.s.me, Typing: typing})
}

// Status returns the lifecycle state.
func (p *PrivateController) Status() Status {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.status
}

// Partner returns the matched peer's identity, empty unless matched.
func (p *PrivateController) Partner() string {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.partner
}

// RoomToken returns the server-assigned token scoping this match.
func (p *PrivateController) RoomToken() string {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.roomToken
}

// Topic returns the resolved topic once matched, else the requested
// criterion.
func (p *PrivateController) Topic() model.Topic {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.topic != "" {
		return p.topic
	}
	return p.criterion
}

// Timeline returns the session's message history in arrival order.
func (p *PrivateController) Timeline() []model.Message {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.timeline.Messages()
}

// ActiveTyper returns the peer currently shown as typing, if any.
func (p *PrivateController) ActiveTyper() string {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.typing.activeTyper
}

// subscribeLocked registers the match-session handlers. As in the group
// controller, Cancel cannot stop a dispatch the read loop already copied,
// so every handler re-checks its registration generation under the session
// lock; teardown bumps the generation first.
func (p *PrivateController) subscribeLocked() {
	gen := p.gen
	wrap := func(h func(payload json.RawMessage)) channel.Handler {
		return p.s.notifying(func(payload json.RawMessage) {
			p.s.mu.Lock()
			defer p.s.mu.Unlock()
			if p.gen != gen {
				return
			}
			h(payload)
		})
	}
	p.subs = []channel.Subscription{
		p.s.ch.Subscribe(protocol.EventPrivateWaiting, wrap(p.onWaiting)),
		p.s.ch.Subscribe(protocol.EventPrivateMatch, wrap(p.onMatchFound)),
		p.s.ch.Subscribe(protocol.EventPrivateMessage, wrap(p.onMessage)),
		p.s.ch.Subscribe(protocol.EventTypingPrivate, wrap(p.onTyping)),
		p.s.ch.Subscribe(protocol.EventPeerLeft, wrap(p.onPeerLeft)),
	}
}

// teardownLocked emits leave_private (if a wait or match is live),
// invalidates the subscriptions and resets to Idle. The timeline is cleared
// here and on the next RequestMatch, so the "partner left" narration stays
// readable after a peer departure until the user moves on.
func (p *PrivateController) teardownLocked() {
	if p.status != StatusIdle {
		p.emit(protocol.EventLeavePrivate, nil)
	}
	p.cancelSubsLocked()
	p.status = StatusIdle
	p.criterion = ""
	p.topic = ""
	p.roomToken = ""
	p.partner = ""
	p.timeline.Clear()
	p.typing.stopLocked()
}

func (p *PrivateController) cancelSubsLocked() {
	p.gen++
	for _, sub := range p.subs {
		sub.Cancel()
	}
	p.subs = nil
}

// Handlers below run under s.mu with the generation already verified.

func (p *PrivateController) onWaiting(json.RawMessage) {
	// Idempotent confirmation; the request already set Waiting locally.
	if p.status == StatusIdle {
		return
	}
	p.status = StatusWaiting
}

func (p *PrivateController) onMatchFound(payload json.RawMessage) {
	var m protocol.PrivateMatchPayload
	if err := json.Unmarshal(payload, &m); err != nil {
		logger.Errorf("private match decode: %v", err)
		return
	}
	p.roomToken = m.RoomID
	p.partner = m.PartnerID
	p.topic = m.Interest
	p.status = StatusMatched
	p.timeline.Append(model.NewSystemMessage(fmt.Sprintf("Matched with %s (%s)", m.PartnerID, m.Interest)))
}

func (p *PrivateController) onMessage(payload json.RawMessage) {
	var m protocol.PrivateMessagePayload
	if err := json.Unmarshal(payload, &m); err != nil {
		logger.Errorf("private message decode: %v", err)
		return
	}
	p.timeline.Append(m.Message())
}

func (p *PrivateController) onTyping(payload json.RawMessage) {
	var t protocol.TypingPrivatePayload
	if err := json.Unmarshal(payload, &t); err != nil {
		logger.Errorf("private typing decode: %v", err)
		return
	}
	if !t.Typing || t.From == p.s.me {
		return
	}
	p.typing.observeLocked(t.From)
}

// onPeerLeft is the highest-priority interrupt: the room no longer exists
// server-side, so the transition to Idle happens regardless of any pending
// local action. The narration stays in the timeline until the next request
// clears it.
func (p *PrivateController) onPeerLeft(json.RawMessage) {
	p.timeline.Append(model.NewSystemMessage("Partner left the chat"))
	p.cancelSubsLocked()
	p.partner = ""
	p.roomToken = ""
	p.topic = ""
	p.criterion = ""
	p.status = StatusIdle
	p.typing.stopLocked()
}

func (p *PrivateController) emit(event protocol.EventType, payload any) {
	if err := p.s.ch.Emit(event, payload); err != nil {
		logger.Errorf("private emit %s: %v", event, err)
	}
}
