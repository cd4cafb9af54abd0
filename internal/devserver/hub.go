package devserver

import (
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/protocol"
)

// privateRoom pairs two matched clients under a server-issued token.
type privateRoom struct {
	a, b *client
}

func (r *privateRoom) other(c *client) *client {
	if r.a == c {
		return r.b
	}
	return r.a
}

// Hub is the in-memory chat state: group rooms keyed by interest, match
// queues keyed by criterion, and live private rooms keyed by token.
// Everything lives and dies with the process: this is a development stub,
// not a product backend.
type Hub struct {
	mu       sync.Mutex
	rooms    map[model.Topic]map[*client]struct{}
	queues   map[model.Topic][]*client // TopicRandom holds the random pool
	privates map[string]*privateRoom
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[model.Topic]map[*client]struct{}),
		queues:   make(map[model.Topic][]*client),
		privates: make(map[string]*privateRoom),
	}
}

// handleEvent dispatches one inbound client event.
func (h *Hub) handleEvent(c *client, event protocol.EventType, raw json.RawMessage) {
	switch event {
	case protocol.EventJoinGroup:
		if p, ok := decode[protocol.JoinGroupPayload](raw, event); ok {
			h.joinGroup(c, p.GuestID, p.Interest)
		}
	case protocol.EventJoinGroupRandom:
		if p, ok := decode[protocol.JoinGroupRandomPayload](raw, event); ok {
			h.joinGroupRandom(c, p.GuestID)
		}
	case protocol.EventLeaveGroup:
		if _, ok := decode[protocol.LeaveGroupPayload](raw, event); ok {
			h.leaveGroup(c)
		}
	case protocol.EventSendGroupMessage:
		if p, ok := decode[protocol.GroupMessagePayload](raw, event); ok {
			h.broadcastGroup(p.Interest, protocol.EventGroupMessage, p, nil)
		}
	case protocol.EventTypingGroup:
		if p, ok := decode[protocol.TypingGroupPayload](raw, event); ok {
			h.broadcastGroup(p.Interest, protocol.EventTypingGroup, p, c)
		}
	case protocol.EventRequestPrivateMatch:
		if p, ok := decode[protocol.RequestPrivateMatchPayload](raw, event); ok {
			h.requestMatch(c, p)
		}
	case protocol.EventSendPrivateMessage:
		if p, ok := decode[protocol.PrivateMessagePayload](raw, event); ok {
			h.relayPrivate(p.RoomID, protocol.EventPrivateMessage, p, nil)
		}
	case protocol.EventTypingPrivate:
		if p, ok := decode[protocol.TypingPrivatePayload](raw, event); ok {
			h.relayPrivate(p.RoomID, protocol.EventTypingPrivate, p, c)
		}
	case protocol.EventLeavePrivate:
		h.leavePrivate(c)
	default:
		logger.Debugf("devserver: unhandled event %s", event)
	}
}

// handleDisconnect cleans up everything a dropped connection was part of.
func (h *Hub) handleDisconnect(c *client) {
	h.leaveGroup(c)
	h.leavePrivate(c)
	c.close()
}

func (h *Hub) joinGroup(c *client, guest string, topic model.Topic) {
	if !topic.Valid() {
		logger.Errorf("devserver join_group: unknown topic %q", topic)
		return
	}
	h.mu.Lock()
	c.guest = guest
	h.removeFromRoomLocked(c)
	if h.rooms[topic] == nil {
		h.rooms[topic] = make(map[*client]struct{})
	}
	h.rooms[topic][c] = struct{}{}
	c.topic = topic
	members, roster := h.roomSnapshotLocked(topic)
	h.mu.Unlock()

	logger.Infof("devserver: %s joined #%s (%d online)", guest, topic, len(roster))
	sendRoster(members, roster)
}

// joinGroupRandom prefers an occupied room, so a lone "random" joiner finds
// company when any exists; otherwise it picks an arbitrary interest.
func (h *Hub) joinGroupRandom(c *client, guest string) {
	h.mu.Lock()
	occupied := make([]model.Topic, 0, len(h.rooms))
	for t, members := range h.rooms {
		if len(members) > 0 {
			occupied = append(occupied, t)
		}
	}
	topic := model.Topics[rand.Intn(len(model.Topics))]
	if len(occupied) > 0 {
		topic = occupied[rand.Intn(len(occupied))]
	}
	h.mu.Unlock()

	c.emit(protocol.EventJoinedGroupRandom, protocol.JoinedGroupRandomPayload{Interest: topic})
	h.joinGroup(c, guest, topic)
}

func (h *Hub) leaveGroup(c *client) {
	h.mu.Lock()
	topic := c.topic
	h.removeFromRoomLocked(c)
	var members []*client
	var roster []string
	if topic != "" {
		members, roster = h.roomSnapshotLocked(topic)
	}
	h.mu.Unlock()

	sendRoster(members, roster)
}

// removeFromRoomLocked detaches c from its room, if any.
func (h *Hub) removeFromRoomLocked(c *client) {
	if c.topic == "" {
		return
	}
	if members, ok := h.rooms[c.topic]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.topic)
		}
	}
	c.topic = ""
}

// roomSnapshotLocked returns the room's clients and their roster names.
func (h *Hub) roomSnapshotLocked(topic model.Topic) ([]*client, []string) {
	members := make([]*client, 0, len(h.rooms[topic]))
	roster := make([]string, 0, len(h.rooms[topic]))
	for m := range h.rooms[topic] {
		members = append(members, m)
		roster = append(roster, m.guest)
	}
	return members, roster
}

func sendRoster(members []*client, roster []string) {
	for _, m := range members {
		m.emit(protocol.EventGroupRoster, protocol.GroupRosterPayload{Users: roster})
	}
}

// broadcastGroup sends an event to every member of a room, optionally
// excluding one client (typing relays skip the sender; message echoes
// include it, since the sender's own timeline is fed by the echo).
func (h *Hub) broadcastGroup(topic model.Topic, event protocol.EventType, payload any, except *client) {
	h.mu.Lock()
	members, _ := h.roomSnapshotLocked(topic)
	h.mu.Unlock()
	for _, m := range members {
		if m == except {
			continue
		}
		m.emit(event, payload)
	}
}

// requestMatch pairs the requester with a compatible waiting client, or
// enqueues them. Interest criteria match the same interest; the random pool
// matches anyone at all.
func (h *Hub) requestMatch(c *client, p protocol.RequestPrivateMatchPayload) {
	criterion := p.Interest
	if p.Mode == protocol.MatchModeRandom {
		criterion = model.TopicRandom
	}
	if criterion != model.TopicRandom && !criterion.Valid() {
		logger.Errorf("devserver match: unknown criterion %q", criterion)
		return
	}

	h.mu.Lock()
	c.guest = p.GuestID
	h.dequeueLocked(c)

	partner, resolved := h.takePartnerLocked(criterion)
	if partner == nil {
		c.matchWait = true
		h.queues[criterion] = append(h.queues[criterion], c)
		h.mu.Unlock()
		c.emit(protocol.EventPrivateWaiting, nil)
		return
	}

	token := uuid.New().String()
	h.privates[token] = &privateRoom{a: c, b: partner}
	c.roomID = token
	partner.roomID = token
	c.matchWait = false
	partner.matchWait = false
	h.mu.Unlock()

	logger.Infof("devserver: matched %s with %s on %s room=%s", c.guest, partner.guest, resolved, token)
	c.emit(protocol.EventPrivateMatch, protocol.PrivateMatchPayload{RoomID: token, PartnerID: partner.guest, Interest: resolved})
	partner.emit(protocol.EventPrivateMatch, protocol.PrivateMatchPayload{RoomID: token, PartnerID: c.guest, Interest: resolved})
}

// takePartnerLocked pops a compatible waiting client and the interest the
// pairing resolves to. Random-random pairings resolve to a random interest.
func (h *Hub) takePartnerLocked(criterion model.Topic) (*client, model.Topic) {
	pop := func(q model.Topic) *client {
		list := h.queues[q]
		if len(list) == 0 {
			return nil
		}
		p := list[0]
		h.queues[q] = list[1:]
		return p
	}

	if criterion != model.TopicRandom {
		if p := pop(criterion); p != nil {
			return p, criterion
		}
		if p := pop(model.TopicRandom); p != nil {
			return p, criterion
		}
		return nil, ""
	}

	for _, t := range model.Topics {
		if p := pop(t); p != nil {
			return p, t
		}
	}
	if p := pop(model.TopicRandom); p != nil {
		return p, model.Topics[rand.Intn(len(model.Topics))]
	}
	return nil, ""
}

func (h *Hub) dequeueLocked(c *client) {
	if !c.matchWait {
		return
	}
	for t, list := range h.queues {
		kept := list[:0]
		for _, w := range list {
			if w != c {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(h.queues, t)
		} else {
			h.queues[t] = kept
		}
	}
	c.matchWait = false
}

// relayPrivate sends an event to the members of a private room, optionally
// excluding the sender.
func (h *Hub) relayPrivate(token string, event protocol.EventType, payload any, except *client) {
	h.mu.Lock()
	room := h.privates[token]
	var targets []*client
	if room != nil {
		for _, m := range []*client{room.a, room.b} {
			if m != except {
				targets = append(targets, m)
			}
		}
	}
	h.mu.Unlock()
	for _, m := range targets {
		m.emit(event, payload)
	}
}

// leavePrivate tears down the client's match state: the partner (if any)
// learns the peer is gone, and any queue slot is released.
func (h *Hub) leavePrivate(c *client) {
	h.mu.Lock()
	h.dequeueLocked(c)
	var partner *client
	if c.roomID != "" {
		if room, ok := h.privates[c.roomID]; ok {
			partner = room.other(c)
			delete(h.privates, c.roomID)
		}
		c.roomID = ""
		if partner != nil {
			partner.roomID = ""
		}
	}
	h.mu.Unlock()

	if partner != nil {
		partner.emit(protocol.EventPeerLeft, nil)
	}
}
