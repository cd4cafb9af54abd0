// Package protocol defines the named events and typed payloads carried by
// the chat channel, shared by the client core and the development server.
package protocol

import (
	"encoding/json"

	"github.com/loungechat/internal/model"
)

type EventType string

// Client → server events.
const (
	EventJoinGroup           EventType = "join_group"
	EventJoinGroupRandom     EventType = "join_group_random"
	EventLeaveGroup          EventType = "leave_group"
	EventSendGroupMessage    EventType = "send_group_message"
	EventTypingGroup         EventType = "typing_group"
	EventRequestPrivateMatch EventType = "request_private_match"
	EventSendPrivateMessage  EventType = "send_private_message"
	EventTypingPrivate       EventType = "typing_private"
	EventLeavePrivate        EventType = "leave_private"
)

// Server → client events. Typing notifications reuse the typing_* names in
// both directions; the payload distinguishes nothing, the direction does.
const (
	EventGroupRoster       EventType = "update_group_users"
	EventGroupMessage      EventType = "receive_group_message"
	EventJoinedGroupRandom EventType = "joined_group_random"
	EventPrivateWaiting    EventType = "private_waiting"
	EventPrivateMatch      EventType = "private_match_found"
	EventPrivateMessage    EventType = "receive_private_message"
	EventPeerLeft          EventType = "peer_left"
)

// Envelope is the wire frame: an event name plus its raw payload.
type Envelope struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Payload structures (field names fixed by the wire protocol) ---

// JoinGroupPayload requests membership in the room for an interest.
type JoinGroupPayload struct {
	Interest model.Topic `json:"interest"`
	GuestID  string      `json:"guestId"`
}

// JoinGroupRandomPayload asks the server to pick the room.
type JoinGroupRandomPayload struct {
	GuestID string `json:"guestId"`
}

// JoinedGroupRandomPayload tells the client which room it was assigned.
type JoinedGroupRandomPayload struct {
	Interest model.Topic `json:"interest"`
}

// LeaveGroupPayload announces departure from a group room.
type LeaveGroupPayload struct {
	GuestID  string      `json:"guestId"`
	Interest model.Topic `json:"interest"`
}

// GroupMessagePayload is a chat message scoped to an interest room. Sent by
// the client and echoed verbatim by the server to every room member,
// including the sender.
type GroupMessagePayload struct {
	Interest model.Topic       `json:"interest"`
	Text     string            `json:"text"`
	Sender   string            `json:"sender"`
	SentAt   int64             `json:"ts"`
	Kind     model.MessageKind `json:"type"`
	MediaURL string            `json:"imageUrl,omitempty"`
}

// Message converts the payload into a timeline entry.
func (p GroupMessagePayload) Message() model.Message {
	return model.Message{Text: p.Text, Sender: p.Sender, SentAt: p.SentAt, Kind: p.Kind, MediaURL: p.MediaURL}
}

// GroupRosterPayload is the full membership snapshot of a room. It replaces
// the local roster wholesale; there are no incremental updates.
type GroupRosterPayload struct {
	Users []string `json:"users"`
}

// TypingGroupPayload signals composing activity in a group room.
type TypingGroupPayload struct {
	Interest model.Topic `json:"interest"`
	From     string      `json:"from"`
	Typing   bool        `json:"typing"`
}

// MatchMode distinguishes interest-scoped and fully random matchmaking.
type MatchMode string

const (
	MatchModeInterest MatchMode = "interest"
	MatchModeRandom   MatchMode = "random"
)

// RequestPrivateMatchPayload enqueues the client for a private match.
// Interest is empty when Mode is random.
type RequestPrivateMatchPayload struct {
	Mode     MatchMode   `json:"mode"`
	Interest model.Topic `json:"interest,omitempty"`
	GuestID  string      `json:"guestId"`
}

// PrivateMatchPayload announces a successful pairing to both parties.
type PrivateMatchPayload struct {
	RoomID    string      `json:"roomId"`
	PartnerID string      `json:"partnerId"`
	Interest  model.Topic `json:"interest"`
}

// PrivateMessagePayload is a chat message scoped to a private room token.
type PrivateMessagePayload struct {
	RoomID   string            `json:"roomId"`
	Text     string            `json:"text"`
	Sender   string            `json:"sender"`
	SentAt   int64             `json:"ts"`
	Kind     model.MessageKind `json:"type"`
	MediaURL string            `json:"imageUrl,omitempty"`
}

// Message converts the payload into a timeline entry.
func (p PrivateMessagePayload) Message() model.Message {
	return model.Message{Text: p.Text, Sender: p.Sender, SentAt: p.SentAt, Kind: p.Kind, MediaURL: p.MediaURL}
}

// TypingPrivatePayload signals composing activity in a private room.
type TypingPrivatePayload struct {
	RoomID string `json:"roomId"`
	From   string `json:"from"`
	Typing bool   `json:"typing"`
}

// Encode wraps a payload into a marshalled envelope.
func Encode(event EventType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// Decode parses a wire frame into an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
