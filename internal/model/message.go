package model

import "time"

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
)

// SystemSender marks messages synthesized locally to narrate lifecycle
// events (matched, partner left). They are never sent over the channel.
const SystemSender = "system"

// Message is one timeline entry. For image messages Text is empty and
// MediaURL points at the uploaded content; for text messages MediaURL is
// empty.
type Message struct {
	Text     string      `json:"text"`
	Sender   string      `json:"sender"`
	SentAt   int64       `json:"ts"` // wall clock, milliseconds
	Kind     MessageKind `json:"type"`
	MediaURL string      `json:"imageUrl,omitempty"`
}

// NewTextMessage builds a text message stamped with the current wall clock.
func NewTextMessage(sender, text string) Message {
	return Message{
		Text:   text,
		Sender: sender,
		SentAt: time.Now().UnixMilli(),
		Kind:   MessageKindText,
	}
}

// NewImageMessage builds an image message pointing at an uploaded URL.
func NewImageMessage(sender, url string) Message {
	return Message{
		Sender:   sender,
		SentAt:   time.Now().UnixMilli(),
		Kind:     MessageKindImage,
		MediaURL: url,
	}
}

// NewSystemMessage builds a locally synthesized lifecycle message.
func NewSystemMessage(text string) Message {
	return Message{
		Text:   text,
		Sender: SystemSender,
		SentAt: time.Now().UnixMilli(),
		Kind:   MessageKindText,
	}
}

// IsSystem reports whether the message was synthesized locally.
func (m Message) IsSystem() bool { return m.Sender == SystemSender }
