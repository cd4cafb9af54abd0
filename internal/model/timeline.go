package model

// Timeline is the append-only message history of one room or private
// session. Entries keep channel-arrival order and are never re-sorted by
// timestamp. No deduplication: the transport is assumed at-most-once.
type Timeline struct {
	msgs []Message
}

// Append adds a message at the end, preserving arrival order.
func (t *Timeline) Append(m Message) {
	t.msgs = append(t.msgs, m)
}

// Len returns the number of messages.
func (t *Timeline) Len() int { return len(t.msgs) }

// Messages returns a copy of the history for rendering.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Clear drops the history. Called on leave, mode switch and match end.
func (t *Timeline) Clear() {
	t.msgs = nil
}
