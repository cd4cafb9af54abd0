package chat

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/loungechat/internal/channel"
	"github.com/loungechat/internal/protocol"
)

// fakeChannel records emits and lets tests push server events through the
// real subscription machinery. Deliveries run on the calling goroutine,
// mirroring the sequential dispatch of the websocket read loop.
type fakeChannel struct {
	mu     sync.Mutex
	emits  []emitRecord
	subs   map[protocol.EventType]map[int]channel.Handler
	nextID int
}

type emitRecord struct {
	event   protocol.EventType
	payload json.RawMessage
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[protocol.EventType]map[int]channel.Handler)}
}

func (f *fakeChannel) Emit(event protocol.EventType, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = b
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitRecord{event: event, payload: raw})
	return nil
}

func (f *fakeChannel) Subscribe(event protocol.EventType, h channel.Handler) channel.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.subs[event] == nil {
		f.subs[event] = make(map[int]channel.Handler)
	}
	f.subs[event][f.nextID] = h
	return &fakeSub{f: f, event: event, id: f.nextID}
}

type fakeSub struct {
	f     *fakeChannel
	event protocol.EventType
	id    int
}

func (s *fakeSub) Cancel() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.subs[s.event], s.id)
}

// deliver pushes a server event to every registered handler.
func (f *fakeChannel) deliver(t *testing.T, event protocol.EventType, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	f.mu.Lock()
	hs := make([]channel.Handler, 0, len(f.subs[event]))
	for _, h := range f.subs[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

// handlersSnapshot copies the handlers currently registered for an event.
// It stands in for a dispatch the read loop copied just before a Cancel
// landed: invoking the snapshot later replays that in-flight delivery.
func (f *fakeChannel) handlersSnapshot(event protocol.EventType) []channel.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs := make([]channel.Handler, 0, len(f.subs[event]))
	for _, h := range f.subs[event] {
		hs = append(hs, h)
	}
	return hs
}

// invoke replays a payload against previously snapshotted handlers.
func invoke(t *testing.T, hs []channel.Handler, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	for _, h := range hs {
		h(raw)
	}
}

// subscriberCount reports live handlers for an event.
func (f *fakeChannel) subscriberCount(event protocol.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[event])
}

// emitted returns all recorded emits of one event type.
func (f *fakeChannel) emitted(event protocol.EventType) []emitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitRecord
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// emitOrder returns the sequence of emitted event names.
func (f *fakeChannel) emitOrder() []protocol.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.EventType, len(f.emits))
	for i, e := range f.emits {
		out[i] = e.event
	}
	return out
}

func decodePayload[T any](t *testing.T, rec emitRecord) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", rec.event, err)
	}
	return v
}

// newTestSession builds a session with a fixed identity over a fake channel.
func newTestSession(opts Options) (*Session, *fakeChannel) {
	f := newFakeChannel()
	if opts.Identity == "" {
		opts.Identity = "Guest1000"
	}
	return NewSession(f, opts), f
}
