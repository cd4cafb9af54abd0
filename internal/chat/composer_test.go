package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/protocol"
)

// stubUploader returns a canned URL or error. An optional gate blocks the
// upload until released, for tests that race a mode switch against it.
type stubUploader struct {
	url  string
	err  error
	gate chan struct{}

	mu    sync.Mutex
	calls []string
}

func (u *stubUploader) Upload(_ context.Context, filename string, _ io.Reader) (string, error) {
	u.mu.Lock()
	u.calls = append(u.calls, filename)
	u.mu.Unlock()
	if u.gate != nil {
		<-u.gate
	}
	return u.url, u.err
}

func TestComposerSendRoutesToActiveMode(t *testing.T) {
	s, ch := newTestSession(Options{Identity: "Guest8080"})
	s.SelectMode(model.ModeGroup)
	s.Group().Join(model.TopicMusic)

	s.Composer().SetDraft("  hello room  ")
	s.Composer().Send()

	sends := ch.emitted(protocol.EventSendGroupMessage)
	if len(sends) != 1 {
		t.Fatalf("send_group_message emitted %d times, want 1", len(sends))
	}
	if p := decodePayload[protocol.GroupMessagePayload](t, sends[0]); p.Text != "hello room" {
		t.Fatalf("sent text %q, want trimmed draft", p.Text)
	}
	if got := s.Composer().Draft(); got != "" {
		t.Fatalf("draft %q not cleared after send", got)
	}
}

func TestComposerBlankDraftKept(t *testing.T) {
	s, ch := newTestSession(Options{})
	s.SelectMode(model.ModeGroup)
	s.Group().Join(model.TopicMusic)

	s.Composer().SetDraft("   ")
	s.Composer().Send()

	if len(ch.emitted(protocol.EventSendGroupMessage)) != 0 {
		t.Fatal("blank draft reached the wire")
	}
	if got := s.Composer().Draft(); got != "   " {
		t.Fatalf("blank draft %q was cleared", got)
	}
}

func TestComposerDraftRestoredWhenSendDeclined(t *testing.T) {
	s, ch := newTestSession(Options{})

	// Group mode, no room joined: nothing emits and the text survives.
	s.SelectMode(model.ModeGroup)
	s.Composer().SetDraft("not lost")
	s.Composer().Send()
	if len(ch.emitted(protocol.EventSendGroupMessage)) != 0 {
		t.Fatal("send outside a room reached the wire")
	}
	if got := s.Composer().Draft(); got != "not lost" {
		t.Fatalf("draft = %q, want it restored after the declined send", got)
	}

	// Private mode, waiting but unmatched: same deal.
	s.SelectMode(model.ModePrivate)
	s.Private().RequestMatch(model.TopicMusic)
	s.Composer().SetDraft("hold that thought")
	s.Composer().Send()
	if len(ch.emitted(protocol.EventSendPrivateMessage)) != 0 {
		t.Fatal("send before a match reached the wire")
	}
	if got := s.Composer().Draft(); got != "hold that thought" {
		t.Fatalf("draft = %q, want it restored after the declined send", got)
	}

	// Once matched the restored draft sends normally.
	ch.deliver(t, protocol.EventPrivateMatch, protocol.PrivateMatchPayload{
		RoomID: "r1", PartnerID: "GuestPeer", Interest: model.TopicMusic,
	})
	s.Composer().Send()
	if got := ch.emitted(protocol.EventSendPrivateMessage); len(got) != 1 {
		t.Fatalf("send after match emitted %d messages, want 1", len(got))
	}
	if got := s.Composer().Draft(); got != "" {
		t.Fatalf("draft = %q after a successful send, want empty", got)
	}
}

func TestComposerDraftsArePerMode(t *testing.T) {
	s, _ := newTestSession(Options{})
	s.SelectMode(model.ModeGroup)
	s.Composer().SetDraft("group thoughts")
	s.SelectMode(model.ModePrivate)
	s.Composer().SetDraft("private thoughts")

	if got := s.Composer().Draft(); got != "private thoughts" {
		t.Fatalf("private draft = %q", got)
	}
	s.SelectMode(model.ModeGroup)
	if got := s.Composer().Draft(); got != "group thoughts" {
		t.Fatalf("group draft = %q, want it preserved across the switch", got)
	}
}

func TestComposerInsertEmoji(t *testing.T) {
	s, _ := newTestSession(Options{})
	s.SelectMode(model.ModeGroup)
	s.Composer().SetDraft("nice")
	s.Composer().InsertEmoji(Emojis[0])

	want := "nice" + Emojis[0]
	if got := s.Composer().Draft(); got != want {
		t.Fatalf("draft = %q, want %q", got, want)
	}
}

func TestComposerAttachAndSendGroup(t *testing.T) {
	up := &stubUploader{url: "/files/abc.png"}
	s, ch := newTestSession(Options{Identity: "Guest4040", Uploader: up})
	s.SelectMode(model.ModeGroup)
	s.Group().Join(model.TopicMemes)

	s.Composer().AttachAndSend(context.Background(), "cat.png", strings.NewReader("png bytes"))

	sends := ch.emitted(protocol.EventSendGroupMessage)
	if len(sends) != 1 {
		t.Fatalf("image send emitted %d messages, want 1", len(sends))
	}
	p := decodePayload[protocol.GroupMessagePayload](t, sends[0])
	if p.Kind != model.MessageKindImage || p.MediaURL != "/files/abc.png" || p.Text != "" {
		t.Fatalf("image payload = %+v", p)
	}
	// The timeline shows nothing until the echo arrives; no placeholder.
	if n := len(s.Group().Timeline()); n != 0 {
		t.Fatalf("timeline has %d entries right after upload", n)
	}
}

func TestComposerAttachAndSendUploadFailure(t *testing.T) {
	up := &stubUploader{err: errors.New("disk full")}
	s, ch := newTestSession(Options{Uploader: up})
	s.SelectMode(model.ModeGroup)
	s.Group().Join(model.TopicMusic)

	s.Composer().AttachAndSend(context.Background(), "cat.png", strings.NewReader("x"))

	if len(ch.emitted(protocol.EventSendGroupMessage)) != 0 {
		t.Fatal("failed upload still emitted a message")
	}
}

func TestComposerAttachAndSendDiscardedOnModeSwitch(t *testing.T) {
	up := &stubUploader{url: "/files/late.png", gate: make(chan struct{})}
	s, ch := newTestSession(Options{Identity: "Guest5050", Uploader: up})
	s.SelectMode(model.ModeGroup)
	s.Group().Join(model.TopicMusic)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Composer().AttachAndSend(context.Background(), "slow.png", strings.NewReader("x"))
	}()

	// Switch to private mode while the upload is in flight, then let it
	// finish. The result was aimed at the group room and must be dropped.
	s.SelectMode(model.ModePrivate)
	close(up.gate)
	<-done

	if n := len(ch.emitted(protocol.EventSendGroupMessage)); n != 0 {
		t.Fatalf("stale upload emitted %d group messages", n)
	}
	if n := len(ch.emitted(protocol.EventSendPrivateMessage)); n != 0 {
		t.Fatalf("stale upload emitted %d private messages", n)
	}
}

func TestComposerAttachAndSendNoModeIsNoOp(t *testing.T) {
	up := &stubUploader{url: "/files/abc.png"}
	s, ch := newTestSession(Options{Uploader: up})

	s.Composer().AttachAndSend(context.Background(), "cat.png", strings.NewReader("x"))

	if len(up.calls) != 0 {
		t.Fatal("upload started with no active mode")
	}
	if len(ch.emits) != 0 {
		t.Fatal("no-mode attach emitted events")
	}
}
