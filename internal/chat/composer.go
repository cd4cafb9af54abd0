package chat

import (
	"context"
	"io"
	"strings"

	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
)

// Emojis is the fixed palette offered by the composer strip.
var Emojis = []string{"😀", "😂", "😍", "🔥", "👍", "🎉", "😮", "🤯", "😢", "💯"}

// Uploader pushes a media blob out of band and returns its content URL.
// Implemented by upload.Client.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// mediaSender is the controller-side hook the composer hands upload results
// to. Both controllers implement it.
type mediaSender interface {
	SendMedia(url string)
}

// Composer turns user input into outbound messages: it keeps one draft per
// mode, inserts emoji, routes sends and typing signals to the active
// controller, and coordinates media uploads with the message stream.
type Composer struct {
	s        *Session
	uploader Uploader
	drafts   map[model.Mode]string
}

func newComposer(s *Session, uploader Uploader) *Composer {
	return &Composer{s: s, uploader: uploader, drafts: make(map[model.Mode]string)}
}

// Draft returns the compose buffer of the active mode.
func (c *Composer) Draft() string {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.drafts[c.s.mode]
}

// SetDraft replaces the compose buffer of the active mode.
func (c *Composer) SetDraft(text string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.drafts[c.s.mode] = text
}

// InsertEmoji appends an emoji to the active mode's draft.
func (c *Composer) InsertEmoji(e string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.drafts[c.s.mode] += e
}

// Send routes the active draft to the active controller and clears it on
// emission. Blank drafts are rejected before emission; a draft the
// controller declines (no room joined, no match yet) is restored rather
// than lost.
func (c *Composer) Send() {
	c.s.mu.Lock()
	mode := c.s.mode
	draft := c.drafts[mode]
	if strings.TrimSpace(draft) == "" {
		c.s.mu.Unlock()
		return
	}
	c.drafts[mode] = ""
	c.s.mu.Unlock()

	var sent bool
	switch mode {
	case model.ModeGroup:
		sent = c.s.group.Send(draft)
	case model.ModePrivate:
		sent = c.s.private.Send(draft)
	}
	if sent {
		return
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	// Keep anything typed in the meantime ahead of the restored text.
	if c.drafts[mode] == "" {
		c.drafts[mode] = draft
	}
}

// NotifyTyping forwards a keystroke-side typing signal to the active
// controller.
func (c *Composer) NotifyTyping(typing bool) {
	c.s.mu.Lock()
	mode := c.s.mode
	c.s.mu.Unlock()

	switch mode {
	case model.ModeGroup:
		c.s.group.NotifyTyping(typing)
	case model.ModePrivate:
		c.s.private.NotifyTyping(typing)
	}
}

// AttachAndSend uploads a media blob and, on success, emits an image
// message through the controller active at upload start. The send is
// strictly sequenced after the upload: no placeholder message exists while
// the upload is in flight. If the mode changed while uploading, the result
// is discarded: the upload was aimed at a room that is no longer current.
// Upload failures abandon the attempt with a log line and nothing else.
func (c *Composer) AttachAndSend(ctx context.Context, filename string, r io.Reader) {
	if c.uploader == nil {
		logger.Error("composer: no uploader configured")
		return
	}
	c.s.mu.Lock()
	target := c.s.mode
	c.s.mu.Unlock()
	if target == model.ModeNone {
		return
	}

	url, err := c.uploader.Upload(ctx, filename, r)
	if err != nil {
		logger.Errorf("composer upload %s: %v", filename, err)
		return
	}

	c.s.mu.Lock()
	sender := c.s.activeSenderLocked()
	stale := c.s.mode != target
	c.s.mu.Unlock()
	if stale || sender == nil {
		logger.Infof("composer: discarding upload result, mode changed during upload")
		return
	}
	sender.SendMedia(url)
}
