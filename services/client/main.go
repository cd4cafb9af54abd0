// Terminal chat client. A thin REPL over the synchronization core: every
// command maps to one core operation, every server push re-renders a line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/loungechat/internal/channel"
	"github.com/loungechat/internal/chat"
	"github.com/loungechat/internal/config"
	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/upload"
)

func main() {
	logger.SetPrefix("client")
	cfg := config.Load()

	ctx := context.Background()
	conn, err := channel.Dial(ctx, cfg.ServerURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", cfg.ServerURL, err)
		os.Exit(1)
	}
	defer func() {
		conn.Close()
		conn.Wait()
	}()

	session := chat.NewSession(conn, chat.Options{
		TypingWindow: cfg.TypingWindow,
		Uploader:     upload.NewClient(cfg.UploadURL),
	})
	ui := &repl{session: session, out: os.Stdout}
	session.OnUpdate(ui.render)

	fmt.Printf("Lounge. You are %s\n", session.Identity())
	ui.printHelp()

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			session.ExitToHome()
			return
		}
		ui.handle(ctx, line)
	}
}

// repl maps lines to core operations and prints state deltas. Rendering is
// deliberately dumb: the core owns the state, the repl just shows it.
type repl struct {
	session *chat.Session
	out     *os.File

	mu    sync.Mutex
	shown int // timeline entries already printed
}

func (r *repl) resetShown() {
	r.mu.Lock()
	r.shown = 0
	r.mu.Unlock()
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, `commands:
  /group            pick a topic room       /private           find a 1:1 match
  /join <topic>     join a group room       /match <topic>     request a match
  /random           join a random room      /match random      random match
  /topics           list topics             /who               room roster
  /attach <path>    upload & send image     /emoji <1-10>      add emoji to draft
  /leave            leave room or match     /home              back to start
  /quit             exit
anything else is sent as a message`)
}

func (r *repl) handle(ctx context.Context, line string) {
	s := r.session
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/group":
		s.SelectMode(model.ModeGroup)
		r.resetShown()
	case "/private":
		s.SelectMode(model.ModePrivate)
		r.resetShown()
	case "/home":
		s.ExitToHome()
		r.resetShown()
	case "/topics":
		for i, t := range model.Topics {
			marker := " "
			if i < model.PrimaryCount {
				marker = "*"
			}
			fmt.Fprintf(r.out, "  %s %s\n", marker, t)
		}
	case "/join":
		topic, ok := model.ParseTopic(arg)
		if !ok || topic == model.TopicRandom {
			fmt.Fprintf(r.out, "unknown topic %q (see /topics)\n", arg)
			return
		}
		s.SelectMode(model.ModeGroup)
		s.Group().Join(topic)
		r.resetShown()
	case "/random":
		s.SelectMode(model.ModeGroup)
		s.Group().JoinRandom()
		r.resetShown()
	case "/match":
		criterion, ok := model.ParseTopic(arg)
		if !ok {
			fmt.Fprintf(r.out, "unknown criterion %q (see /topics, or random)\n", arg)
			return
		}
		s.SelectMode(model.ModePrivate)
		s.Private().RequestMatch(criterion)
		r.resetShown()
		fmt.Fprintln(r.out, "searching... keep this window open")
	case "/leave":
		switch s.Mode() {
		case model.ModeGroup:
			s.Group().Leave()
		case model.ModePrivate:
			s.Private().Leave()
		}
		r.resetShown()
	case "/who":
		if s.Mode() == model.ModeGroup && s.Group().Joined() {
			fmt.Fprintf(r.out, "online in #%s: %s\n", s.Group().Topic(), strings.Join(s.Group().Roster(), ", "))
			return
		}
		if s.Mode() == model.ModePrivate && s.Private().Status() == chat.StatusMatched {
			fmt.Fprintf(r.out, "chatting with %s (%s)\n", s.Private().Partner(), s.Private().Topic())
			return
		}
		fmt.Fprintln(r.out, "not in a room")
	case "/emoji":
		n := 0
		fmt.Sscanf(arg, "%d", &n)
		if n < 1 || n > len(chat.Emojis) {
			fmt.Fprintf(r.out, "emoji 1-%d: %s\n", len(chat.Emojis), strings.Join(chat.Emojis, " "))
			return
		}
		s.Composer().InsertEmoji(chat.Emojis[n-1])
		fmt.Fprintf(r.out, "draft: %s\n", s.Composer().Draft())
	case "/attach":
		if arg == "" {
			fmt.Fprintln(r.out, "usage: /attach <path>")
			return
		}
		f, err := os.Open(arg)
		if err != nil {
			fmt.Fprintf(r.out, "cannot open %s: %v\n", arg, err)
			return
		}
		defer f.Close()
		s.Composer().AttachAndSend(ctx, f.Name(), f)
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintf(r.out, "unknown command %s\n", cmd)
			return
		}
		s.Composer().NotifyTyping(true)
		s.Composer().SetDraft(line)
		s.Composer().Send()
	}
}

// render prints new timeline entries and status lines after each
// server-driven update. Called from the channel read loop.
func (r *repl) render() {
	s := r.session
	var msgs []model.Message
	switch s.Mode() {
	case model.ModeGroup:
		msgs = s.Group().Timeline()
	case model.ModePrivate:
		msgs = s.Private().Timeline()
	default:
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shown > len(msgs) {
		r.shown = 0 // timeline was cleared
	}
	for _, m := range msgs[r.shown:] {
		switch {
		case m.IsSystem():
			fmt.Fprintf(r.out, "\n-- %s --\n> ", m.Text)
		case m.Kind == model.MessageKindImage:
			fmt.Fprintf(r.out, "\n[%s] sent an image: %s\n> ", m.Sender, m.MediaURL)
		default:
			fmt.Fprintf(r.out, "\n[%s] %s\n> ", m.Sender, m.Text)
		}
	}
	r.shown = len(msgs)

	var typer string
	switch s.Mode() {
	case model.ModeGroup:
		typer = s.Group().ActiveTyper()
	case model.ModePrivate:
		typer = s.Private().ActiveTyper()
	}
	if typer != "" {
		fmt.Fprintf(r.out, "\n(%s is typing...)\n> ", typer)
	}
}
