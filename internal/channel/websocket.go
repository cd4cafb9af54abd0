package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBufSize    = 256
)

// ErrClosed is returned by Emit after the connection has shut down.
var ErrClosed = errors.New("channel: connection closed")

// ErrSendBufferFull is returned when the outbound buffer is saturated.
// There is no retry: the emit is simply lost, matching the fire-and-forget
// contract of the protocol.
var ErrSendBufferFull = errors.New("channel: send buffer full")

// Conn is the websocket-backed Channel.
// Lifecycle: Dial -> [readPump, writePump] -> Close -> Wait.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	nextID int
	subs   map[protocol.EventType]map[int]Handler

	once sync.Once
	wg   sync.WaitGroup
}

// Dial connects to the chat server and starts the read/write pumps.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			logger.Errorf("channel dial %s: %v (http %s)", url, err, resp.Status)
		}
		return nil, err
	}
	c := &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
		subs: make(map[protocol.EventType]map[int]Handler),
	}
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Emit marshals the payload into an envelope and queues it for sending.
func (c *Conn) Emit(event protocol.EventType, payload any) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		logger.Errorf("channel send buffer full, dropping %s", event)
		return ErrSendBufferFull
	}
}

// Subscribe registers a handler for an event. The returned handle must be
// cancelled on teardown; until then the handler is called from the read
// loop, one event at a time.
func (c *Conn) Subscribe(event protocol.EventType, h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]Handler)
	}
	c.subs[event][id] = h
	return &subscription{conn: c, event: event, id: id}
}

// Close shuts the connection down. Safe to call multiple times.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Wait blocks until both pumps have exited.
func (c *Conn) Wait() {
	c.wg.Wait()
}

type subscription struct {
	conn  *Conn
	event protocol.EventType
	id    int
}

func (s *subscription) Cancel() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if hs, ok := s.conn.subs[s.event]; ok {
		delete(hs, s.id)
		if len(hs) == 0 {
			delete(s.conn.subs, s.event)
		}
	}
}

// dispatch runs every handler registered for the event. Called only from
// readPump, so handlers never interleave.
func (c *Conn) dispatch(env protocol.Envelope) {
	c.mu.Lock()
	hs := make([]Handler, 0, len(c.subs[env.Event]))
	for _, h := range c.subs[env.Event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()

	if len(hs) == 0 {
		logger.Debugf("channel: no subscriber for %s", env.Event)
		return
	}
	for _, h := range hs {
		h(env.Payload)
	}
}

func (c *Conn) readPump() {
	defer c.wg.Done()
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("channel set read deadline: %v", err)
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("channel read: %v", err)
			}
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			logger.Errorf("channel decode: %v", err)
			continue
		}
		logger.Debugf("channel <- %s", env.Event)
		c.dispatch(env)
	}
}

func (c *Conn) writePump() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			if err := c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait)); err != nil && err != websocket.ErrCloseSent {
				logger.Debugf("channel close frame: %v", err)
			}
			return
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("channel set write deadline: %v", err)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Errorf("channel write: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
