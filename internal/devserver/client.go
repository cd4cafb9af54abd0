package devserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/model"
	"github.com/loungechat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBufSize    = 64
)

// client is one connected chat participant.
// Lifecycle: newClient -> start(ctx, cancel) -> [readPump, writePump] -> close.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// All guarded by hub.mu: identity is learned from the first payload
	// carrying a guestId; room state mirrors the client's view.
	guest     string
	topic     model.Topic // group room, empty when not joined
	matchWait bool        // sitting in a match queue
	roomID    string      // private room token, empty when unmatched

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func newClient(hub *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

func (c *client) start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// close signals the client to stop. Safe to call multiple times.
func (c *client) close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) wait() { c.wg.Wait() }

// enqueue hands a marshalled frame to the write pump. A saturated buffer
// closes the slow client rather than blocking the hub.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		logger.Errorf("devserver send buffer full, closing slow client guest=%s", c.guest)
		c.close()
	}
}

// emit wraps a payload into an envelope and queues it.
func (c *client) emit(event protocol.EventType, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		logger.Errorf("devserver encode %s: %v", event, err)
		return
	}
	c.enqueue(data)
}

func (c *client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("devserver read guest=%s: %v", c.guest, err)
			}
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			logger.Errorf("devserver decode guest=%s: %v", c.guest, err)
			continue
		}
		c.hub.handleEvent(c, env.Event, env.Payload)
	}
}

func (c *client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// decode unmarshals a payload, logging failures.
func decode[T any](raw json.RawMessage, event protocol.EventType) (T, bool) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Errorf("devserver payload %s: %v", event, err)
		return v, false
	}
	return v, true
}
