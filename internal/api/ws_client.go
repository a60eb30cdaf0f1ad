package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
)

// wsQueueSize bounds the frames buffered for one client.
const wsQueueSize = 64

// wsTiming holds the keepalive settings in time units.
type wsTiming struct {
	readLimit int64
	ping      time.Duration
	write     time.Duration
	idle      time.Duration
}

func timingFrom(cfg config.WebSocketConfig) wsTiming {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsTiming{
		readLimit: int64(cfg.MaxMessageSize),
		ping:      ping,
		write:     pong,
		idle:      ping + pong,
	}
}

// WSClient is one connected socket.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu       sync.RWMutex
	channels map[string]struct{}
	queue    chan []byte
	closed   bool
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		channels: make(map[string]struct{}),
		queue:    make(chan []byte, wsQueueSize),
	}
}

// enqueue queues a frame without blocking. It reports false when the
// client is gone or its queue is full.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// closeQueue ends the write loop. Only the first call has an effect.
func (c *WSClient) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

// shutdown closes the queue and the connection.
func (c *WSClient) shutdown() {
	c.closeQueue()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *WSClient) subscribe(channels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// readLoop handles inbound frames until the peer goes away or stays
// silent past the idle deadline.
func (c *WSClient) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	t := c.hub.timing
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.idle)) }

	c.conn.SetReadLimit(t.readLimit)
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.handleMessage(data)
	}
}

// writeLoop drains the queue and pings on the configured interval.
func (c *WSClient) writeLoop() {
	t := c.hub.timing
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(t.write)) //nolint:errcheck // write reports the failure
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// inboundMessage defers payload decoding to the message type.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (c *WSClient) handleMessage(data []byte) {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(in.ID, WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch in.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &sub) != nil {
			c.reply(in.ID, WSTypeError, errorBody("invalid "+in.Type+" payload"))
			return
		}
		key := "subscribed"
		if in.Type == WSTypeSubscribe {
			c.subscribe(sub.Channels...)
			c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels)
		} else {
			c.unsubscribe(sub.Channels...)
			key = "unsubscribed"
		}
		c.reply(in.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	default:
		c.reply(in.ID, WSTypeError, errorBody("unknown message type: "+in.Type))
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	msg := newWSMessage(msgType, payload)
	msg.ID = id
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}
