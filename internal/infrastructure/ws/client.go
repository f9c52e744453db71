package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
)

type ClientOptions struct {
	SendBuffer     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:     64,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 32 * 1024,
	}
}

// Client is one websocket connection with a buffered outbound queue.
// Frames for a client whose queue is full are dropped.
type Client struct {
	conn    *connWrapper
	message chan *WSMessage
	id      string
	opts    ClientOptions
	logger  logging.Logger

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.RWMutex
	isClosed  bool
}

func NewClient(conn *websocket.Conn, id string, opts ClientOptions, logger logging.Logger) *Client {
	return &Client{
		conn:    newConnWrapper(conn, opts.WriteWait),
		message: make(chan *WSMessage, opts.SendBuffer),
		id:      id,
		opts:    opts,
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues msg without blocking and reports whether it was accepted.
func (c *Client) Send(msg *WSMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return false
	}

	select {
	case c.message <- msg:
		return true
	default:
		c.logger.Warn(logging.Websocket, logging.Write, "client buffer full, dropping frame", map[logging.ExtraKey]any{
			logging.ConnectionID: c.id,
			logging.EventType:    msg.Type,
		})
		return false
	}
}

// Close stops accepting frames. Frames already queued are still written
// before the close frame.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.isClosed = true
		close(c.message)
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// ReadPump delivers every inbound frame to handle until the transport
// fails or handle returns an error.
func (c *Client) ReadPump(handle func(raw []byte) error) {
	ws := c.conn.conn
	ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.Websocket, logging.Read, "ws read error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		if err := handle(raw); err != nil {
			return
		}
	}
}

// WritePump owns the write side of the connection and closes it on exit.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.message:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.Websocket, logging.Write, "ws write error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
