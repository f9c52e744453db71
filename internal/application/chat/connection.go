package chat

import (
	"sync"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
)

// Sink is the outbound side of one transport connection.
type Sink interface {
	ID() string
	// Send queues msg without blocking.
	Send(msg *ws.WSMessage) bool
	// Close flushes queued frames and closes the transport.
	Close()
}

type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Connection is one live client. Room membership lives in Rooms.
type Connection struct {
	sink Sink

	mu       sync.RWMutex
	identity *domain.Identity
	state    State
}

func (c *Connection) ID() string {
	return c.sink.ID()
}

// Identity is nil until the connection authenticates.
func (c *Connection) Identity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) send(msg *ws.WSMessage) {
	c.sink.Send(msg)
}

// hub routes frames to connections by id.
type hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func newHub() *hub {
	return &hub{conns: make(map[string]*Connection)}
}

func (h *hub) add(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
}

func (h *hub) remove(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *hub) snapshot() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *hub) deliver(connIDs []string, msg *ws.WSMessage) {
	if len(connIDs) == 0 {
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(msg)
	}
}
