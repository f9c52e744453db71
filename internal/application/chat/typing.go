package chat

import (
	"sync"
	"time"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
)

const DefaultTypingTimeout = 5 * time.Second

type typingKey struct {
	ticketID   string
	identityID string
}

func (k typingKey) String() string {
	return k.ticketID + "\x00" + k.identityID
}

type typingEntry struct {
	timer clock.Timer
	user  domain.Identity
}

// typingEmitter receives started (true) and stopped (false) transitions.
type typingEmitter func(ticketID string, user domain.Identity, started bool)

// Typing turns typing signals into debounced started/stopped transitions,
// with at most one pending expiry timer per (ticket, identity). A key's
// lock is held from the state change through its emit, so peers observe
// transitions in the order they happened.
type Typing struct {
	keys    *keyedMutex
	mu      sync.Mutex
	pending map[typingKey]*typingEntry
	timeout time.Duration
	clock   clock.Clock
	emit    typingEmitter
}

func NewTyping(timeout time.Duration, clk clock.Clock, emit typingEmitter) *Typing {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Typing{
		keys:    newKeyedMutex(),
		pending: make(map[typingKey]*typingEntry),
		timeout: timeout,
		clock:   clk,
		emit:    emit,
	}
}

func (t *Typing) SetTyping(ticketID string, user domain.Identity, isTyping bool) {
	if !isTyping {
		t.stop(ticketID, user.ID)
		return
	}

	key := typingKey{ticketID: ticketID, identityID: user.ID}
	entry := &typingEntry{user: user}

	unlock := t.keys.Lock(key.String())
	defer unlock()

	t.mu.Lock()
	prev, wasPending := t.pending[key]
	if wasPending {
		prev.timer.Stop()
	}
	entry.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(key, entry) })
	t.pending[key] = entry
	t.mu.Unlock()

	if !wasPending {
		t.emit(ticketID, user, true)
	}
}

// CancelAll stops every pending timer of identityID in the given tickets,
// emitting stopped for each.
func (t *Typing) CancelAll(identityID string, ticketIDs []string) {
	for _, ticketID := range ticketIDs {
		t.stop(ticketID, identityID)
	}
}

func (t *Typing) IsTyping(ticketID, identityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[typingKey{ticketID: ticketID, identityID: identityID}]
	return ok
}

func (t *Typing) stop(ticketID, identityID string) {
	key := typingKey{ticketID: ticketID, identityID: identityID}

	unlock := t.keys.Lock(key.String())
	defer unlock()

	t.mu.Lock()
	entry, ok := t.pending[key]
	if ok {
		entry.timer.Stop()
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if ok {
		t.emit(ticketID, entry.user, false)
	}
}

// expire runs on timer fire. A timer that was reset or stopped after it
// started firing finds a different entry and does nothing.
func (t *Typing) expire(key typingKey, entry *typingEntry) {
	unlock := t.keys.Lock(key.String())
	defer unlock()

	t.mu.Lock()
	current, ok := t.pending[key]
	if !ok || current != entry {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	t.mu.Unlock()

	t.emit(key.ticketID, entry.user, false)
}
