package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
	"github.com/hilthontt/ticketchat/internal/infrastructure/dedup"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
)

var epoch = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

var (
	alice = domain.Identity{ID: "u-alice", Fullname: "Alice Nguyen"}
	bob   = domain.Identity{ID: "u-bob", Fullname: "Bob Tran"}
	carol = domain.Identity{ID: "u-carol", Fullname: "Carol Le"}
)

type recordingSink struct {
	id     string
	mu     sync.Mutex
	msgs   []*ws.WSMessage
	closed bool
}

func newSink(id string) *recordingSink {
	return &recordingSink{id: id}
}

func (s *recordingSink) ID() string { return s.id }

func (s *recordingSink) Send(msg *ws.WSMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (s *recordingSink) ofType(eventType string) []*ws.WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ws.WSMessage
	for _, m := range s.msgs {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSink) errorKinds() []string {
	var kinds []string
	for _, m := range s.ofType(ws.ErrorEvent) {
		kinds = append(kinds, m.Data.(ws.ErrorPayload).Kind)
	}
	return kinds
}

// bodies lists the message bodies of every ack and broadcast, in arrival order.
func (s *recordingSink) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, m := range s.msgs {
		switch data := m.Data.(type) {
		case ws.AckPayload:
			out = append(out, m.Type+":"+data.Message.Body)
		case domain.PersistedMessage:
			out = append(out, m.Type+":"+data.Body)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

type fakeVerifier map[string]domain.Identity

func (f fakeVerifier) Verify(_ context.Context, credential string) (*domain.Identity, error) {
	user, ok := f[credential]
	if !ok {
		return nil, domain.ErrInvalidCredential
	}
	return &user, nil
}

type fakeTickets struct {
	mu           sync.Mutex
	participants map[string]map[string]bool
	err          error
	// When gate is set, lookups announce themselves on entered and wait.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeTickets) IsParticipant(_ context.Context, ticketID, identityID string) (bool, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}
	members, ok := f.participants[ticketID]
	if !ok {
		return false, domain.ErrTicketNotFound
	}
	return members[identityID], nil
}

func (f *fakeTickets) set(ticketID string, identityIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := make(map[string]bool, len(identityIDs))
	for _, id := range identityIDs {
		members[id] = true
	}
	f.participants[ticketID] = members
}

type fakeStore struct {
	mu       sync.Mutex
	messages []domain.PersistedMessage
	err      error
	block    chan struct{}
	// entered, when set, receives the body of every append as it starts.
	entered chan string
}

func (f *fakeStore) Append(ctx context.Context, ticketID string, msg domain.NewMessage) (*domain.PersistedMessage, error) {
	f.mu.Lock()
	block, err, entered := f.block, f.err, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- msg.Body
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stored := domain.PersistedMessage{
		ID:        fmt.Sprintf("m%d", len(f.messages)+1),
		TicketID:  ticketID,
		Sender:    domain.Identity{ID: msg.SenderID},
		Body:      msg.Body,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
	}
	f.messages = append(f.messages, stored)
	return &stored, nil
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Body)
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.PersistedMessage
	block     chan struct{}
}

func (f *fakePublisher) PublishMessageCreated(_ context.Context, msg domain.PersistedMessage) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type harness struct {
	coord     *Coordinator
	clock     *clock.Fake
	tickets   *fakeTickets
	store     *fakeStore
	publisher *fakePublisher
	nextConn  int
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()

	fake := clock.NewFake(epoch)
	cache := dedup.New(dedup.Options{Clock: fake})
	limiter := ratelimiter.NewSlidingWindow(ratelimiter.SlidingWindowOptions{Clock: fake})
	t.Cleanup(func() {
		_ = cache.Close()
		limiter.Close()
	})

	h := &harness{
		clock:     fake,
		tickets:   &fakeTickets{participants: make(map[string]map[string]bool)},
		store:     &fakeStore{},
		publisher: &fakePublisher{},
	}
	h.tickets.set("t1", alice.ID, bob.ID)
	h.tickets.set("t2", alice.ID)
	h.tickets.set("t3", alice.ID, bob.ID)

	opts := Options{
		Verifier:  fakeVerifier{"alice-token": alice, "bob-token": bob, "carol-token": carol},
		Tickets:   h.tickets,
		Store:     h.store,
		Publisher: h.publisher,
		Dedup:     cache,
		Limiter:   limiter,
		Clock:     fake,
	}
	for _, fn := range tweak {
		fn(&opts)
	}

	h.coord = NewCoordinator(opts)
	return h
}

func (h *harness) connect(t *testing.T, token string) (*Connection, *recordingSink) {
	t.Helper()

	h.nextConn++
	sink := newSink(fmt.Sprintf("c%d", h.nextConn))
	conn := h.coord.Connect(sink)
	require.NoError(t, h.coord.Authenticate(context.Background(), conn, token))
	return conn, sink
}

func (h *harness) frame(t *testing.T, conn *Connection, raw string) error {
	t.Helper()
	return h.coord.HandleFrame(context.Background(), conn, []byte(raw))
}

func (h *harness) join(t *testing.T, conn *Connection, ticketID string) {
	t.Helper()
	require.NoError(t, h.coord.Handle(context.Background(), conn, &ws.JoinTicketEvent{TicketID: ticketID}))
	require.True(t, h.coord.rooms.IsMember(ticketID, conn.ID()), "join %s", ticketID)
}

func (h *harness) send(t *testing.T, conn *Connection, ticketID, text, key string) {
	t.Helper()
	require.NoError(t, h.coord.Handle(context.Background(), conn, &ws.SendMessageEvent{
		TicketID:       ticketID,
		Text:           text,
		IdempotencyKey: key,
		ClientID:       "tmp-" + key,
	}))
}

func (h *harness) typing(t *testing.T, conn *Connection, ticketID string, isTyping bool) {
	t.Helper()
	require.NoError(t, h.coord.Handle(context.Background(), conn, &ws.TypingEvent{TicketID: ticketID, IsTyping: isTyping}))
}
