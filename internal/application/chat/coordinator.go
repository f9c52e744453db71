package chat

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
	"github.com/hilthontt/ticketchat/internal/infrastructure/dedup"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/metrics"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/ticketchat/internal/infrastructure/tracing"
	"github.com/hilthontt/ticketchat/internal/infrastructure/validate"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
)

type Options struct {
	Verifier  domain.IdentityVerifier
	Tickets   domain.TicketDirectory
	Store     domain.MessageStore
	Publisher domain.MessagePublisher // optional

	Dedup     *dedup.Cache
	Limiter   *ratelimiter.SlidingWindow
	Validator *validate.Validator
	Clock     clock.Clock
	Logger    logging.Logger
	Metrics   *metrics.Metrics

	TypingTimeout  time.Duration
	PersistTimeout time.Duration
	MaxBodyLength  int
}

// Coordinator drives every connection from authentication to close. Frames
// of one connection, and its Disconnect, are expected to come from a single
// goroutine.
type Coordinator struct {
	verifier  domain.IdentityVerifier
	tickets   domain.TicketDirectory
	validator *validate.Validator
	clock     clock.Clock
	logger    logging.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	registry *Registry
	rooms    *Rooms
	hub      *hub
	typing   *Typing
	pipeline *Pipeline
}

type Stats struct {
	Connections      int `json:"connections"`
	OnlineIdentities int `json:"onlineIdentities"`
	ActiveRooms      int `json:"activeRooms"`
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Validator == nil {
		opts.Validator = validate.New()
	}
	if opts.Dedup == nil {
		opts.Dedup = dedup.New(dedup.Options{Clock: opts.Clock})
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimiter.NewSlidingWindow(ratelimiter.SlidingWindowOptions{Clock: opts.Clock})
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.MaxBodyLength <= 0 {
		opts.MaxBodyLength = DefaultMaxBodyLength
	}

	c := &Coordinator{
		verifier:  opts.Verifier,
		tickets:   opts.Tickets,
		validator: opts.Validator,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    tracing.GetTracer("ticketchat/chat"),
		registry:  NewRegistry(),
		rooms:     NewRooms(),
		hub:       newHub(),
	}

	c.typing = NewTyping(opts.TypingTimeout, opts.Clock, c.emitTyping)
	c.pipeline = &Pipeline{
		dedup:          opts.Dedup,
		limiter:        opts.Limiter,
		tickets:        opts.Tickets,
		store:          opts.Store,
		publisher:      opts.Publisher,
		clock:          opts.Clock,
		persistTimeout: opts.PersistTimeout,
		maxBodyLength:  opts.MaxBodyLength,
		rooms:          c.rooms,
		hub:            c.hub,
		order:          newKeyedMutex(),
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		tracer:         c.tracer,
	}

	return c
}

func (c *Coordinator) Connect(sink Sink) *Connection {
	conn := &Connection{sink: sink, state: StateConnecting}
	c.hub.add(conn)
	c.metrics.Connections.Set(float64(c.hub.count()))

	c.logger.Debug(logging.Chat, logging.Connect, "connection opened", map[logging.ExtraKey]any{
		logging.ConnectionID: conn.ID(),
	})
	return conn
}

// Authenticate verifies credential and binds the identity to conn. The
// returned error is non-nil when the connection must be closed.
func (c *Coordinator) Authenticate(ctx context.Context, conn *Connection, credential string) error {
	switch conn.State() {
	case StateAuthenticated:
		return c.report(conn, "", "", reject(InvalidInput, "connection is already authenticated", nil))
	case StateClosed:
		return reject(Unauthenticated, "connection is closed", nil)
	}

	if credential == "" {
		return c.report(conn, "", "", reject(Unauthenticated, "missing token", domain.ErrInvalidCredential))
	}

	user, err := c.verifier.Verify(ctx, credential)
	if err != nil {
		return c.report(conn, "", "", reject(Unauthenticated, "authentication failed", err))
	}

	conn.mu.Lock()
	if conn.state != StateConnecting {
		conn.mu.Unlock()
		return nil
	}
	conn.identity = user
	conn.state = StateAuthenticated
	c.registry.Attach(user.ID, conn.ID())
	conn.mu.Unlock()

	c.metrics.OnlineIdentities.Set(float64(c.registry.OnlineCount()))
	conn.send(ws.NewAuthenticated(conn.ID(), *user))

	c.logger.Info(logging.Chat, logging.Connect, "connection authenticated", map[logging.ExtraKey]any{
		logging.ConnectionID: conn.ID(),
		logging.IdentityID:   user.ID,
	})
	return nil
}

// HandleFrame decodes and dispatches one raw inbound frame. A non-nil
// error means the connection must be closed.
func (c *Coordinator) HandleFrame(ctx context.Context, conn *Connection, raw []byte) error {
	ev, err := ws.Decode(raw)
	if err != nil {
		return c.report(conn, "", "", reject(ProtocolFault, "malformed frame", err))
	}
	return c.Handle(ctx, conn, ev)
}

// Handle is the single entry point for decoded inbound events.
func (c *Coordinator) Handle(ctx context.Context, conn *Connection, ev ws.InboundEvent) error {
	c.metrics.InboundEvents.WithLabelValues(ev.EventType()).Inc()

	switch e := ev.(type) {
	case *ws.PingEvent:
		conn.send(ws.NewPong(c.clock.Now()))
		return nil
	case *ws.AuthenticateEvent:
		return c.Authenticate(ctx, conn, e.Token)
	}

	user := conn.Identity()
	if user == nil {
		return c.report(conn, "", "", reject(Unauthenticated, "authenticate before sending "+ev.EventType(), nil))
	}

	if err := c.validator.Struct(ev); err != nil {
		return c.report(conn, ticketOf(ev), clientIDOf(ev), reject(InvalidInput, err.Error(), err))
	}

	switch e := ev.(type) {
	case *ws.JoinTicketEvent:
		return c.report(conn, e.TicketID, "", c.join(ctx, conn, user, e.TicketID))
	case *ws.LeaveTicketEvent:
		c.leave(conn, user, e.TicketID)
		return nil
	case *ws.TypingEvent:
		return c.report(conn, e.TicketID, "", c.setTyping(conn, user, e))
	case *ws.SendMessageEvent:
		_, err := c.pipeline.Send(ctx, conn, SendRequest{
			TicketID:       e.TicketID,
			Body:           e.Text,
			Type:           e.Type,
			IdempotencyKey: e.IdempotencyKey,
			ClientID:       e.ClientID,
		})
		return c.report(conn, e.TicketID, e.ClientID, err)
	case *ws.MessageSeenEvent:
		return c.report(conn, e.TicketID, "", c.relaySeen(conn, user, e))
	case *ws.CheckUserStatusEvent:
		conn.send(ws.NewUserStatus(e.UserID, c.registry.IsOnline(e.UserID)))
		return nil
	}

	return c.report(conn, "", "", reject(ProtocolFault, "unsupported event "+ev.EventType(), nil))
}

// Disconnect releases everything conn holds: typing timers first, then
// room memberships, then the registry entry.
func (c *Coordinator) Disconnect(conn *Connection) {
	conn.mu.Lock()
	if conn.state == StateClosed {
		conn.mu.Unlock()
		return
	}
	conn.state = StateClosed
	user := conn.identity
	conn.mu.Unlock()

	if user != nil {
		joined := c.rooms.RoomsOf(conn.ID())
		c.typing.CancelAll(user.ID, joined)

		for _, ticketID := range joined {
			res := c.rooms.Leave(ticketID, conn.ID())
			if res.Removed && res.LastOfIdentity {
				c.hub.deliver(res.Peers, ws.NewUserOffline(ticketID, *user))
			}
		}

		c.registry.Detach(user.ID, conn.ID())
	}

	c.hub.remove(conn.ID())
	conn.sink.Close()
	c.updateGauges()

	extra := map[logging.ExtraKey]any{logging.ConnectionID: conn.ID()}
	if user != nil {
		extra[logging.IdentityID] = user.ID
	}
	c.logger.Debug(logging.Chat, logging.Disconnect, "connection closed", extra)
}

// Close disconnects every live connection and waits for pending message
// events to reach the publisher. It is safe to call more than once.
func (c *Coordinator) Close() {
	for _, conn := range c.hub.snapshot() {
		c.Disconnect(conn)
	}
	c.pipeline.Drain()
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Connections:      c.hub.count(),
		OnlineIdentities: c.registry.OnlineCount(),
		ActiveRooms:      c.rooms.Count(),
	}
}

func (c *Coordinator) IsOnline(identityID string) bool {
	return c.registry.IsOnline(identityID)
}

func (c *Coordinator) join(ctx context.Context, conn *Connection, user *domain.Identity, ticketID string) error {
	ctx, span := c.tracer.Start(ctx, "chat.join", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("identity.id", user.ID),
	))
	defer span.End()

	if err := checkParticipant(ctx, c.tickets, ticketID, user.ID); err != nil {
		return err
	}

	// Disconnect flips the state under the write lock, so a join that lost
	// the race with it must not leave a member behind.
	conn.mu.RLock()
	if conn.state == StateClosed {
		conn.mu.RUnlock()
		return reject(Unauthenticated, "connection is closed", nil)
	}
	res := c.rooms.Join(ticketID, conn.ID(), user.ID)
	conn.mu.RUnlock()

	conn.send(ws.NewJoined(ticketID, conn.ID()))
	if !res.Added {
		return nil
	}

	if res.FirstOfIdentity {
		c.hub.deliver(res.Peers, ws.NewUserOnline(ticketID, *user))
	}
	c.metrics.ActiveRooms.Set(float64(c.rooms.Count()))

	c.logger.Debug(logging.Chat, logging.Join, "joined ticket room", map[logging.ExtraKey]any{
		logging.ConnectionID: conn.ID(),
		logging.IdentityID:   user.ID,
		logging.TicketID:     ticketID,
	})
	return nil
}

// leave is a no-op for a room the connection is not in.
func (c *Coordinator) leave(conn *Connection, user *domain.Identity, ticketID string) {
	res := c.rooms.Leave(ticketID, conn.ID())
	if !res.Removed {
		return
	}
	conn.send(ws.NewLeft(ticketID, conn.ID()))

	if res.LastOfIdentity {
		c.typing.CancelAll(user.ID, []string{ticketID})
		c.hub.deliver(res.Peers, ws.NewUserOffline(ticketID, *user))
	}
	c.metrics.ActiveRooms.Set(float64(c.rooms.Count()))

	c.logger.Debug(logging.Chat, logging.Leave, "left ticket room", map[logging.ExtraKey]any{
		logging.ConnectionID: conn.ID(),
		logging.IdentityID:   user.ID,
		logging.TicketID:     ticketID,
	})
}

func (c *Coordinator) setTyping(conn *Connection, user *domain.Identity, e *ws.TypingEvent) error {
	if !c.rooms.IsMember(e.TicketID, conn.ID()) {
		return reject(PermissionDenied, "join the ticket before sending typing signals", nil)
	}
	c.typing.SetTyping(e.TicketID, *user, e.IsTyping)
	return nil
}

func (c *Coordinator) relaySeen(conn *Connection, user *domain.Identity, e *ws.MessageSeenEvent) error {
	if !c.rooms.IsMember(e.TicketID, conn.ID()) {
		return reject(PermissionDenied, "join the ticket before sending read receipts", nil)
	}
	c.hub.deliver(c.rooms.MembersExcept(e.TicketID, conn.ID()), ws.NewMessageSeen(e.TicketID, user.ID, e.MessageID, e.Extra))
	return nil
}

func (c *Coordinator) emitTyping(ticketID string, user domain.Identity, started bool) {
	msg := ws.NewUserStopTyping(ticketID, user)
	if started {
		msg = ws.NewUserTyping(ticketID, user)
	}
	c.hub.deliver(c.rooms.Peers(ticketID, user.ID), msg)
}

// report turns err into a notice for conn and returns it again only when
// the connection has to close.
func (c *Coordinator) report(conn *Connection, ticketID, clientID string, err error) error {
	if err == nil {
		return nil
	}

	var r *Rejection
	if !errors.As(err, &r) {
		r = reject(StorageFailure, "internal error", err)
	}

	c.metrics.Rejections.WithLabelValues(string(r.Kind)).Inc()

	extra := map[logging.ExtraKey]any{
		logging.ConnectionID: conn.ID(),
		logging.TicketID:     ticketID,
		logging.Reason:       string(r.Kind),
		logging.ErrorMessage: r.Error(),
	}
	if user := conn.Identity(); user != nil {
		extra[logging.IdentityID] = user.ID
	}

	if r.Silent() {
		c.logger.Debug(logging.Chat, logging.Rejected, "duplicate send dropped", extra)
		return nil
	}

	if r.Fatal() {
		c.logger.Warn(logging.Chat, logging.Rejected, "closing connection", extra)
	} else {
		c.logger.Info(logging.Chat, logging.Rejected, "request rejected", extra)
	}

	conn.send(ws.NewError(ticketID, string(r.Kind), r.Message, clientID))

	if r.Fatal() {
		return r
	}
	return nil
}

func (c *Coordinator) updateGauges() {
	c.metrics.Connections.Set(float64(c.hub.count()))
	c.metrics.OnlineIdentities.Set(float64(c.registry.OnlineCount()))
	c.metrics.ActiveRooms.Set(float64(c.rooms.Count()))
}

func ticketOf(ev ws.InboundEvent) string {
	switch e := ev.(type) {
	case *ws.JoinTicketEvent:
		return e.TicketID
	case *ws.LeaveTicketEvent:
		return e.TicketID
	case *ws.TypingEvent:
		return e.TicketID
	case *ws.SendMessageEvent:
		return e.TicketID
	case *ws.MessageSeenEvent:
		return e.TicketID
	}
	return ""
}

func clientIDOf(ev ws.InboundEvent) string {
	if e, ok := ev.(*ws.SendMessageEvent); ok {
		return e.ClientID
	}
	return ""
}
