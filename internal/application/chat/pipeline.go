package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
	"github.com/hilthontt/ticketchat/internal/infrastructure/dedup"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/metrics"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
)

const (
	DefaultPersistTimeout = 5 * time.Second
	DefaultMaxBodyLength  = 5000
	publishTimeout        = 5 * time.Second
)

type SendRequest struct {
	TicketID       string
	Body           string
	Type           string
	IdempotencyKey string
	// ClientID is echoed back in the ack so the client can reconcile its
	// optimistic copy.
	ClientID string
}

// Pipeline runs a send through dedup, rate limiting, validation, the
// permission re-check and persistence, then acks and broadcasts it.
// Sends of one identity are serialized end to end.
type Pipeline struct {
	dedup          *dedup.Cache
	limiter        *ratelimiter.SlidingWindow
	tickets        domain.TicketDirectory
	store          domain.MessageStore
	publisher      domain.MessagePublisher
	clock          clock.Clock
	persistTimeout time.Duration
	maxBodyLength  int

	rooms   *Rooms
	hub     *hub
	order   *keyedMutex
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	// inflight tracks event publishes; closed refuses new ones once Drain
	// has started.
	publishMu sync.Mutex
	closed    bool
	inflight  sync.WaitGroup
}

func (p *Pipeline) Send(ctx context.Context, conn *Connection, req SendRequest) (*domain.PersistedMessage, error) {
	user := conn.Identity()
	if user == nil {
		return nil, reject(Unauthenticated, "authenticate before sending", nil)
	}

	unlock := p.order.Lock(user.ID)
	defer unlock()

	ctx, span := p.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("ticket.id", req.TicketID),
		attribute.String("identity.id", user.ID),
	))
	defer span.End()

	msg, err := p.send(ctx, conn, user, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return msg, nil
}

func (p *Pipeline) send(ctx context.Context, conn *Connection, user *domain.Identity, req SendRequest) (*domain.PersistedMessage, error) {
	// Keys are scoped per identity so two users cannot collide.
	var dedupKey string
	if req.IdempotencyKey != "" {
		dedupKey = user.ID + ":" + req.IdempotencyKey
		if !p.dedup.TryClaim(dedupKey) {
			return nil, reject(Duplicate, "message already received", nil)
		}
	}

	msg, err := p.accept(ctx, user, req)
	if err != nil {
		// A rejected send never happened, so a retry with the same key must
		// be allowed through.
		p.dedup.Release(dedupKey)
		return nil, err
	}

	conn.send(ws.NewMessageReceived(req.ClientID, *msg))
	p.hub.deliver(p.rooms.MembersExcept(req.TicketID, conn.ID()), ws.NewNewMessage(*msg))
	p.metrics.MessagesSent.Inc()

	if p.publisher != nil {
		p.startPublish(context.WithoutCancel(ctx), *msg)
	}

	return msg, nil
}

func (p *Pipeline) accept(ctx context.Context, user *domain.Identity, req SendRequest) (*domain.PersistedMessage, error) {
	now := p.clock.Now()

	if !p.limiter.Allow(user.ID, now) {
		return nil, reject(RateLimited, "you are sending messages too quickly, please slow down", nil)
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, reject(InvalidInput, "message text is empty", nil)
	}
	if utf8.RuneCountInString(body) > p.maxBodyLength {
		return nil, reject(InvalidInput, fmt.Sprintf("message text exceeds %d characters", p.maxBodyLength), nil)
	}

	msgType := strings.TrimSpace(req.Type)
	if msgType == "" {
		msgType = domain.DefaultMessageType
	}

	if err := checkParticipant(ctx, p.tickets, req.TicketID, user.ID); err != nil {
		return nil, err
	}

	persistCtx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()

	start := time.Now()
	msg, err := p.store.Append(persistCtx, req.TicketID, domain.NewMessage{
		SenderID:  user.ID,
		Body:      body,
		Type:      msgType,
		Timestamp: now,
	})
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil, reject(NotFound, "ticket not found", err)
		}
		p.logger.Error(logging.Chat, logging.Send, "failed to persist message", map[logging.ExtraKey]any{
			logging.TicketID:     req.TicketID,
			logging.IdentityID:   user.ID,
			logging.ErrorMessage: err.Error(),
		})
		return nil, reject(StorageFailure, "message could not be saved, please retry", err)
	}

	// Stores that do not load profiles return the sender id only.
	if msg.Sender.Fullname == "" {
		msg.Sender = *user
	}
	return msg, nil
}

func (p *Pipeline) startPublish(ctx context.Context, msg domain.PersistedMessage) {
	p.publishMu.Lock()
	if p.closed {
		p.publishMu.Unlock()
		p.logger.Warn(logging.RabbitMQ, logging.Publish, "shutting down, message event not published", map[logging.ExtraKey]any{
			logging.MessageID: msg.ID,
			logging.TicketID:  msg.TicketID,
		})
		return
	}
	p.inflight.Add(1)
	p.publishMu.Unlock()

	go func() {
		defer p.inflight.Done()
		p.publish(ctx, msg)
	}()
}

// Drain refuses further event publishes and waits for the ones in flight.
func (p *Pipeline) Drain() {
	p.publishMu.Lock()
	p.closed = true
	p.publishMu.Unlock()

	p.inflight.Wait()
}

func (p *Pipeline) publish(ctx context.Context, msg domain.PersistedMessage) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.publisher.PublishMessageCreated(ctx, msg); err != nil {
		p.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish message event", map[logging.ExtraKey]any{
			logging.MessageID:    msg.ID,
			logging.TicketID:     msg.TicketID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// checkParticipant maps the directory answer onto a rejection.
func checkParticipant(ctx context.Context, tickets domain.TicketDirectory, ticketID, identityID string) error {
	ok, err := tickets.IsParticipant(ctx, ticketID, identityID)
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return reject(NotFound, "ticket not found", err)
	case err != nil:
		return reject(StorageFailure, "could not verify ticket access, please retry", err)
	case !ok:
		return reject(PermissionDenied, "only the ticket creator or its assignee can take part in this chat", nil)
	}
	return nil
}
