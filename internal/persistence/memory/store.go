package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hilthontt/ticketchat/internal/domain"
)

type ticket struct {
	creator    string
	assignedTo string
	messages   []domain.PersistedMessage
}

// Store keeps tickets, their messages and user profiles in process memory.
// It backs local development and tests when no MongoDB is configured.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*ticket
	users   map[string]domain.Identity
}

func NewStore() *Store {
	return &Store{
		tickets: make(map[string]*ticket),
		users:   make(map[string]domain.Identity),
	}
}

// PutTicket creates or replaces the participants of a ticket, keeping its
// messages.
func (s *Store) PutTicket(ticketID, creator, assignedTo string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tickets[ticketID]; ok {
		t.creator, t.assignedTo = creator, assignedTo
		return
	}
	s.tickets[ticketID] = &ticket{creator: creator, assignedTo: assignedTo}
}

func (s *Store) PutUser(user domain.Identity) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

func (s *Store) IsParticipant(_ context.Context, ticketID, identityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return false, domain.ErrTicketNotFound
	}
	return identityID != "" && (t.creator == identityID || t.assignedTo == identityID), nil
}

func (s *Store) Append(ctx context.Context, ticketID string, msg domain.NewMessage) (*domain.PersistedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}

	sender, ok := s.users[msg.SenderID]
	if !ok {
		sender = domain.Identity{ID: msg.SenderID}
	}

	stored := domain.PersistedMessage{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Sender:    sender,
		Body:      msg.Body,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
	}
	t.messages = append(t.messages, stored)
	return &stored, nil
}

// Messages returns a copy of a ticket's history in append order.
func (s *Store) Messages(ticketID string) []domain.PersistedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil
	}
	return append([]domain.PersistedMessage(nil), t.messages...)
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}
