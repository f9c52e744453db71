package domain

import (
	"context"
	"time"
)

const DefaultMessageType = "text"

// NewMessage is what the chat layer asks the store to append.
type NewMessage struct {
	SenderID  string
	Body      string
	Type      string
	Timestamp time.Time
}

// PersistedMessage is the canonical copy returned by the store and relayed
// to room members.
type PersistedMessage struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Sender    Identity  `json:"sender"`
	Body      string    `json:"text"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageStore interface {
	Append(ctx context.Context, ticketID string, msg NewMessage) (*PersistedMessage, error)
}

// MessagePublisher forwards stored messages to downstream consumers.
type MessagePublisher interface {
	PublishMessageCreated(ctx context.Context, msg PersistedMessage) error
}
