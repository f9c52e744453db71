package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/contracts"
)

type publisher interface {
	PublishMessage(ctx context.Context, routingKey string, msg contracts.AmqpMessage) error
}

// MessageEventData is the body of a ticket.message.created event.
type MessageEventData struct {
	Message domain.PersistedMessage `json:"message"`
}

// MessagePublisher announces stored chat messages so downstream services
// can notify the other participant.
type MessagePublisher struct {
	rabbitmq publisher
}

func NewMessagePublisher(rabbitmq publisher) *MessagePublisher {
	return &MessagePublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *MessagePublisher) PublishMessageCreated(ctx context.Context, msg domain.PersistedMessage) error {
	payload := MessageEventData{
		Message: msg,
	}

	messageEventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, contracts.EventTicketMessageCreated, contracts.AmqpMessage{
		OwnerID: msg.Sender.ID,
		Data:    messageEventJSON,
	})
}
