package contracts

import "encoding/json"

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	OwnerID string          `json:"ownerId"`
	Data    json.RawMessage `json:"data"`
}

// Routing keys
const (
	EventTicketMessageCreated = "ticket.message.created"
)
