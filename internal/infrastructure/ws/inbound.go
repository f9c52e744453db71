package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event type")
)

// InboundEvent is one decoded client frame. The concrete type names the
// event; a type switch dispatches it.
type InboundEvent interface {
	EventType() string
}

type AuthenticateEvent struct {
	Token string `json:"token" validate:"required"`
}

type JoinTicketEvent struct {
	TicketID string `json:"ticketId" validate:"required,max=64"`
}

type LeaveTicketEvent struct {
	TicketID string `json:"ticketId" validate:"required,max=64"`
}

type TypingEvent struct {
	TicketID string `json:"ticketId" validate:"required,max=64"`
	IsTyping bool   `json:"isTyping"`
}

// SendMessageEvent leaves body emptiness to the pipeline so the rejection
// happens after dedup and rate limiting.
type SendMessageEvent struct {
	TicketID       string `json:"ticketId" validate:"required,max=64"`
	Text           string `json:"text"`
	Type           string `json:"type" validate:"max=32"`
	IdempotencyKey string `json:"idempotencyKey" validate:"max=128"`
	ClientID       string `json:"clientId" validate:"max=128"`
}

type MessageSeenEvent struct {
	TicketID  string          `json:"ticketId" validate:"required,max=64"`
	MessageID string          `json:"messageId" validate:"required,max=64"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

type CheckUserStatusEvent struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

type PingEvent struct{}

func (AuthenticateEvent) EventType() string    { return Authenticate }
func (JoinTicketEvent) EventType() string      { return JoinTicket }
func (LeaveTicketEvent) EventType() string     { return LeaveTicket }
func (TypingEvent) EventType() string          { return TypingSignal }
func (SendMessageEvent) EventType() string     { return SendMessage }
func (MessageSeenEvent) EventType() string     { return MessageSeen }
func (CheckUserStatusEvent) EventType() string { return CheckUserStatus }
func (PingEvent) EventType() string            { return Ping }

type inboundFrame struct {
	Type     string          `json:"type"`
	TicketID string          `json:"ticketId"`
	Data     json.RawMessage `json:"data"`
}

// Decode parses a raw frame. Only structural problems are reported here,
// wrapped around ErrMalformedFrame or ErrUnknownEvent; field rules are
// checked separately by the caller.
func Decode(raw []byte) (InboundEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ev InboundEvent
	switch frame.Type {
	case Authenticate:
		ev = &AuthenticateEvent{}
	case JoinTicket:
		ev = &JoinTicketEvent{}
	case LeaveTicket:
		ev = &LeaveTicketEvent{}
	case TypingSignal:
		ev = &TypingEvent{}
	case SendMessage:
		ev = &SendMessageEvent{}
	case MessageSeen:
		ev = &MessageSeenEvent{}
	case CheckUserStatus:
		ev = &CheckUserStatusEvent{}
	case Ping:
		return &PingEvent{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}

	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		if err := json.Unmarshal(frame.Data, ev); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedFrame, frame.Type, err)
		}
	}

	// The envelope ticketId fills in for clients that do not repeat it in data.
	if frame.TicketID != "" {
		setTicketID(ev, frame.TicketID)
	}

	return ev, nil
}

func setTicketID(ev InboundEvent, ticketID string) {
	switch e := ev.(type) {
	case *JoinTicketEvent:
		if e.TicketID == "" {
			e.TicketID = ticketID
		}
	case *LeaveTicketEvent:
		if e.TicketID == "" {
			e.TicketID = ticketID
		}
	case *TypingEvent:
		if e.TicketID == "" {
			e.TicketID = ticketID
		}
	case *SendMessageEvent:
		if e.TicketID == "" {
			e.TicketID = ticketID
		}
	case *MessageSeenEvent:
		if e.TicketID == "" {
			e.TicketID = ticketID
		}
	}
}
