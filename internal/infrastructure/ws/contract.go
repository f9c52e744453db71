package ws

import (
	"encoding/json"
	"time"

	"github.com/hilthontt/ticketchat/internal/domain"
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Payload structs
type AuthenticatedPayload struct {
	ConnectionID string          `json:"connectionId"`
	User         domain.Identity `json:"user"`
}

type AckPayload struct {
	ClientID string                  `json:"clientId,omitempty"`
	Message  domain.PersistedMessage `json:"message"`
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	Fullname string `json:"fullname,omitempty"`
}

type StatusPayload struct {
	UserID   string `json:"userId"`
	Fullname string `json:"fullname,omitempty"`
	Status   string `json:"status"`
}

type SeenPayload struct {
	UserID    string          `json:"userId"`
	MessageID string          `json:"messageId"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

type MembershipPayload struct {
	ConnectionID string `json:"connectionId"`
}

type PongPayload struct {
	Timestamp string `json:"timestamp"`
}

type ErrorPayload struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	ClientID string `json:"clientId,omitempty"`
}

func NewAuthenticated(connID string, user domain.Identity) *WSMessage {
	return &WSMessage{
		Type: Authenticated,
		Data: AuthenticatedPayload{ConnectionID: connID, User: user},
	}
}

func NewJoined(ticketID, connID string) *WSMessage {
	return &WSMessage{Type: Joined, TicketID: ticketID, Data: MembershipPayload{ConnectionID: connID}}
}

func NewLeft(ticketID, connID string) *WSMessage {
	return &WSMessage{Type: Left, TicketID: ticketID, Data: MembershipPayload{ConnectionID: connID}}
}

func NewNewMessage(msg domain.PersistedMessage) *WSMessage {
	return &WSMessage{Type: NewMessage, TicketID: msg.TicketID, Data: msg}
}

func NewMessageReceived(clientID string, msg domain.PersistedMessage) *WSMessage {
	return &WSMessage{
		Type:     MessageReceived,
		TicketID: msg.TicketID,
		Data:     AckPayload{ClientID: clientID, Message: msg},
	}
}

func NewUserTyping(ticketID string, user domain.Identity) *WSMessage {
	return &WSMessage{
		Type:     UserTyping,
		TicketID: ticketID,
		Data:     TypingPayload{UserID: user.ID, Fullname: user.Fullname},
	}
}

func NewUserStopTyping(ticketID string, user domain.Identity) *WSMessage {
	return &WSMessage{
		Type:     UserStopTyping,
		TicketID: ticketID,
		Data:     TypingPayload{UserID: user.ID, Fullname: user.Fullname},
	}
}

func NewUserOnline(ticketID string, user domain.Identity) *WSMessage {
	return &WSMessage{
		Type:     UserOnline,
		TicketID: ticketID,
		Data:     StatusPayload{UserID: user.ID, Fullname: user.Fullname, Status: StatusOnline},
	}
}

func NewUserOffline(ticketID string, user domain.Identity) *WSMessage {
	return &WSMessage{
		Type:     UserStatus,
		TicketID: ticketID,
		Data:     StatusPayload{UserID: user.ID, Fullname: user.Fullname, Status: StatusOffline},
	}
}

// NewUserStatus answers a checkUserStatus query.
func NewUserStatus(userID string, online bool) *WSMessage {
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	return &WSMessage{Type: UserStatus, Data: StatusPayload{UserID: userID, Status: status}}
}

func NewMessageSeen(ticketID, userID, messageID string, extra json.RawMessage) *WSMessage {
	return &WSMessage{
		Type:     MessageSeen,
		TicketID: ticketID,
		Data:     SeenPayload{UserID: userID, MessageID: messageID, Extra: extra},
	}
}

func NewPong(now time.Time) *WSMessage {
	return &WSMessage{Type: Pong, Data: PongPayload{Timestamp: now.UTC().Format(time.RFC3339)}}
}

func NewError(ticketID, kind, message, clientID string) *WSMessage {
	return &WSMessage{
		Type:     ErrorEvent,
		TicketID: ticketID,
		Data:     ErrorPayload{Kind: kind, Message: message, ClientID: clientID},
	}
}
