package domain

import "context"

// TicketDirectory answers whether an identity may take part in a ticket's
// conversation: only its creator and its assigned handler may.
type TicketDirectory interface {
	// IsParticipant returns ErrTicketNotFound when the ticket does not exist.
	IsParticipant(ctx context.Context, ticketID, identityID string) (bool, error)
}
