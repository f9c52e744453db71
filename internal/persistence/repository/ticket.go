package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/persistence/db"
)

// ticketParticipants is the slice of a ticket document the chat needs.
type ticketParticipants struct {
	Creator    primitive.ObjectID  `bson:"creator"`
	AssignedTo *primitive.ObjectID `bson:"assignedTo,omitempty"`
}

type messageDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Sender    primitive.ObjectID `bson:"sender"`
	Text      string             `bson:"text"`
	Timestamp time.Time          `bson:"timestamp"`
	Type      string             `bson:"type"`
}

// TicketRepository serves as both the participant directory and the message
// store over the tickets collection, where messages live embedded in their
// ticket.
type TicketRepository struct {
	tickets  *mongo.Collection
	profiles domain.ProfileRepository
}

func NewTicketRepository(database *mongo.Database, profiles domain.ProfileRepository) *TicketRepository {
	return &TicketRepository{
		tickets:  database.Collection(db.TicketsCollection),
		profiles: profiles,
	}
}

func (r *TicketRepository) IsParticipant(ctx context.Context, ticketID, identityID string) (bool, error) {
	ticketOID, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return false, domain.ErrTicketNotFound
	}
	identityOID, err := primitive.ObjectIDFromHex(identityID)
	if err != nil {
		return false, nil
	}

	var t ticketParticipants
	err = r.tickets.FindOne(ctx,
		bson.M{"_id": ticketOID},
		options.FindOne().SetProjection(bson.M{"creator": 1, "assignedTo": 1}),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, domain.ErrTicketNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}

	if t.Creator == identityOID {
		return true, nil
	}
	return t.AssignedTo != nil && *t.AssignedTo == identityOID, nil
}

func (r *TicketRepository) Append(ctx context.Context, ticketID string, msg domain.NewMessage) (*domain.PersistedMessage, error) {
	ticketOID, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, domain.ErrTicketNotFound
	}
	senderOID, err := primitive.ObjectIDFromHex(msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("invalid sender id %q: %w", msg.SenderID, err)
	}

	doc := messageDocument{
		ID:        primitive.NewObjectID(),
		Sender:    senderOID,
		Text:      msg.Body,
		Timestamp: msg.Timestamp.UTC(),
		Type:      msg.Type,
	}

	res, err := r.tickets.UpdateOne(ctx,
		bson.M{"_id": ticketOID},
		bson.M{
			"$push": bson.M{"messages": doc},
			"$set":  bson.M{"updatedAt": doc.Timestamp},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("append message to ticket %s: %w", ticketID, err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrTicketNotFound
	}

	persisted := &domain.PersistedMessage{
		ID:        doc.ID.Hex(),
		TicketID:  ticketID,
		Sender:    domain.Identity{ID: msg.SenderID},
		Body:      doc.Text,
		Type:      doc.Type,
		Timestamp: doc.Timestamp,
	}

	// The message is stored at this point; a missing profile only costs
	// the display fields.
	if r.profiles != nil {
		if sender, err := r.profiles.GetByID(ctx, msg.SenderID); err == nil {
			persisted.Sender = *sender
		}
	}

	return persisted, nil
}

// EnsureIndexes creates the participant lookup indexes.
func (r *TicketRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create ticket indexes: %w", err)
	}
	return nil
}
