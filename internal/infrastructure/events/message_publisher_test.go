package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/contracts"
)

type recordingPublisher struct {
	routingKey string
	msg        contracts.AmqpMessage
	err        error
}

func (r *recordingPublisher) PublishMessage(_ context.Context, routingKey string, msg contracts.AmqpMessage) error {
	r.routingKey = routingKey
	r.msg = msg
	return r.err
}

func TestPublishMessageCreated(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewMessagePublisher(rec)

	msg := domain.PersistedMessage{
		ID:        "m1",
		TicketID:  "t1",
		Sender:    domain.Identity{ID: "u-alice", Fullname: "Alice Nguyen"},
		Body:      "hello",
		Type:      "text",
		Timestamp: time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishMessageCreated(context.Background(), msg))

	assert.Equal(t, contracts.EventTicketMessageCreated, rec.routingKey)
	assert.Equal(t, "u-alice", rec.msg.OwnerID)

	var data MessageEventData
	require.NoError(t, json.Unmarshal(rec.msg.Data, &data))
	assert.Equal(t, msg, data.Message)
}

func TestPublishMessageCreatedError(t *testing.T) {
	p := NewMessagePublisher(&recordingPublisher{err: errors.New("channel closed")})

	err := p.PublishMessageCreated(context.Background(), domain.PersistedMessage{ID: "m1"})
	assert.EqualError(t, err, "channel closed")
}
