package messaging

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/infrastructure/contracts"
)

func TestPublishMessageRoundTrip(t *testing.T) {
	uri := os.Getenv("TEST_RABBITMQ_URI")
	if uri == "" {
		t.Skip("TEST_RABBITMQ_URI not set")
	}

	rmq, err := NewRabbitMQ(uri, "ticketchat_test")
	require.NoError(t, err)
	defer rmq.Close()

	_, err = rmq.Channel.QueuePurge(TicketMessagesQueue, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := contracts.AmqpMessage{OwnerID: "u-alice", Data: json.RawMessage(`{"id":"m1"}`)}
	require.NoError(t, rmq.PublishMessage(ctx, contracts.EventTicketMessageCreated, sent))

	var got contracts.AmqpMessage
	require.Eventually(t, func() bool {
		delivery, ok, err := rmq.Channel.Get(TicketMessagesQueue, true)
		if err != nil || !ok {
			return false
		}
		return json.Unmarshal(delivery.Body, &got) == nil
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, sent.OwnerID, got.OwnerID)
	assert.JSONEq(t, string(sent.Data), string(got.Data))
}
