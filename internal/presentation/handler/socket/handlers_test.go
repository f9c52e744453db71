package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/application/chat"
	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/auth"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
	"github.com/hilthontt/ticketchat/internal/persistence/memory"
)

const secret = "handler-test-secret"

type frame struct {
	Type     string          `json:"type"`
	TicketID string          `json:"ticketId"`
	Data     json.RawMessage `json:"data"`
}

func token(t *testing.T, userID string) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.PutUser(domain.Identity{ID: "u-alice", Fullname: "Alice Nguyen"})
	store.PutUser(domain.Identity{ID: "u-bob", Fullname: "Bob Tran"})
	store.PutTicket("t1", "u-alice", "u-bob")

	logger := logging.NewNopLogger()
	coordinator := chat.NewCoordinator(chat.Options{
		Verifier: auth.NewJWTVerifier(secret, store, logger),
		Tickets:  store,
		Store:    store,
		Logger:   logger,
	})
	t.Cleanup(coordinator.Close)

	h := NewHandler(coordinator, ws.NewUpgrader(nil), ws.DefaultClientOptions(), logger)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, conn *websocket.Conn, eventType string) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == eventType {
			return f
		}
	}
}

func TestServeWSChatFlow(t *testing.T) {
	srv, store := newServer(t)

	alice := dial(t, srv, "?token="+token(t, "u-alice"))
	next(t, alice, ws.Authenticated)

	bob := dial(t, srv, "")
	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": ws.Authenticate,
		"data": map[string]string{"token": token(t, "u-bob")},
	}))
	next(t, bob, ws.Authenticated)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": ws.JoinTicket, "ticketId": "t1"}))
	next(t, alice, ws.Joined)
	require.NoError(t, bob.WriteJSON(map[string]any{"type": ws.JoinTicket, "ticketId": "t1"}))
	next(t, bob, ws.Joined)
	next(t, alice, ws.UserOnline)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type":     ws.SendMessage,
		"ticketId": "t1",
		"data":     map[string]string{"text": "hello bob", "idempotencyKey": "k1", "clientId": "tmp-1"},
	}))

	var ack ws.AckPayload
	require.NoError(t, json.Unmarshal(next(t, alice, ws.MessageReceived).Data, &ack))
	assert.Equal(t, "tmp-1", ack.ClientID)
	assert.Equal(t, "Alice Nguyen", ack.Message.Sender.Fullname)

	var got domain.PersistedMessage
	require.NoError(t, json.Unmarshal(next(t, bob, ws.NewMessage).Data, &got))
	assert.Equal(t, "hello bob", got.Body)
	assert.Len(t, store.Messages("t1"), 1)

	require.NoError(t, alice.Close())
	var status ws.StatusPayload
	require.NoError(t, json.Unmarshal(next(t, bob, ws.UserStatus).Data, &status))
	assert.Equal(t, ws.StatusOffline, status.Status)
}

func TestServeWSRejectsBadToken(t *testing.T) {
	srv, _ := newServer(t)

	conn := dial(t, srv, "?token=forged")

	var notice ws.ErrorPayload
	require.NoError(t, json.Unmarshal(next(t, conn, ws.ErrorEvent).Data, &notice))
	assert.Equal(t, string(chat.Unauthenticated), notice.Kind)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
