package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/application/chat"
)

type fixedStats chat.Stats

func (f fixedStats) Stats() chat.Stats { return chat.Stats(f) }

func TestGetHealth(t *testing.T) {
	h := NewHandler(fixedStats{Connections: 3, OnlineIdentities: 2, ActiveRooms: 1})

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, chat.Stats{Connections: 3, OnlineIdentities: 2, ActiveRooms: 1}, body.Chat)

	h.SetUnhealthy()
	rec = httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}
