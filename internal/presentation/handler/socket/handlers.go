package socket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hilthontt/ticketchat/internal/application/chat"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
	"github.com/hilthontt/ticketchat/internal/presentation/utils"
)

type Handler struct {
	coordinator *chat.Coordinator
	upgrader    *websocket.Upgrader
	options     ws.ClientOptions
	logger      logging.Logger
}

func NewHandler(coordinator *chat.Coordinator, upgrader *websocket.Upgrader, options ws.ClientOptions, logger logging.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		upgrader:    upgrader,
		options:     options,
		logger:      logger,
	}
}

// ServeWS upgrades the request and runs the connection until either side
// closes it. A credential on the handshake authenticates the connection
// right away; otherwise the client must send an authenticate frame first.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.Websocket, logging.Connect, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, uuid.NewString(), h.options, h.logger)
	go client.WritePump()

	ctx := r.Context()
	c := h.coordinator.Connect(client)
	defer h.coordinator.Disconnect(c)

	if token := utils.CredentialFromRequest(r); token != "" {
		if err := h.coordinator.Authenticate(ctx, c, token); err != nil {
			return
		}
	}

	client.ReadPump(func(raw []byte) error {
		return h.coordinator.HandleFrame(ctx, c, raw)
	})
}
