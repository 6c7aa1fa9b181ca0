package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	server "plaza/server"
	"plaza/server/internal/identity"
	"plaza/server/internal/net/intake"
	"plaza/server/internal/net/proto"
	"plaza/server/internal/telemetry"
	"plaza/server/logging"
	lognet "plaza/server/logging/network"
)

// HandlerConfig wires the websocket endpoint's collaborators.
type HandlerConfig struct {
	Resolver  *identity.Resolver
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// Handler upgrades connections, authenticates them, and pumps validated
// commands into the hub until the socket dies.
type Handler struct {
	hub       *server.Hub
	gateway   *Gateway
	resolver  *identity.Resolver
	logger    telemetry.Logger
	publisher logging.Publisher
	upgrader  websocket.Upgrader
}

func NewHandler(hub *server.Hub, gateway *Gateway, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Handler{
		hub:       hub,
		gateway:   gateway,
		resolver:  cfg.Resolver,
		logger:    logger,
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// credentialsFromRequest pulls the bearer token and declared identity from
// the handshake request.
func credentialsFromRequest(r *http.Request) identity.Credentials {
	creds := identity.Credentials{
		UID:      r.URL.Query().Get("uid"),
		Username: r.URL.Query().Get("username"),
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		creds.Token = after
	}
	return creds
}

// Handle authenticates and upgrades one connection, then runs its read loop.
// Authentication failures are refused before the upgrade; once upgraded, the
// connection stays alive until the client leaves or is kicked.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creds := credentialsFromRequest(r)

	id, err := h.resolver.Resolve(creds)
	if err != nil {
		lognet.ConnectionRejected(ctx, h.publisher, creds.UID)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", id.UID, err)
		return
	}

	socketID := uuid.NewString()
	c := h.gateway.register(socketID, ws)
	lognet.ConnectionAccepted(ctx, h.publisher, id.UID, socketID)

	defer func() {
		h.hub.Disconnect(ctx, socketID)
		h.gateway.unregister(socketID)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stopPings := make(chan struct{})
	defer close(stopPings)
	go h.pingLoop(c, stopPings)

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			lognet.MalformedPayload(ctx, h.publisher, id.UID, socketID)
			continue
		}

		cmd, ok := intake.StageClientCommand(msg)
		if !ok {
			// Malformed payloads are dropped without feedback, except a
			// broken join request, which the client is told about.
			if msg.Type == proto.TypeJoin {
				h.hub.RejectJoin(socketID, server.RejectInvalidRequest)
			}
			lognet.MalformedPayload(ctx, h.publisher, id.UID, socketID)
			continue
		}

		switch cmd.Kind {
		case intake.KindJoin:
			h.hub.Join(ctx, id.UID, socketID, cmd.Join.RealmID, cmd.Join.ShareID)
		case intake.KindMove:
			h.hub.Move(ctx, id.UID, cmd.Move.X, cmd.Move.Y)
		case intake.KindTeleport:
			h.hub.Teleport(ctx, id.UID, cmd.Teleport.RoomIndex, cmd.Teleport.X, cmd.Teleport.Y)
		case intake.KindChangeSkin:
			h.hub.ChangeSkin(ctx, id.UID, cmd.Skin.Skin)
		case intake.KindChat:
			h.hub.Chat(ctx, id.UID, cmd.Chat.Message)
		case intake.KindHeartbeat:
			h.hub.Heartbeat(ctx, id.UID, socketID, cmd.Heartbeat.SentAt)
		}
	}
}

func (h *Handler) pingLoop(c *conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
