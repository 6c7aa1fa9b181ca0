package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	server "plaza/server"
	"plaza/server/internal/net/proto"
	"plaza/server/internal/telemetry"
	"plaza/server/logging"
	lognet "plaza/server/logging/network"
)

const (
	writeWait = 10 * time.Second
	// pongWait bounds how long a connection may stay silent; the read
	// deadline is refreshed on every frame and every pong.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// conn is one registered websocket with serialized writes.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Gateway resolves socket ids to live connections and delivers encoded
// events. Delivery is fire-and-forget: a failed write closes the connection
// and lets its read loop run the normal disconnect path.
type Gateway struct {
	mu        sync.RWMutex
	conns     map[string]*conn
	logger    telemetry.Logger
	publisher logging.Publisher
}

func NewGateway(logger telemetry.Logger, publisher logging.Publisher) *Gateway {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Gateway{
		conns:     make(map[string]*conn),
		logger:    logger,
		publisher: publisher,
	}
}

func (g *Gateway) register(socketID string, ws *websocket.Conn) *conn {
	c := &conn{ws: ws}
	g.mu.Lock()
	g.conns[socketID] = c
	g.mu.Unlock()
	return c
}

func (g *Gateway) unregister(socketID string) {
	g.mu.Lock()
	delete(g.conns, socketID)
	g.mu.Unlock()
}

func (g *Gateway) lookup(socketID string) (*conn, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[socketID]
	return c, ok
}

// Send encodes and delivers one event to one socket. Unknown sockets are
// dropped silently; they raced a disconnect.
func (g *Gateway) Send(socketID, eventType string, payload any) {
	c, ok := g.lookup(socketID)
	if !ok {
		return
	}
	data, err := proto.Encode(eventType, payload)
	if err != nil {
		g.logger.Printf("failed to encode %s for %s: %v", eventType, socketID, err)
		return
	}
	if err := c.write(data); err != nil {
		g.logger.Printf("failed to send %s to %s: %v", eventType, socketID, err)
		lognet.SendFailed(context.Background(), g.publisher, socketID, eventType)
		c.ws.Close()
	}
}

// Kick sends the reason to the socket, then closes it. The subsequent read
// error drives the regular disconnect path, which will find the socket
// already superseded and no-op.
func (g *Gateway) Kick(socketID, reason string) {
	c, ok := g.lookup(socketID)
	if !ok {
		return
	}
	if data, err := proto.Encode(proto.TypeKicked, server.KickedPayload{Reason: reason}); err == nil {
		c.write(data)
	}
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	c.mu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, message)
	c.mu.Unlock()
	c.ws.Close()
}
