package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"plaza/server/internal/directory"
	"plaza/server/internal/identity"
	"plaza/server/internal/net/proto"
	"plaza/server/internal/telemetry"
	"plaza/server/logging"
	"plaza/server/logging/presence"
)

// Gateway is the fan-out boundary. The hub emits addressed intents; the
// transport resolves socket ids to live connections and delivers with
// fire-and-forget, at-most-once semantics. Kick additionally closes the
// connection after the reason is sent.
type Gateway interface {
	Send(socketID, eventType string, payload any)
	Kick(socketID, reason string)
}

// HubConfig carries the hub's collaborators. Registries are injected here
// rather than living as package state so their lifecycles stay visible:
// identities are populated at handshake and purged on disconnect, the
// joining guard exists only while a join is in flight.
type HubConfig struct {
	Store      *Store
	Directory  directory.Directory
	Identities *identity.Registry
	Gateway    Gateway
	Logger     telemetry.Logger
	Publisher  logging.Publisher
}

// Hub is the session orchestrator: the single entry point for join, move,
// teleport, skin, chat, disconnect, and externally-triggered termination.
// It owns the per-uid joining guard and is the only writer of realm state,
// through the Store.
type Hub struct {
	store      *Store
	directory  directory.Directory
	identities *identity.Registry
	gateway    Gateway
	logger     telemetry.Logger
	publisher  logging.Publisher

	mu      sync.Mutex
	joining map[string]struct{}
}

func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		store:      cfg.Store,
		directory:  cfg.Directory,
		identities: cfg.Identities,
		gateway:    cfg.Gateway,
		logger:     logger,
		publisher:  publisher,
		joining:    make(map[string]struct{}),
	}
}

// Store exposes the realm store for diagnostics endpoints.
func (h *Hub) Store() *Store {
	return h.store
}

// beginJoin acquires the per-uid joining guard. It must be taken before any
// external lookup starts so rapid duplicate joins from the same uid cannot
// interleave.
func (h *Hub) beginJoin(uid string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, inFlight := h.joining[uid]; inFlight {
		return false
	}
	h.joining[uid] = struct{}{}
	return true
}

func (h *Hub) endJoin(uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.joining, uid)
}

// RejectJoin surfaces a join failure to one socket without touching state.
// Also used by the transport for join payloads that fail shape validation.
func (h *Hub) RejectJoin(socketID, reason string) {
	h.gateway.Send(socketID, proto.TypeFailedToJoin, FailedToJoinPayload{Reason: reason})
}

// Join runs the full join sequence for an authenticated connection: guard
// acquisition, capacity precheck, realm lookup, access control, session
// creation, duplicate-session displacement, spawn placement, and the
// resulting announcements. Every exit path owned by this attempt releases
// the guard; losing the guard race releases nothing, since the flag belongs
// to the join still in flight.
func (h *Hub) Join(ctx context.Context, uid, socketID, realmID, shareID string) {
	if !h.beginJoin(uid) {
		h.RejectJoin(socketID, RejectAlreadyJoining)
		return
	}
	defer h.endJoin(uid)

	if h.store.PlayerCount(realmID) >= h.store.Capacity() {
		h.RejectJoin(socketID, RejectRealmFull)
		return
	}

	realm, err := h.directory.LookupRealm(ctx, realmID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			h.logger.Printf("realm lookup failed for %s: %v", realmID, err)
		}
		h.RejectJoin(socketID, RejectRealmNotFound)
		return
	}

	if realm.OwnerID != uid {
		if realm.OwnerOnly {
			h.RejectJoin(socketID, RejectRealmPrivate)
			return
		}
		if realm.ShareID != shareID {
			h.RejectJoin(socketID, RejectStaleShareLink)
			return
		}
	}

	displayName, skin := h.resolveAppearance(ctx, uid)

	if !h.store.HasSession(realmID) {
		mapData, err := ParseMapData(realm.MapData)
		if err != nil {
			h.logger.Printf("unusable map data for realm %s: %v", realmID, err)
			h.RejectJoin(socketID, RejectRealmNotFound)
			return
		}
		h.store.CreateSession(realmID, mapData)
		presence.RealmCreated(ctx, h.publisher, realmID)
	}

	result, err := h.store.AddPlayer(socketID, realmID, uid, displayName, skin)
	if err != nil {
		if errors.Is(err, ErrRealmFull) {
			h.RejectJoin(socketID, RejectRealmFull)
		} else {
			h.RejectJoin(socketID, RejectRealmNotFound)
		}
		return
	}

	if result.Kick != nil {
		h.deliverDisplacement(ctx, uid, result.Kick)
	}

	h.gateway.Send(socketID, proto.TypeJoinedRealm, JoinedRealmPayload{Player: result.Player})
	for _, peer := range result.RoomSockets {
		h.gateway.Send(peer, proto.TypePlayerJoinedRoom, result.Player)
	}
	h.sendProximity(result.Proximity)

	presence.PlayerJoined(ctx, h.publisher, realmID, uid, result.Player.RoomIndex)
	h.logger.Printf("player %s joined realm %s room %d", uid, realmID, result.Player.RoomIndex)
}

// deliverDisplacement announces a displaced prior session: departure to the
// old room, regrouping there, and the kick itself. The store has already
// committed the swap; this is transport-only work.
func (h *Hub) deliverDisplacement(ctx context.Context, uid string, kick *KickNotice) {
	for _, peer := range kick.RoomSockets {
		h.gateway.Send(peer, proto.TypePlayerLeftRoom, PlayerLeftPayload{UID: uid})
	}
	h.sendProximity(kick.Proximity)
	h.gateway.Kick(kick.SocketID, KickDuplicateLogin)
	if kick.RealmEvicted {
		presence.RealmEvicted(ctx, h.publisher, kick.RealmID)
	}
	presence.PlayerKicked(ctx, h.publisher, kick.RealmID, uid, KickDuplicateLogin)
}

// Move applies a position update and fans out the new coordinates to the
// room plus targeted proximity notices. Unknown uids are a silent no-op: a
// move can legitimately arrive after its sender disconnected.
func (h *Hub) Move(ctx context.Context, uid string, x, y float64) {
	result, ok := h.store.MovePlayer(uid, x, y)
	if !ok {
		return
	}
	payload := MovedPayload{UID: uid, X: result.Player.X, Y: result.Player.Y}
	for _, peer := range result.RoomSockets {
		h.gateway.Send(peer, proto.TypePlayerMoved, payload)
	}
	h.sendProximity(result.Proximity)
}

// Teleport relocates a player. Crossing rooms announces a departure/arrival
// pair; staying in place degenerates to a move published under the distinct
// teleport event so clients can tell it from continuous motion.
func (h *Hub) Teleport(ctx context.Context, uid string, roomIndex int, x, y float64) {
	result, ok := h.store.TeleportPlayer(uid, roomIndex, x, y)
	if !ok {
		return
	}

	if result.ChangedRoom {
		for _, peer := range result.OldRoomSockets {
			h.gateway.Send(peer, proto.TypePlayerLeftRoom, PlayerLeftPayload{UID: uid})
		}
		for _, peer := range result.NewRoomSockets {
			h.gateway.Send(peer, proto.TypePlayerJoinedRoom, result.Player)
		}
	} else {
		payload := MovedPayload{UID: uid, X: result.Player.X, Y: result.Player.Y}
		for _, peer := range result.NewRoomSockets {
			h.gateway.Send(peer, proto.TypePlayerTeleported, payload)
		}
	}
	h.sendProximity(result.Proximity)
}

// ChangeSkin updates avatar metadata and rebroadcasts it to the room.
func (h *Hub) ChangeSkin(ctx context.Context, uid, skin string) {
	result, ok := h.store.ChangeSkin(uid, skin)
	if !ok {
		return
	}
	payload := SkinPayload{UID: uid, Skin: result.Player.Skin}
	for _, peer := range result.RoomSockets {
		h.gateway.Send(peer, proto.TypePlayerChangedSkin, payload)
	}
}

// Chat normalizes and fans a message out to the sender's room. Oversized or
// blank messages are dropped without feedback.
func (h *Hub) Chat(ctx context.Context, uid, message string) {
	normalized, ok := NormalizeChatMessage(message)
	if !ok {
		return
	}
	peers, ok := h.store.RoomSocketsFor(uid)
	if !ok {
		return
	}
	payload := MessagePayload{UID: uid, Message: normalized}
	for _, peer := range peers {
		h.gateway.Send(peer, proto.TypeReceiveMessage, payload)
	}
}

// Heartbeat refreshes liveness and echoes timing back to the sender.
func (h *Hub) Heartbeat(ctx context.Context, uid, socketID string, sentAt int64) {
	now := time.Now()
	rtt, ok := h.store.RecordHeartbeat(uid, now, sentAt)
	if !ok {
		return
	}
	h.gateway.Send(socketID, proto.TypeHeartbeatAck, proto.HeartbeatAck{
		ServerTime: now.UnixMilli(),
		ClientTime: sentAt,
		RTTMillis:  rtt.Milliseconds(),
	})
}

// Disconnect handles a closed connection. When the socket was already
// superseded by a kick the logout is a no-op and nothing is announced; the
// identity entry then belongs to the replacement connection and stays.
func (h *Hub) Disconnect(ctx context.Context, socketID string) {
	result, ok := h.store.LogOutBySocketID(socketID)
	if !ok {
		return
	}
	for _, peer := range result.RoomSockets {
		h.gateway.Send(peer, proto.TypePlayerLeftRoom, PlayerLeftPayload{UID: result.UID})
	}
	h.sendProximity(result.Proximity)
	h.identities.Remove(result.UID)

	if result.RealmEvicted {
		presence.RealmEvicted(ctx, h.publisher, result.RealmID)
	}
	presence.PlayerLeft(ctx, h.publisher, result.RealmID, result.UID)
	h.logger.Printf("player %s left realm %s", result.UID, result.RealmID)
}

// TerminateRealm force-disconnects every occupant with the given reason and
// deallocates the session. Driven by realm-changed and realm-deleted pushes
// from the system of record, never by players.
func (h *Hub) TerminateRealm(ctx context.Context, realmID, reason string) {
	removed := h.store.TerminateSession(realmID)
	for _, player := range removed {
		h.gateway.Kick(player.SocketID, reason)
		h.identities.Remove(player.UID)
	}
	if len(removed) > 0 {
		presence.RealmTerminated(ctx, h.publisher, realmID, reason, len(removed))
		h.logger.Printf("terminated realm %s (%d players): %s", realmID, len(removed), reason)
	}
}

func (h *Hub) sendProximity(changes []ProximityChange) {
	for _, change := range changes {
		payload := ProximityPayload{}
		if change.ProximityID != "" {
			id := change.ProximityID
			payload.ProximityID = &id
		}
		h.gateway.Send(change.SocketID, proto.TypeProximityUpdate, payload)
	}
}

// resolveAppearance picks the display name and skin for a joining uid. The
// profile skin lookup only applies to verified users; guests and users
// without a stored preference get the default.
func (h *Hub) resolveAppearance(ctx context.Context, uid string) (string, string) {
	displayName := "Guest"
	skin := DefaultSkin

	id, ok := h.identities.Get(uid)
	if ok {
		displayName = id.DisplayName
		if !id.IsGuest {
			stored, err := h.directory.LookupProfileSkin(ctx, uid)
			switch {
			case err == nil:
				skin = stored
			case !errors.Is(err, directory.ErrNotFound):
				h.logger.Printf("profile lookup failed for %s: %v", uid, err)
			}
		}
	}
	return displayName, skin
}

// Diagnostics is the operational snapshot served over HTTP.
type Diagnostics struct {
	Realms     []RealmSummary `json:"realms"`
	Players    int            `json:"players"`
	Identities int            `json:"identities"`
	Joining    int            `json:"joining"`
}

// DiagnosticsSnapshot summarizes live state for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	summaries := h.store.RealmSummaries()
	total := 0
	for _, summary := range summaries {
		total += summary.Players
	}
	h.mu.Lock()
	joining := len(h.joining)
	h.mu.Unlock()
	return Diagnostics{
		Realms:     summaries,
		Players:    total,
		Identities: h.identities.Len(),
		Joining:    joining,
	}
}
