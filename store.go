package server

import (
	"errors"
	"sync"
	"time"

	"plaza/server/internal/proximity"
)

// DefaultRealmCapacity caps concurrent players per realm.
const DefaultRealmCapacity = 30

var (
	// ErrNoSession means the target realm has no live session.
	ErrNoSession = errors.New("store: no session for realm")
	// ErrRealmFull means the realm is at capacity; no state was mutated.
	ErrRealmFull = errors.New("store: realm is full")
)

// ProximityChange records that a player's proximity grouping changed and
// where to deliver the notice. An empty ProximityID means ungrouped.
type ProximityChange struct {
	UID         string
	SocketID    string
	ProximityID string
}

// KickNotice describes a prior session displaced by a new login. The store
// has already removed the player; the orchestrator delivers the kick after
// the join commits.
type KickNotice struct {
	SocketID     string
	RealmID      string
	RoomSockets  []string
	Proximity    []ProximityChange
	RealmEvicted bool
}

// JoinResult is everything the orchestrator needs to announce a join.
type JoinResult struct {
	Player      Player
	RoomSockets []string
	Proximity   []ProximityChange
	Kick        *KickNotice
}

// MoveResult carries the addressing for a position update.
type MoveResult struct {
	Player      Player
	RoomSockets []string
	Proximity   []ProximityChange
}

// TeleportResult carries the addressing for a teleport, which may span rooms.
type TeleportResult struct {
	Player         Player
	ChangedRoom    bool
	OldRoomIndex   int
	OldRoomSockets []string
	NewRoomSockets []string
	Proximity      []ProximityChange
}

// LeaveResult describes a completed logout.
type LeaveResult struct {
	UID          string
	RealmID      string
	RoomSockets  []string
	Proximity    []ProximityChange
	RealmEvicted bool
}

// Store owns every live realm session plus the reverse indices that answer
// "which realm is this uid in" and "which uid owns this socket". A single
// mutex serializes all mutations so interleaved joins, moves, and disconnects
// never observe a torn player record; the reverse indices are updated in the
// same critical section as the primary maps.
type Store struct {
	mu          sync.Mutex
	realms      map[string]*Realm
	realmByUID  map[string]string
	uidBySocket map[string]string
	engine      *proximity.Engine
	capacity    int
	now         func() time.Time
}

func NewStore(engine *proximity.Engine, capacity int) *Store {
	if engine == nil {
		engine = proximity.NewEngine(proximity.DefaultRadius)
	}
	if capacity <= 0 {
		capacity = DefaultRealmCapacity
	}
	return &Store{
		realms:      make(map[string]*Realm),
		realmByUID:  make(map[string]string),
		uidBySocket: make(map[string]string),
		engine:      engine,
		capacity:    capacity,
		now:         time.Now,
	}
}

// Capacity returns the per-realm occupancy ceiling.
func (s *Store) Capacity() int {
	return s.capacity
}

// CreateSession allocates a live session for a realm. It is a no-op when one
// already exists.
func (s *Store) CreateSession(realmID string, mapData MapData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.realms[realmID]; ok {
		return
	}
	s.realms[realmID] = newRealm(realmID, mapData)
}

// HasSession reports whether a realm currently has a live session.
func (s *Store) HasSession(realmID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.realms[realmID]
	return ok
}

// PlayerCount returns the occupancy of a realm, 0 when absent.
func (s *Store) PlayerCount(realmID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	realm, ok := s.realms[realmID]
	if !ok {
		return 0
	}
	return realm.playerCount()
}

// PlayerRealm is the reverse lookup from uid to the realm hosting it.
func (s *Store) PlayerRealm(uid string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	realmID, ok := s.realmByUID[uid]
	return realmID, ok
}

// GetPlayer returns the current snapshot for a uid.
func (s *Store) GetPlayer(uid string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.playerStateLocked(uid)
	if !ok {
		return Player{}, false
	}
	return state.snapshot(), true
}

// PlayersInRoom lists snapshots of everyone inside one room of a realm.
func (s *Store) PlayersInRoom(realmID string, roomIndex int) []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	realm, ok := s.realms[realmID]
	if !ok {
		return nil
	}
	return realm.roomPlayers(roomIndex)
}

// SocketIDsInRoom lists the socket ids inside one room of a realm.
func (s *Store) SocketIDsInRoom(realmID string, roomIndex int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	realm, ok := s.realms[realmID]
	if !ok {
		return nil
	}
	return realm.occupantSockets(roomIndex, "")
}

// AddPlayer inserts a player at the realm's spawn point. If the uid already
// has a live session anywhere, that session is displaced in the same critical
// section and reported through JoinResult.Kick, which keeps the one-session-
// per-uid invariant airtight against concurrent joins. ErrRealmFull is
// returned with no state mutated when the realm is at capacity.
func (s *Store) AddPlayer(socketID, realmID, uid, displayName, skin string) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, ok := s.realms[realmID]
	if !ok {
		return JoinResult{}, ErrNoSession
	}

	_, rejoining := realm.players[uid]
	if !rejoining && realm.playerCount() >= s.capacity {
		return JoinResult{}, ErrRealmFull
	}

	result := JoinResult{}
	if priorRealmID, ok := s.realmByUID[uid]; ok {
		result.Kick = s.removePlayerLocked(priorRealmID, uid)
		// A sole occupant rejoining its own realm empties it for an
		// instant; restore the session before the insert below lands in
		// an orphaned Realm.
		if priorRealmID == realmID && result.Kick != nil && result.Kick.RealmEvicted {
			s.realms[realmID] = realm
			result.Kick.RealmEvicted = false
		}
	}

	spawn := realm.Map.Spawn
	x, y := realm.Map.Rooms[spawn.RoomIndex].clamp(spawn.X, spawn.Y)
	now := s.now()
	state := &playerState{
		Player: Player{
			UID:         uid,
			SocketID:    socketID,
			DisplayName: displayName,
			Skin:        skin,
			RoomIndex:   spawn.RoomIndex,
			X:           x,
			Y:           y,
		},
		joinedAt: now,
		lastSeen: now,
	}
	realm.addPlayer(state)
	s.realmByUID[uid] = realmID
	s.uidBySocket[socketID] = uid

	result.RoomSockets = realm.occupantSockets(spawn.RoomIndex, uid)
	result.Proximity = realm.recomputeRoom(s.engine, spawn.RoomIndex)
	result.Player = state.snapshot()
	return result, nil
}

// MovePlayer updates a player's position inside their current room and
// recomputes that room's proximity grouping. Unknown uids are a no-op.
func (s *Store) MovePlayer(uid string, x, y float64) (MoveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, state, ok := s.realmAndStateLocked(uid)
	if !ok {
		return MoveResult{}, false
	}

	state.X, state.Y = realm.Map.Rooms[state.RoomIndex].clamp(x, y)
	state.lastSeen = s.now()

	return MoveResult{
		Player:      state.snapshot(),
		RoomSockets: realm.occupantSockets(state.RoomIndex, uid),
		Proximity:   realm.recomputeRoom(s.engine, state.RoomIndex),
	}, true
}

// TeleportPlayer moves a player to an arbitrary room and position. When the
// room changes, both the vacated and the destination room are regrouped; the
// mover's own transition is reported even when neither room's survivors
// changed. Out-of-range rooms are a no-op.
func (s *Store) TeleportPlayer(uid string, roomIndex int, x, y float64) (TeleportResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, state, ok := s.realmAndStateLocked(uid)
	if !ok || !realm.validRoom(roomIndex) {
		return TeleportResult{}, false
	}

	state.lastSeen = s.now()

	if roomIndex == state.RoomIndex {
		state.X, state.Y = realm.Map.Rooms[roomIndex].clamp(x, y)
		return TeleportResult{
			Player:         state.snapshot(),
			OldRoomIndex:   roomIndex,
			NewRoomSockets: realm.occupantSockets(roomIndex, uid),
			Proximity:      realm.recomputeRoom(s.engine, roomIndex),
		}, true
	}

	oldRoom := state.RoomIndex
	oldGroupID := state.ProximityID
	oldRoomSockets := realm.occupantSockets(oldRoom, uid)

	realm.moveToRoom(state, roomIndex)
	state.X, state.Y = realm.Map.Rooms[roomIndex].clamp(x, y)

	changes := realm.recomputeRoom(s.engine, oldRoom)
	changes = append(changes, realm.recomputeRoom(s.engine, roomIndex)...)

	// A mover who leaves a group behind and arrives alone is in neither
	// room's diff; settle their transition explicitly.
	newGroupID := realm.groups[roomIndex].GroupID(uid)
	if newGroupID != oldGroupID && !containsUID(changes, uid) {
		state.ProximityID = newGroupID
		changes = append(changes, ProximityChange{
			UID:         uid,
			SocketID:    state.SocketID,
			ProximityID: newGroupID,
		})
	}

	return TeleportResult{
		Player:         state.snapshot(),
		ChangedRoom:    true,
		OldRoomIndex:   oldRoom,
		OldRoomSockets: oldRoomSockets,
		NewRoomSockets: realm.occupantSockets(roomIndex, uid),
		Proximity:      changes,
	}, true
}

// ChangeSkin updates a player's avatar skin.
func (s *Store) ChangeSkin(uid, skin string) (MoveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, state, ok := s.realmAndStateLocked(uid)
	if !ok {
		return MoveResult{}, false
	}
	state.Skin = skin
	state.lastSeen = s.now()
	return MoveResult{
		Player:      state.snapshot(),
		RoomSockets: realm.occupantSockets(state.RoomIndex, uid),
	}, true
}

// RoomSocketsFor returns the sockets sharing a room with uid, excluding uid
// itself. Used for chat fan-out.
func (s *Store) RoomSocketsFor(uid string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, state, ok := s.realmAndStateLocked(uid)
	if !ok {
		return nil, false
	}
	return realm.occupantSockets(state.RoomIndex, uid), true
}

// RecordHeartbeat refreshes a player's liveness and computes the round trip
// from the client-reported send time.
func (s *Store) RecordHeartbeat(uid string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, state, ok := s.realmAndStateLocked(uid)
	if !ok {
		return 0, false
	}
	state.lastSeen = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}
	return state.lastRTT, true
}

// LogOutBySocketID removes the player whose current socket matches. It
// reports false when the socket was already superseded, for example by a
// duplicate-login kick, making disconnect handling idempotent.
func (s *Store) LogOutBySocketID(socketID string) (LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.uidBySocket[socketID]
	if !ok {
		return LeaveResult{}, false
	}
	realmID, ok := s.realmByUID[uid]
	if !ok {
		delete(s.uidBySocket, socketID)
		return LeaveResult{}, false
	}
	realm, ok := s.realms[realmID]
	if !ok {
		// The indices outlived their realm; purge them so the uid is not
		// stranded pointing at a session that no longer resolves.
		delete(s.uidBySocket, socketID)
		delete(s.realmByUID, uid)
		return LeaveResult{}, false
	}
	state, ok := realm.players[uid]
	if !ok {
		delete(s.uidBySocket, socketID)
		delete(s.realmByUID, uid)
		return LeaveResult{}, false
	}
	if state.SocketID != socketID {
		// The socket was superseded by a newer login; drop only its own
		// stale index entry.
		delete(s.uidBySocket, socketID)
		return LeaveResult{}, false
	}

	notice := s.removePlayerLocked(realmID, uid)
	return LeaveResult{
		UID:          uid,
		RealmID:      realmID,
		RoomSockets:  notice.RoomSockets,
		Proximity:    notice.Proximity,
		RealmEvicted: notice.RealmEvicted,
	}, true
}

// TerminateSession force-removes every player in a realm and deallocates it.
// The returned snapshots carry the sockets to kick. Joins racing against the
// termination serialize on the store mutex: they either land before and get
// terminated with everyone else, or land after and recreate a fresh session.
func (s *Store) TerminateSession(realmID string) []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	realm, ok := s.realms[realmID]
	if !ok {
		return nil
	}
	removed := make([]Player, 0, len(realm.players))
	for uid, state := range realm.players {
		removed = append(removed, state.snapshot())
		delete(s.realmByUID, uid)
		delete(s.uidBySocket, state.SocketID)
	}
	delete(s.realms, realmID)
	return removed
}

// SessionCount returns the number of live realm sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.realms)
}

// removePlayerLocked removes a player, updates both reverse indices, regroups
// the vacated room, and evicts the realm when it empties. Callers hold s.mu.
func (s *Store) removePlayerLocked(realmID, uid string) *KickNotice {
	realm, ok := s.realms[realmID]
	if !ok {
		return nil
	}
	state, ok := realm.players[uid]
	if !ok {
		return nil
	}

	roomIndex := state.RoomIndex
	notice := &KickNotice{
		SocketID: state.SocketID,
		RealmID:  realmID,
	}

	realm.removePlayer(uid)
	delete(s.realmByUID, uid)
	delete(s.uidBySocket, state.SocketID)

	if realm.playerCount() == 0 {
		delete(s.realms, realmID)
		notice.RealmEvicted = true
		return notice
	}

	notice.RoomSockets = realm.occupantSockets(roomIndex, "")
	notice.Proximity = realm.recomputeRoom(s.engine, roomIndex)
	return notice
}

func (s *Store) playerStateLocked(uid string) (*playerState, bool) {
	realmID, ok := s.realmByUID[uid]
	if !ok {
		return nil, false
	}
	realm, ok := s.realms[realmID]
	if !ok {
		return nil, false
	}
	state, ok := realm.players[uid]
	return state, ok
}

func (s *Store) realmAndStateLocked(uid string) (*Realm, *playerState, bool) {
	realmID, ok := s.realmByUID[uid]
	if !ok {
		return nil, nil, false
	}
	realm, ok := s.realms[realmID]
	if !ok {
		return nil, nil, false
	}
	state, ok := realm.players[uid]
	if !ok {
		return nil, nil, false
	}
	return realm, state, true
}

func containsUID(changes []ProximityChange, uid string) bool {
	for _, c := range changes {
		if c.UID == uid {
			return true
		}
	}
	return false
}

// RealmSummary is a diagnostics view of one live session.
type RealmSummary struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Rooms   int    `json:"rooms"`
}

// RealmSummaries lists every live session for the diagnostics endpoint.
func (s *Store) RealmSummaries() []RealmSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]RealmSummary, 0, len(s.realms))
	for id, realm := range s.realms {
		summaries = append(summaries, RealmSummary{
			ID:      id,
			Players: realm.playerCount(),
			Rooms:   len(realm.rooms),
		})
	}
	return summaries
}

// SocketIDsInRealm lists every socket in a realm across all rooms, the
// addressing unit for realm-wide announcements.
func (s *Store) SocketIDsInRealm(realmID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	realm, ok := s.realms[realmID]
	if !ok {
		return nil
	}
	sockets := make([]string, 0, len(realm.players))
	for _, state := range realm.players {
		sockets = append(sockets, state.SocketID)
	}
	return sockets
}
