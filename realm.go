package server

import (
	"plaza/server/internal/proximity"
)

// Realm is the live session of one virtual space: its parsed map, the
// players inside it, and the per-room occupancy and proximity bookkeeping.
// A Realm exists only while at least one player occupies it. All access goes
// through the Store, which serializes mutations under its mutex.
type Realm struct {
	ID  string
	Map MapData

	players map[string]*playerState
	rooms   []map[string]struct{}
	groups  []proximity.Assignment
}

func newRealm(id string, mapData MapData) *Realm {
	rooms := make([]map[string]struct{}, len(mapData.Rooms))
	groups := make([]proximity.Assignment, len(mapData.Rooms))
	for i := range rooms {
		rooms[i] = make(map[string]struct{})
		groups[i] = make(proximity.Assignment)
	}
	return &Realm{
		ID:      id,
		Map:     mapData,
		players: make(map[string]*playerState),
		rooms:   rooms,
		groups:  groups,
	}
}

func (r *Realm) playerCount() int {
	return len(r.players)
}

func (r *Realm) validRoom(roomIndex int) bool {
	return roomIndex >= 0 && roomIndex < len(r.rooms)
}

func (r *Realm) addPlayer(state *playerState) {
	r.players[state.UID] = state
	r.rooms[state.RoomIndex][state.UID] = struct{}{}
}

func (r *Realm) removePlayer(uid string) {
	state, ok := r.players[uid]
	if !ok {
		return
	}
	delete(r.rooms[state.RoomIndex], uid)
	delete(r.players, uid)
}

// moveToRoom reseats a player in another room's occupancy set.
func (r *Realm) moveToRoom(state *playerState, roomIndex int) {
	delete(r.rooms[state.RoomIndex], state.UID)
	state.RoomIndex = roomIndex
	r.rooms[roomIndex][state.UID] = struct{}{}
}

func (r *Realm) roomPlayers(roomIndex int) []Player {
	if !r.validRoom(roomIndex) {
		return nil
	}
	players := make([]Player, 0, len(r.rooms[roomIndex]))
	for uid := range r.rooms[roomIndex] {
		players = append(players, r.players[uid].snapshot())
	}
	return players
}

// occupantSockets lists the socket ids in a room, excluding exceptUID when
// non-empty. This is the addressing unit for room-scoped broadcasts.
func (r *Realm) occupantSockets(roomIndex int, exceptUID string) []string {
	if !r.validRoom(roomIndex) {
		return nil
	}
	sockets := make([]string, 0, len(r.rooms[roomIndex]))
	for uid := range r.rooms[roomIndex] {
		if uid == exceptUID {
			continue
		}
		sockets = append(sockets, r.players[uid].SocketID)
	}
	return sockets
}

func (r *Realm) roomPoints(roomIndex int) []proximity.Point {
	points := make([]proximity.Point, 0, len(r.rooms[roomIndex]))
	for uid := range r.rooms[roomIndex] {
		state := r.players[uid]
		points = append(points, proximity.Point{UID: uid, X: state.X, Y: state.Y})
	}
	return points
}

// recomputeRoom reruns the proximity engine over one room and applies the new
// grouping. The returned changes cover every occupant whose group id or
// partner set differs; uids that left the room are excluded (their departure
// is settled wherever they went).
func (r *Realm) recomputeRoom(engine *proximity.Engine, roomIndex int) []ProximityChange {
	if !r.validRoom(roomIndex) {
		return nil
	}
	old := r.groups[roomIndex]
	next := engine.Compute(r.roomPoints(roomIndex), old)
	r.groups[roomIndex] = next

	var changes []ProximityChange
	for _, uid := range proximity.Diff(old, next) {
		state, ok := r.players[uid]
		if !ok || state.RoomIndex != roomIndex {
			continue
		}
		state.ProximityID = next.GroupID(uid)
		changes = append(changes, ProximityChange{
			UID:         uid,
			SocketID:    state.SocketID,
			ProximityID: state.ProximityID,
		})
	}
	return changes
}
