package server

import (
	"testing"
	"time"

	"plaza/server/internal/proximity"
)

func testMap() MapData {
	return MapData{
		Rooms: []RoomDef{
			{Name: "main", Width: 1000, Height: 1000},
			{Name: "attic", Width: 1000, Height: 1000},
		},
		Spawn: SpawnPoint{RoomIndex: 0, X: 100, Y: 100},
	}
}

func newTestStore(t *testing.T, capacity int) *Store {
	t.Helper()
	return NewStore(proximity.NewEngine(96), capacity)
}

func addPlayer(t *testing.T, s *Store, socketID, realmID, uid string) JoinResult {
	t.Helper()
	result, err := s.AddPlayer(socketID, realmID, uid, uid, DefaultSkin)
	if err != nil {
		t.Fatalf("AddPlayer(%s) returned error: %v", uid, err)
	}
	return result
}

func TestAddPlayerSpawnsAtMapSpawn(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())

	result := addPlayer(t, s, "sock-a", "realm-1", "alice")
	if result.Player.RoomIndex != 0 || result.Player.X != 100 || result.Player.Y != 100 {
		t.Fatalf("unexpected spawn placement: %+v", result.Player)
	}
	if result.Kick != nil {
		t.Fatalf("first join must not displace anyone")
	}
	if realmID, ok := s.PlayerRealm("alice"); !ok || realmID != "realm-1" {
		t.Fatalf("reverse index missing after join: %q %v", realmID, ok)
	}
}

func TestAddPlayerEnforcesCapacity(t *testing.T) {
	s := newTestStore(t, 2)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	_, err := s.AddPlayer("sock-c", "realm-1", "carol", "carol", DefaultSkin)
	if err != ErrRealmFull {
		t.Fatalf("expected ErrRealmFull, got %v", err)
	}
	if got := s.PlayerCount("realm-1"); got != 2 {
		t.Fatalf("rejected join must not mutate state, count = %d", got)
	}
	if _, ok := s.PlayerRealm("carol"); ok {
		t.Fatalf("rejected player must not be indexed")
	}
}

func TestAddPlayerDefaultCapacityIsThirty(t *testing.T) {
	s := newTestStore(t, 0)
	if s.Capacity() != DefaultRealmCapacity {
		t.Fatalf("expected capacity %d, got %d", DefaultRealmCapacity, s.Capacity())
	}
}

func TestAddPlayerDisplacesPriorSession(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-old", "realm-1", "alice")
	addPlayer(t, s, "sock-peer", "realm-1", "bob")

	result := addPlayer(t, s, "sock-new", "realm-1", "alice")
	if result.Kick == nil {
		t.Fatalf("duplicate login must displace the prior session")
	}
	if result.Kick.SocketID != "sock-old" {
		t.Fatalf("kick targets the old socket, got %q", result.Kick.SocketID)
	}
	if result.Kick.RealmID != "realm-1" {
		t.Fatalf("kick names the old realm, got %q", result.Kick.RealmID)
	}

	// The old socket no longer resolves; the new one does.
	if _, ok := s.LogOutBySocketID("sock-old"); ok {
		t.Fatalf("old socket should already be superseded")
	}
	player, ok := s.GetPlayer("alice")
	if !ok || player.SocketID != "sock-new" {
		t.Fatalf("expected alice rebound to sock-new, got %+v (%v)", player, ok)
	}
	if got := s.PlayerCount("realm-1"); got != 2 {
		t.Fatalf("displacement must not change occupancy, count = %d", got)
	}
}

func TestAddPlayerDisplacementCrossesRealms(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	s.CreateSession("realm-2", testMap())
	addPlayer(t, s, "sock-old", "realm-1", "alice")

	result := addPlayer(t, s, "sock-new", "realm-2", "alice")
	if result.Kick == nil || result.Kick.RealmID != "realm-1" {
		t.Fatalf("expected displacement out of realm-1, got %+v", result.Kick)
	}
	if !result.Kick.RealmEvicted {
		t.Fatalf("alice was realm-1's only occupant; eviction expected")
	}
	if s.HasSession("realm-1") {
		t.Fatalf("empty realm session should be deallocated")
	}
}

func TestMovePlayerClampsToRoomBounds(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	result, ok := s.MovePlayer("alice", -50, 2000)
	if !ok {
		t.Fatalf("move for a live player should succeed")
	}
	if result.Player.X != 0 || result.Player.Y != 1000 {
		t.Fatalf("expected clamped (0, 1000), got (%v, %v)", result.Player.X, result.Player.Y)
	}
}

func TestMovePlayerUnknownUIDIsNoOp(t *testing.T) {
	s := newTestStore(t, 0)
	if _, ok := s.MovePlayer("ghost", 1, 1); ok {
		t.Fatalf("move for unknown uid must be a no-op")
	}
}

func TestMovePlayerFormsAndDissolvesGroups(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	// Spawn stacks both players on the same point, so they grouped on join.
	result, _ := s.MovePlayer("bob", 500, 500)
	if got, _ := s.GetPlayer("bob"); got.ProximityID != "" {
		t.Fatalf("bob moved out of range and should be ungrouped, got %q", got.ProximityID)
	}
	if len(result.Proximity) != 2 {
		t.Fatalf("both players should be notified of the dissolve, got %d", len(result.Proximity))
	}

	result, _ = s.MovePlayer("bob", 140, 100)
	alice, _ := s.GetPlayer("alice")
	bob, _ := s.GetPlayer("bob")
	if alice.ProximityID == "" || alice.ProximityID != bob.ProximityID {
		t.Fatalf("expected shared group, got alice=%q bob=%q", alice.ProximityID, bob.ProximityID)
	}
	if len(result.Proximity) != 2 {
		t.Fatalf("both players should be notified of the merge, got %d", len(result.Proximity))
	}
}

func TestGroupIDStableWhileClusterPersists(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")
	addPlayer(t, s, "sock-c", "realm-1", "carol")

	alice, _ := s.GetPlayer("alice")
	id := alice.ProximityID
	if id == "" {
		t.Fatalf("spawn-stacked players should be grouped")
	}

	// Carol leaves the cluster; the surviving pair keeps its id.
	s.MovePlayer("carol", 900, 900)
	alice, _ = s.GetPlayer("alice")
	bob, _ := s.GetPlayer("bob")
	if alice.ProximityID != id || bob.ProximityID != id {
		t.Fatalf("surviving pair must keep id %q, got alice=%q bob=%q", id, alice.ProximityID, bob.ProximityID)
	}
}

func TestTeleportWithinRoom(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	result, ok := s.TeleportPlayer("alice", 0, 700, 800)
	if !ok {
		t.Fatalf("teleport should succeed")
	}
	if result.ChangedRoom {
		t.Fatalf("same-room teleport must not report a room change")
	}
	if result.Player.X != 700 || result.Player.Y != 800 {
		t.Fatalf("unexpected position: (%v, %v)", result.Player.X, result.Player.Y)
	}
}

func TestTeleportAcrossRooms(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	result, ok := s.TeleportPlayer("alice", 1, 10, 10)
	if !ok || !result.ChangedRoom {
		t.Fatalf("expected a room change, got %+v (%v)", result, ok)
	}
	if result.OldRoomIndex != 0 || result.Player.RoomIndex != 1 {
		t.Fatalf("unexpected rooms: old=%d new=%d", result.OldRoomIndex, result.Player.RoomIndex)
	}
	if len(result.OldRoomSockets) != 1 || result.OldRoomSockets[0] != "sock-b" {
		t.Fatalf("departure should address bob, got %v", result.OldRoomSockets)
	}
	if len(result.NewRoomSockets) != 0 {
		t.Fatalf("destination room is empty, got %v", result.NewRoomSockets)
	}

	// Alice left bob behind; both lose their grouping and the mover's own
	// transition is reported even though the destination room is empty.
	foundMover := false
	for _, change := range result.Proximity {
		if change.UID == "alice" {
			foundMover = true
			if change.ProximityID != "" {
				t.Fatalf("alice is alone in the attic, got group %q", change.ProximityID)
			}
		}
	}
	if !foundMover {
		t.Fatalf("mover's transition missing from %v", result.Proximity)
	}
}

func TestTeleportToInvalidRoomIsNoOp(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	if _, ok := s.TeleportPlayer("alice", 5, 0, 0); ok {
		t.Fatalf("teleport to out-of-range room must be a no-op")
	}
	player, _ := s.GetPlayer("alice")
	if player.RoomIndex != 0 {
		t.Fatalf("failed teleport must not move the player, room = %d", player.RoomIndex)
	}
}

func TestLogOutBySocketID(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	result, ok := s.LogOutBySocketID("sock-a")
	if !ok {
		t.Fatalf("logout for a live socket should succeed")
	}
	if result.UID != "alice" || result.RealmID != "realm-1" {
		t.Fatalf("unexpected leave result: %+v", result)
	}
	if result.RealmEvicted {
		t.Fatalf("bob still occupies the realm")
	}
	if len(result.RoomSockets) != 1 || result.RoomSockets[0] != "sock-b" {
		t.Fatalf("departure should address bob, got %v", result.RoomSockets)
	}

	// Second logout for the same socket is a no-op.
	if _, ok := s.LogOutBySocketID("sock-a"); ok {
		t.Fatalf("logout must be idempotent")
	}
}

func TestLogOutLastPlayerEvictsRealm(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	result, ok := s.LogOutBySocketID("sock-a")
	if !ok || !result.RealmEvicted {
		t.Fatalf("last logout should evict the realm, got %+v (%v)", result, ok)
	}
	if s.HasSession("realm-1") {
		t.Fatalf("session should be gone")
	}
	if s.SessionCount() != 0 {
		t.Fatalf("expected zero sessions, got %d", s.SessionCount())
	}
}

func TestTerminateSession(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	removed := s.TerminateSession("realm-1")
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed players, got %d", len(removed))
	}
	if s.HasSession("realm-1") {
		t.Fatalf("terminated session should be gone")
	}
	for _, uid := range []string{"alice", "bob"} {
		if _, ok := s.PlayerRealm(uid); ok {
			t.Fatalf("%s should be unindexed after termination", uid)
		}
	}

	// The realm can be joined again immediately with a fresh session.
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-c", "realm-1", "alice")
	if got := s.PlayerCount("realm-1"); got != 1 {
		t.Fatalf("expected fresh session with 1 player, got %d", got)
	}
}

func TestTerminateUnknownRealmReturnsNothing(t *testing.T) {
	s := newTestStore(t, 0)
	if removed := s.TerminateSession("ghost"); removed != nil {
		t.Fatalf("expected nil, got %v", removed)
	}
}

func TestRecordHeartbeat(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	received := time.Now()
	sent := received.Add(-40 * time.Millisecond).UnixMilli()
	rtt, ok := s.RecordHeartbeat("alice", received, sent)
	if !ok {
		t.Fatalf("heartbeat for a live player should succeed")
	}
	if rtt <= 0 || rtt > time.Second {
		t.Fatalf("implausible rtt %v", rtt)
	}

	if _, ok := s.RecordHeartbeat("ghost", received, sent); ok {
		t.Fatalf("heartbeat for unknown uid must be a no-op")
	}
}

func TestChangeSkin(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	result, ok := s.ChangeSkin("alice", "042")
	if !ok || result.Player.Skin != "042" {
		t.Fatalf("expected skin 042, got %+v (%v)", result, ok)
	}
}

func TestRoomSocketsForExcludesSelf(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")

	sockets, ok := s.RoomSocketsFor("alice")
	if !ok || len(sockets) != 1 || sockets[0] != "sock-b" {
		t.Fatalf("expected [sock-b], got %v (%v)", sockets, ok)
	}
}

func TestAddPlayerWithoutSessionFails(t *testing.T) {
	s := newTestStore(t, 0)
	if _, err := s.AddPlayer("sock-a", "ghost", "alice", "alice", DefaultSkin); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestMoveWithoutNeighborsEmitsNoProximityChanges(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")

	result, ok := s.MovePlayer("alice", 400, 400)
	if !ok {
		t.Fatalf("move should succeed")
	}
	if len(result.Proximity) != 0 {
		t.Fatalf("a solo player never produces proximity notices, got %v", result.Proximity)
	}
}

func TestProximityAtDefaultRadius(t *testing.T) {
	s := NewStore(proximity.NewEngine(proximity.DefaultRadius), 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-1", "realm-1", "u1")
	addPlayer(t, s, "sock-2", "realm-1", "u2")

	s.MovePlayer("u1", 10, 10)
	s.MovePlayer("u2", 10, 11)

	u1, _ := s.GetPlayer("u1")
	u2, _ := s.GetPlayer("u2")
	if u1.ProximityID == "" || u1.ProximityID != u2.ProximityID {
		t.Fatalf("players one tile apart should group, got %q and %q", u1.ProximityID, u2.ProximityID)
	}

	result, _ := s.MovePlayer("u1", 10, 50)
	if len(result.Proximity) != 2 {
		t.Fatalf("both players should be notified of the dissolve, got %v", result.Proximity)
	}
	for _, change := range result.Proximity {
		if change.ProximityID != "" {
			t.Fatalf("expected ungrouped notice for %s, got %q", change.UID, change.ProximityID)
		}
	}
}

func TestSocketIDsInRealm(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-a", "realm-1", "alice")
	addPlayer(t, s, "sock-b", "realm-1", "bob")
	s.TeleportPlayer("bob", 1, 10, 10)

	sockets := s.SocketIDsInRealm("realm-1")
	if len(sockets) != 2 {
		t.Fatalf("realm-wide addressing spans rooms, got %v", sockets)
	}
	if got := s.SocketIDsInRealm("ghost"); got != nil {
		t.Fatalf("unknown realm should return nil, got %v", got)
	}
}

func TestAddPlayerSameRealmRejoinWhileAlone(t *testing.T) {
	s := newTestStore(t, 0)
	s.CreateSession("realm-1", testMap())
	addPlayer(t, s, "sock-old", "realm-1", "alice")

	// A second tab rejoins the realm alice is the only occupant of. The
	// displacement momentarily empties the realm; the session must survive.
	result := addPlayer(t, s, "sock-new", "realm-1", "alice")
	if result.Kick == nil || result.Kick.SocketID != "sock-old" {
		t.Fatalf("expected the old socket displaced, got %+v", result.Kick)
	}
	if result.Kick.RealmEvicted {
		t.Fatalf("a same-realm rejoin must not report an eviction")
	}

	if !s.HasSession("realm-1") {
		t.Fatalf("session vanished after a successful join")
	}
	if got := s.PlayerCount("realm-1"); got != 1 {
		t.Fatalf("expected 1 occupant, got %d", got)
	}
	player, ok := s.GetPlayer("alice")
	if !ok || player.SocketID != "sock-new" {
		t.Fatalf("expected alice live on sock-new, got %+v (%v)", player, ok)
	}
	if _, ok := s.MovePlayer("alice", 200, 200); !ok {
		t.Fatalf("alice must remain movable after the rejoin")
	}

	leave, ok := s.LogOutBySocketID("sock-new")
	if !ok || leave.UID != "alice" || !leave.RealmEvicted {
		t.Fatalf("logout on the new socket should succeed and evict, got %+v (%v)", leave, ok)
	}
	if s.SessionCount() != 0 {
		t.Fatalf("expected no sessions left, got %d", s.SessionCount())
	}
}
