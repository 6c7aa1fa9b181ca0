package server

import "time"

// Player is the public snapshot of one occupant, as serialized to clients.
type Player struct {
	UID         string  `json:"uid"`
	SocketID    string  `json:"socketId"`
	DisplayName string  `json:"displayName"`
	Skin        string  `json:"skin"`
	RoomIndex   int     `json:"roomIndex"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ProximityID string  `json:"proximityId,omitempty"`
}

// playerState is the authoritative record behind a Player snapshot. Only the
// Store mutates it, always under the Store mutex.
type playerState struct {
	Player
	joinedAt time.Time
	lastSeen time.Time
	lastRTT  time.Duration
}

func (p *playerState) snapshot() Player {
	return p.Player
}
