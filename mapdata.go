package server

import (
	"encoding/json"
	"fmt"
)

// RoomDef describes one room of a realm map. Width and height bound player
// coordinates; rooms with zero bounds accept any position.
type RoomDef struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SpawnPoint is where joining players appear.
type SpawnPoint struct {
	RoomIndex int     `json:"roomIndex"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// MapData is the slice of a realm's map payload this server cares about: the
// room list and the spawn point. Everything else in the payload belongs to
// the renderer and passes through untouched.
type MapData struct {
	Rooms []RoomDef  `json:"rooms"`
	Spawn SpawnPoint `json:"spawn"`
}

// ParseMapData decodes a raw map payload. Maps with no declared rooms get a
// single unnamed room, and an out-of-range spawn room is clamped to room 0,
// so a session can always be built from whatever the editor stored.
func ParseMapData(raw []byte) (MapData, error) {
	data := MapData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return MapData{}, fmt.Errorf("parse map data: %w", err)
		}
	}
	if len(data.Rooms) == 0 {
		data.Rooms = []RoomDef{{Name: "main"}}
	}
	if data.Spawn.RoomIndex < 0 || data.Spawn.RoomIndex >= len(data.Rooms) {
		data.Spawn.RoomIndex = 0
	}
	return data, nil
}

// clamp constrains a coordinate to a room's bounds when bounds are declared.
func (r RoomDef) clamp(x, y float64) (float64, float64) {
	if r.Width > 0 {
		if x < 0 {
			x = 0
		}
		if x > r.Width {
			x = r.Width
		}
	}
	if r.Height > 0 {
		if y < 0 {
			y = 0
		}
		if y > r.Height {
			y = r.Height
		}
	}
	return x, y
}
