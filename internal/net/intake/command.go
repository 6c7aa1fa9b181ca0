// Package intake converts untyped transport payloads into a closed set of
// validated commands. Core logic never sees a raw wire message: anything that
// fails shape checks is dropped here, silently, so hostile or buggy clients
// learn nothing about the protocol's internals.
package intake

import (
	"math"

	"plaza/server/internal/net/proto"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindJoin
	KindMove
	KindTeleport
	KindChangeSkin
	KindChat
	KindHeartbeat
)

type Join struct {
	RealmID string
	ShareID string
}

type Move struct {
	X float64
	Y float64
}

type Teleport struct {
	RoomIndex int
	X         float64
	Y         float64
}

type ChangeSkin struct {
	Skin string
}

type Chat struct {
	Message string
}

type Heartbeat struct {
	SentAt int64
}

// Command is the tagged union handed to the session manager. Exactly one
// variant matching Kind is non-nil.
type Command struct {
	Kind      Kind
	Join      *Join
	Move      *Move
	Teleport  *Teleport
	Skin      *ChangeSkin
	Chat      *Chat
	Heartbeat *Heartbeat
}

// StageClientCommand validates a decoded wire message and produces the typed
// command for it. The boolean is false for unknown event types and malformed
// payloads; callers drop those without replying.
func StageClientCommand(msg proto.ClientMessage) (Command, bool) {
	switch msg.Type {
	case proto.TypeJoin:
		if msg.RealmID == "" {
			return Command{}, false
		}
		return Command{Kind: KindJoin, Join: &Join{RealmID: msg.RealmID, ShareID: msg.ShareID}}, true

	case proto.TypeMove:
		if !finiteCoords(msg.X, msg.Y) {
			return Command{}, false
		}
		return Command{Kind: KindMove, Move: &Move{X: *msg.X, Y: *msg.Y}}, true

	case proto.TypeTeleport:
		if msg.RoomIndex == nil || *msg.RoomIndex < 0 || !finiteCoords(msg.X, msg.Y) {
			return Command{}, false
		}
		return Command{Kind: KindTeleport, Teleport: &Teleport{
			RoomIndex: *msg.RoomIndex,
			X:         *msg.X,
			Y:         *msg.Y,
		}}, true

	case proto.TypeChangedSkin:
		if msg.Skin == "" || len(msg.Skin) > 64 {
			return Command{}, false
		}
		return Command{Kind: KindChangeSkin, Skin: &ChangeSkin{Skin: msg.Skin}}, true

	case proto.TypeSendMessage:
		if msg.Message == nil {
			return Command{}, false
		}
		return Command{Kind: KindChat, Chat: &Chat{Message: *msg.Message}}, true

	case proto.TypeHeartbeat:
		return Command{Kind: KindHeartbeat, Heartbeat: &Heartbeat{SentAt: msg.SentAt}}, true

	default:
		return Command{}, false
	}
}

func finiteCoords(x, y *float64) bool {
	if x == nil || y == nil {
		return false
	}
	for _, v := range []float64{*x, *y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
