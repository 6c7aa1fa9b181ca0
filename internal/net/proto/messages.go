package proto

import (
	"encoding/json"
	"fmt"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client event type identifiers.
const (
	TypeJoin        = "joinRealm"
	TypeMove        = "movePlayer"
	TypeTeleport    = "teleport"
	TypeChangedSkin = "changedSkin"
	TypeSendMessage = "sendMessage"
	TypeHeartbeat   = "heartbeat"
)

// Server event type identifiers.
const (
	TypeJoinedRealm       = "joinedRealm"
	TypeFailedToJoin      = "failedToJoinRoom"
	TypePlayerJoinedRoom  = "playerJoinedRoom"
	TypePlayerLeftRoom    = "playerLeftRoom"
	TypePlayerMoved       = "playerMoved"
	TypePlayerTeleported  = "playerTeleported"
	TypeProximityUpdate   = "proximityUpdate"
	TypePlayerChangedSkin = "playerChangedSkin"
	TypeReceiveMessage    = "receiveMessage"
	TypeKicked            = "kicked"
	TypeHeartbeatAck      = "heartbeat"
)

// ClientMessage captures an inbound websocket message before validation.
// Pointer fields distinguish absent values from zero values so the intake
// layer can reject payloads that merely omit a required field.
type ClientMessage struct {
	Ver       int      `json:"ver,omitempty"`
	Type      string   `json:"type"`
	RealmID   string   `json:"realmId,omitempty"`
	ShareID   string   `json:"shareId,omitempty"`
	RoomIndex *int     `json:"roomIndex,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Skin      string   `json:"skin,omitempty"`
	Message   *string  `json:"message,omitempty"`
	SentAt    int64    `json:"sentAt,omitempty"`
}

// DecodeClientMessage converts a raw websocket payload into a structured
// message, rejecting protocol versions this server does not speak.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// envelope is the outbound frame layout shared by every server event.
type envelope struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode renders a server event with the versioned envelope.
func Encode(eventType string, payload any) ([]byte, error) {
	return json.Marshal(envelope{Ver: Version, Type: eventType, Data: payload})
}

// HeartbeatAck echoes timing metadata back to the client.
type HeartbeatAck struct {
	ServerTime int64 `json:"serverTime"`
	ClientTime int64 `json:"clientTime"`
	RTTMillis  int64 `json:"rtt"`
}
