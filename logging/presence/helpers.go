// Package presence publishes the domain events of realm occupancy.
package presence

import (
	"context"

	"plaza/server/logging"
)

const (
	// EventPlayerJoined is emitted when a player lands in a realm.
	EventPlayerJoined logging.EventType = "presence.player_joined"
	// EventPlayerLeft is emitted when a player logs out or disconnects.
	EventPlayerLeft logging.EventType = "presence.player_left"
	// EventPlayerKicked is emitted when the server forcibly removes a player.
	EventPlayerKicked logging.EventType = "presence.player_kicked"
	// EventRealmCreated is emitted when the first join materializes a session.
	EventRealmCreated logging.EventType = "presence.realm_created"
	// EventRealmEvicted is emitted when the last player leaves a realm.
	EventRealmEvicted logging.EventType = "presence.realm_evicted"
	// EventRealmTerminated is emitted when an external change ends a session.
	EventRealmTerminated logging.EventType = "presence.realm_terminated"
)

// JoinPayload records where a player landed.
type JoinPayload struct {
	RoomIndex int `json:"roomIndex"`
}

// KickPayload records why a player was removed.
type KickPayload struct {
	Reason string `json:"reason"`
}

// TerminatePayload records the scope of a forced termination.
type TerminatePayload struct {
	Reason  string `json:"reason"`
	Players int    `json:"players"`
}

func PlayerJoined(ctx context.Context, pub logging.Publisher, realmID, uid string, roomIndex int) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerJoined,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Realm:    realmID,
		Severity: logging.SeverityInfo,
		Payload:  JoinPayload{RoomIndex: roomIndex},
	})
}

func PlayerLeft(ctx context.Context, pub logging.Publisher, realmID, uid string) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerLeft,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Realm:    realmID,
		Severity: logging.SeverityInfo,
	})
}

func PlayerKicked(ctx context.Context, pub logging.Publisher, realmID, uid, reason string) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerKicked,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Realm:    realmID,
		Severity: logging.SeverityWarn,
		Payload:  KickPayload{Reason: reason},
	})
}

func RealmCreated(ctx context.Context, pub logging.Publisher, realmID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventRealmCreated,
		Actor:    logging.EntityRef{ID: realmID, Kind: logging.EntityKindRealm},
		Realm:    realmID,
		Severity: logging.SeverityInfo,
	})
}

func RealmEvicted(ctx context.Context, pub logging.Publisher, realmID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventRealmEvicted,
		Actor:    logging.EntityRef{ID: realmID, Kind: logging.EntityKindRealm},
		Realm:    realmID,
		Severity: logging.SeverityInfo,
	})
}

func RealmTerminated(ctx context.Context, pub logging.Publisher, realmID, reason string, players int) {
	publish(ctx, pub, logging.Event{
		Type:     EventRealmTerminated,
		Actor:    logging.EntityRef{ID: realmID, Kind: logging.EntityKindRealm},
		Realm:    realmID,
		Severity: logging.SeverityWarn,
		Payload:  TerminatePayload{Reason: reason, Players: players},
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryPresence
	pub.Publish(ctx, event)
}
