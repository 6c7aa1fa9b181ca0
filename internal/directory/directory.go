package directory

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a realm or profile does not exist.
var ErrNotFound = errors.New("directory: not found")

// Realm is the static definition of a virtual space: who owns it, how it can
// be joined, and the opaque map payload its live session is built from.
type Realm struct {
	ID        string
	OwnerID   string
	ShareID   string
	OwnerOnly bool
	MapData   json.RawMessage
}

// Directory resolves realm definitions and profile metadata. The presence
// core only ever reads through this interface; where the rows actually live
// is the embedder's concern.
type Directory interface {
	// LookupRealm returns the definition for a realm id, or ErrNotFound.
	LookupRealm(ctx context.Context, realmID string) (Realm, error)
	// LookupProfileSkin returns the stored avatar skin for a uid, or
	// ErrNotFound when the user has no profile or no skin preference.
	LookupProfileSkin(ctx context.Context, uid string) (string, error)
}

// EventType labels a push notification about a realm definition.
type EventType string

const (
	// EventRealmChanged fires when a realm's map, share link, or visibility
	// was mutated; live sessions built on the old definition must end.
	EventRealmChanged EventType = "realm.changed"
	// EventRealmDeleted fires when a realm was removed entirely.
	EventRealmDeleted EventType = "realm.deleted"
)

// Event is a realm-definition change pushed from the system of record.
type Event struct {
	Type    EventType `json:"type"`
	RealmID string    `json:"realmId"`
}
