package server

// Join rejection reasons surfaced to the requesting client. The connection
// stays alive after any of these.
const (
	RejectInvalidRequest = "Invalid request data."
	RejectAlreadyJoining = "Already joining a space."
	RejectRealmFull      = "Space is full. It's 30 players max."
	RejectRealmNotFound  = "Space not found."
	RejectRealmPrivate   = "This realm is private right now. Come back later!"
	RejectStaleShareLink = "The share link has been changed."
)

// Kick and termination reasons. Clients surface these verbatim.
const (
	KickDuplicateLogin = "You have logged in from another location."
	KickRealmChanged   = "This realm has been changed by the owner."
	KickRealmDeleted   = "This realm is no longer available."
)

// DefaultSkin is assigned when a profile carries no skin preference.
const DefaultSkin = "009"

// Outbound event payloads. Event names live in internal/net/proto; the
// gateway pairs a name with one of these and encodes the envelope.

type JoinedRealmPayload struct {
	Player Player `json:"player"`
}

type FailedToJoinPayload struct {
	Reason string `json:"reason"`
}

type PlayerLeftPayload struct {
	UID string `json:"uid"`
}

type MovedPayload struct {
	UID string  `json:"uid"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type ProximityPayload struct {
	// ProximityID is null when the player is ungrouped.
	ProximityID *string `json:"proximityId"`
}

type SkinPayload struct {
	UID  string `json:"uid"`
	Skin string `json:"skin"`
}

type MessagePayload struct {
	UID     string `json:"uid"`
	Message string `json:"message"`
}

type KickedPayload struct {
	Reason string `json:"reason"`
}
