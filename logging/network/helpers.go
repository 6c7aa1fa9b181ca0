// Package network publishes transport-boundary events.
package network

import (
	"context"

	"plaza/server/logging"
)

const (
	// EventConnectionAccepted is emitted after a successful handshake.
	EventConnectionAccepted logging.EventType = "network.connection_accepted"
	// EventConnectionRejected is emitted when handshake credentials fail.
	EventConnectionRejected logging.EventType = "network.connection_rejected"
	// EventMalformedPayload is emitted when a frame fails shape validation.
	EventMalformedPayload logging.EventType = "network.malformed_payload"
	// EventSendFailed is emitted when a delivery attempt errors.
	EventSendFailed logging.EventType = "network.send_failed"
)

func ConnectionAccepted(ctx context.Context, pub logging.Publisher, uid, socketID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventConnectionAccepted,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"socketId": socketID},
	})
}

func ConnectionRejected(ctx context.Context, pub logging.Publisher, uid string) {
	publish(ctx, pub, logging.Event{
		Type:     EventConnectionRejected,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
	})
}

func MalformedPayload(ctx context.Context, pub logging.Publisher, uid, socketID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventMalformedPayload,
		Actor:    logging.EntityRef{ID: uid, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityDebug,
		Extra:    map[string]any{"socketId": socketID},
	})
}

func SendFailed(ctx context.Context, pub logging.Publisher, socketID, eventType string) {
	publish(ctx, pub, logging.Event{
		Type:     EventSendFailed,
		Actor:    logging.EntityRef{ID: socketID, Kind: logging.EntityKindSocket},
		Severity: logging.SeverityWarn,
		Extra:    map[string]any{"event": eventType},
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryNetwork
	pub.Publish(ctx, event)
}
