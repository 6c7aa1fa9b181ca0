package net

import (
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"time"

	server "plaza/server"
	"plaza/server/internal/directory"
	"plaza/server/internal/net/ws"
	"plaza/server/internal/telemetry"
	"plaza/server/logging"
)

// HTTPHandlerConfig configures the public HTTP surface.
type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// EventStats reports event-router counters on /diagnostics when set.
	EventStats func() logging.RouterStats
}

// NewHTTPHandler assembles the server's HTTP routes: health and diagnostics
// probes, the websocket endpoint, and the internal webhook through which the
// system of record pushes realm-definition changes.
func NewHTTPHandler(hub *server.Hub, wsHandler *ws.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	started := time.Now()
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			UptimeSecs int64                `json:"uptimeSecs"`
			Presence   server.Diagnostics   `json:"presence"`
			Events     *logging.RouterStats `json:"events,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			UptimeSecs: int64(time.Since(started).Seconds()),
			Presence:   hub.DiagnosticsSnapshot(),
		}
		if cfg.EventStats != nil {
			stats := cfg.EventStats()
			payload.Events = &stats
		}
		data, err := json.Marshal(payload)
		if err != nil {
			nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/ws", wsHandler.Handle)

	// The realm webhook is how realm-changed / realm-deleted pushes reach
	// the hub. It terminates the affected live session; joins racing the
	// termination serialize on the store.
	mux.HandleFunc("/internal/realms", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			nethttp.Error(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, 4096))
		if err != nil {
			nethttp.Error(w, "unreadable body", nethttp.StatusBadRequest)
			return
		}
		var event directory.Event
		if err := json.Unmarshal(body, &event); err != nil || event.RealmID == "" {
			logger.Printf("dropping malformed realm event: %v", err)
			nethttp.Error(w, "malformed event", nethttp.StatusBadRequest)
			return
		}

		switch event.Type {
		case directory.EventRealmChanged:
			hub.TerminateRealm(r.Context(), event.RealmID, server.KickRealmChanged)
		case directory.EventRealmDeleted:
			hub.TerminateRealm(r.Context(), event.RealmID, server.KickRealmDeleted)
		default:
			nethttp.Error(w, "unknown event type", nethttp.StatusBadRequest)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	})

	return mux
}
