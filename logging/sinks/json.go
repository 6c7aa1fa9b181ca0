package sinks

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"plaza/server/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
}

// NewJSON writes NDJSON to an arbitrary writer.
func NewJSON(w io.Writer) *JSON {
	if w == nil {
		w = io.Discard
	}
	return &JSON{encoder: json.NewEncoder(w)}
}

// NewJSONFile writes NDJSON to a size-rotated file.
func NewJSONFile(cfg logging.JSONConfig) *JSON {
	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return &JSON{encoder: json.NewEncoder(lj), closer: lj}
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := map[string]any{
		"type":     event.Type,
		"time":     event.Time.Format(time.RFC3339Nano),
		"severity": event.Severity.String(),
		"category": event.Category,
		"actor":    event.Actor,
		"realm":    event.Realm,
		"payload":  event.Payload,
		"extra":    event.Extra,
	}
	return s.encoder.Encode(wire)
}

func (s *JSON) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
