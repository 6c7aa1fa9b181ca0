package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"plaza/server/logging"
)

// Console renders events as single human-readable lines.
type Console struct {
	logger *log.Logger
}

func NewConsole(w io.Writer) *Console {
	return &Console{logger: log.New(w, "", log.LstdFlags)}
}

func (s *Console) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] severity=%s%s%s%s",
		event.Type, event.Severity, formatRealm(event.Realm),
		formatActor(event.Actor), formatPayload(event.Payload))
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func formatRealm(realm string) string {
	if realm == "" {
		return ""
	}
	return fmt.Sprintf(" realm=%s", realm)
}

func formatActor(ref logging.EntityRef) string {
	if ref.ID == "" {
		return ""
	}
	if ref.Kind == "" {
		return fmt.Sprintf(" actor=%s", ref.ID)
	}
	return fmt.Sprintf(" actor=%s:%s", ref.Kind, ref.ID)
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
