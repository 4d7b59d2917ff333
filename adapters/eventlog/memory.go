// Package eventlog provides audit-sink implementations of the event log
// port. The stream is append-only; nothing in the core reads it back.
package eventlog

import (
	"context"

	"assaygate/domain/audit"
)

// Memory is an in-process append-only sink for tests and development
type Memory struct {
	events []audit.Event
}

// NewMemory creates an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores the event
func (m *Memory) Append(_ context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything appended so far
func (m *Memory) Events() []audit.Event {
	out := make([]audit.Event, len(m.events))
	copy(out, m.events)
	return out
}

// BySchema filters the stream by schema tag
func (m *Memory) BySchema(schema audit.Schema) []audit.Event {
	var out []audit.Event
	for _, ev := range m.events {
		if ev.Schema == schema {
			out = append(out, ev)
		}
	}
	return out
}
