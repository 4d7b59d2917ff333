// Package postgres persists the audit stream to an append-only table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"assaygate/domain/audit"
)

// Sink appends audit events to postgres. It satisfies the event log port;
// the core never queries the table back.
type Sink struct {
	db *sqlx.DB
}

// Open connects to postgres and verifies the connection
func Open(databaseURL string) (*Sink, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("eventlog: connect: %w", err)
	}
	return &Sink{db: db}, nil
}

// NewSink wraps an existing connection
func NewSink(db *sqlx.DB) *Sink {
	return &Sink{db: db}
}

// Append writes one immutable event row
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, run_id, cycle, schema, at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID.String(), event.RunID.String(), event.Cycle,
		string(event.Schema), event.At.Time(), payload,
	)
	if err != nil {
		return fmt.Errorf("eventlog: insert: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Sink) Close() error {
	return s.db.Close()
}
