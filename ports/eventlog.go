package ports

import (
	"context"

	"assaygate/domain/audit"
)

// EventLog is the append-only audit sink. Every gate transition, governance
// decision, and debt resolution is appended as one immutable record. The
// core writes and never reads back.
type EventLog interface {
	Append(ctx context.Context, event audit.Event) error
}
