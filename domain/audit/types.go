package audit

import (
	"assaygate/domain/core"
)

// Schema tags one event record's payload shape. The stream is append-only;
// the core never reads it back to reconstruct state.
type Schema string

const (
	SchemaGateTransition     Schema = "gate_transition.v1"
	SchemaGovernanceDecision Schema = "governance_decision.v1"
	SchemaClaimOpened        Schema = "claim_opened.v1"
	SchemaClaimResolved      Schema = "claim_resolved.v1"
	SchemaClaimAbandoned     Schema = "claim_abandoned.v1"
	SchemaRefusal            Schema = "refusal.v1"
	SchemaRepayment          Schema = "repayment.v1"
	SchemaBankruptcy         Schema = "bankruptcy.v1"
	SchemaRunAborted         Schema = "run_aborted.v1"
)

// Event is one immutable, timestamped audit record
type Event struct {
	ID      core.EventID   `json:"id"`
	RunID   core.RunID     `json:"run_id"`
	Cycle   int            `json:"cycle"`
	Schema  Schema         `json:"schema"`
	At      core.Timestamp `json:"at"`
	Payload any            `json:"payload"`
}

// New builds an event with a fresh id and current timestamp
func New(runID core.RunID, cycle int, schema Schema, payload any) Event {
	return Event{
		ID:      core.NewEventID(),
		RunID:   runID,
		Cycle:   cycle,
		Schema:  schema,
		At:      core.Now(),
		Payload: payload,
	}
}
