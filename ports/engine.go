package ports

import (
	"context"

	"assaygate/domain/calibration"
	"assaygate/domain/core"
	"assaygate/domain/ledger"
	"assaygate/domain/mechanism"
)

// Design is the core's view of a proposed experiment. Plate layout, dosing
// schedules, and structural validation belong to the design collaborator;
// the core only needs identity, cost, and the agent's pre-registered claim.
type Design struct {
	ID     core.DesignID         `json:"id"`
	Action ledger.ProposedAction `json:"action"`

	ClaimedGainBits float64  `json:"claimed_gain_bits"`
	Modalities      []string `json:"modalities"`
	WellCount       int      `json:"well_count"`
}

// Observation is the execution engine's summary of a completed design:
// channel-level features for inference plus raw per-condition readings for
// calibration tracking.
type Observation struct {
	Features    mechanism.Features `json:"features"`
	Calibration calibration.Batch  `json:"calibration"`
}

// ExecutionEngine turns a design into readings. Engine failure is a distinct
// error and must never be folded into a zero-signal observation.
type ExecutionEngine interface {
	Execute(ctx context.Context, design Design) (Observation, error)
}
