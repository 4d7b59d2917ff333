package calibration

import (
	"assaygate/domain/core"
)

// Quantity names a tracked calibration quantity
type Quantity string

const (
	QuantityGlobalNoise  Quantity = "global_noise"
	QuantityFluorescence Quantity = "assay_fluorescence"
	QuantityViability    Quantity = "assay_viability"
	QuantityTranscript   Quantity = "assay_transcript"
)

// String returns the string representation
func (q Quantity) String() string { return string(q) }

// GateState is the explicit hysteresis state machine position.
// UNSTABLE -> ACCUMULATING -> STABLE, any state -> UNSTABLE on breach.
type GateState string

const (
	StateUnstable     GateState = "UNSTABLE"
	StateAccumulating GateState = "ACCUMULATING"
	StateStable       GateState = "STABLE"
)

// Gate is the calibration status of one tracked quantity. Mutated only by
// the gate tracker; read-only everywhere else.
type Gate struct {
	Quantity Quantity  `json:"quantity"`
	State    GateState `json:"state"`

	// Stable mirrors State == STABLE for consumers that only need the bit.
	Stable bool `json:"stable"`

	// PooledVariance is the df-weighted pooled sample variance estimate.
	PooledVariance   float64 `json:"pooled_variance"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`

	// RelativeWidth is (upper-lower)/(2*estimate) of the chi-square CI.
	RelativeWidth float64 `json:"relative_width"`

	// ConsecutiveStable counts updates inside the enter threshold.
	ConsecutiveStable int `json:"consecutive_stable"`

	// Drift is the pooled estimate's relative deviation from its own
	// trailing-window history.
	Drift float64 `json:"drift"`

	Updates     int            `json:"updates"`
	LastUpdated core.Timestamp `json:"last_updated"`
}

// BreachKind classifies what revoked or blocked stability
type BreachKind string

const (
	BreachNone  BreachKind = ""
	BreachWidth BreachKind = "width_exceeded"
	BreachDrift BreachKind = "drift_exceeded"
)

// Transition records one gate state flip with its triggering evidence.
// Every flip is appended to the audit stream by the caller.
type Transition struct {
	Quantity      Quantity       `json:"quantity"`
	From          GateState      `json:"from"`
	To            GateState      `json:"to"`
	Breach        BreachKind     `json:"breach,omitempty"`
	RelativeWidth float64        `json:"relative_width"`
	Drift         float64        `json:"drift"`
	Consecutive   int            `json:"consecutive"`
	At            core.Timestamp `json:"at"`
}

// ConditionReadings is one condition's raw per-well values for a quantity,
// the only shape in which raw measurements enter the core.
type ConditionReadings struct {
	Quantity  Quantity  `json:"quantity"`
	Condition string    `json:"condition"`
	Values    []float64 `json:"values"`
}

// Batch is one update's worth of readings across conditions
type Batch struct {
	Readings []ConditionReadings `json:"readings"`
}

// Quantities returns the distinct quantities present in the batch
func (b Batch) Quantities() []Quantity {
	seen := make(map[Quantity]bool)
	var out []Quantity
	for _, r := range b.Readings {
		if !seen[r.Quantity] {
			seen[r.Quantity] = true
			out = append(out, r.Quantity)
		}
	}
	return out
}
