package governance

import (
	"assaygate/domain/mechanism"
)

// Action is the terminal decision tag
type Action string

const (
	ActionCommit      Action = "COMMIT"
	ActionNoCommit    Action = "NO_COMMIT"
	ActionNoDetection Action = "NO_DETECTION"
)

// Blocker is the machine-readable reason a more decisive action was withheld
type Blocker string

const (
	BlockerNone           Blocker = ""
	BlockerBadInput       Blocker = "BAD_INPUT"
	BlockerLowTopProb     Blocker = "TOP_PROB_BELOW_COMMIT_THRESHOLD"
	BlockerHighNuisance   Blocker = "NUISANCE_ABOVE_CEILING"
	BlockerStrongEvidence Blocker = "STRONG_EVIDENCE_FORBIDS_NO_DETECTION"
	BlockerWeakEvidence   Blocker = "EVIDENCE_BELOW_DETECTION_FLOOR"
	BlockerAmbiguous      Blocker = "TOP_TWO_GAP_BELOW_CLARITY"
)

// Decision is the output of the governance contract. The contract itself is
// stateless; the caller logs every decision for audit.
type Decision struct {
	Action    Action                `json:"action"`
	Mechanism mechanism.MechanismID `json:"mechanism,omitempty"` // COMMIT only
	Reason    string                `json:"reason"`
	Blocker   Blocker               `json:"blocker,omitempty"`
}

// Thresholds parameterizes the governance contract
type Thresholds struct {
	// CommitThreshold is the minimum top posterior probability for COMMIT.
	CommitThreshold float64 `json:"commit_threshold"`

	// NuisanceCeiling is the maximum nuisance probability tolerated for COMMIT.
	NuisanceCeiling float64 `json:"nuisance_ceiling"`

	// StrongEvidence is the evidence strength at which NO_DETECTION becomes
	// forbidden (anti-cowardice).
	StrongEvidence float64 `json:"strong_evidence"`

	// DetectionFloor is the evidence strength below which NO_DETECTION is
	// permitted when nothing stands out.
	DetectionFloor float64 `json:"detection_floor"`
}

// DefaultThresholds returns the reference operating point
func DefaultThresholds() Thresholds {
	return Thresholds{
		CommitThreshold: 0.80,
		NuisanceCeiling: 0.35,
		StrongEvidence:  2.0,
		DetectionFloor:  0.25,
	}
}
