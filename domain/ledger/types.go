package ledger

import (
	"assaygate/domain/core"
)

// ClaimStatus is the lifecycle position of an epistemic claim
type ClaimStatus string

const (
	StatusOpen      ClaimStatus = "open"
	StatusResolved  ClaimStatus = "resolved"
	StatusAbandoned ClaimStatus = "abandoned"
)

// Claim is the agent's pre-registered statement of expected information
// gain. A claim moves Open -> Resolved exactly once; an unresolved claim at
// shutdown is an error state, not a silent success.
type Claim struct {
	ID       core.ClaimID   `json:"id"`
	DesignID core.DesignID  `json:"design_id"`
	Cycle    int            `json:"cycle"`
	Action   ProposedAction `json:"action"`

	ClaimedGainBits float64  `json:"claimed_gain_bits"`
	Modalities      []string `json:"modalities"`
	WellCount       int      `json:"well_count"`

	// PriorEntropyBits snapshots the posterior entropy at claim time.
	PriorEntropyBits float64 `json:"prior_entropy_bits"`

	Status   ClaimStatus    `json:"status"`
	OpenedAt core.Timestamp `json:"opened_at"`
}

// Resolution is the outcome of settling one claim against observed reality
type Resolution struct {
	ClaimID core.ClaimID `json:"claim_id"`
	Cycle   int          `json:"cycle"`

	ClaimedGainBits  float64 `json:"claimed_gain_bits"`
	RealizedGainBits float64 `json:"realized_gain_bits"`

	// DebtIncrement = max(0, claimed - realized); underclaiming never
	// produces credit.
	DebtIncrement float64 `json:"debt_increment"`
	DebtAfter     float64 `json:"debt_after"`

	ResolvedAt core.Timestamp `json:"resolved_at"`
}

// DebtState is the ledger's externally visible position
type DebtState struct {
	DebtBits            float64 `json:"debt_bits"`
	Insolvent           bool    `json:"insolvent"`
	HardThreshold       float64 `json:"hard_threshold"`
	ConsecutiveRefusals int     `json:"consecutive_refusals"`
	OpenClaims          int     `json:"open_claims"`
	TotalRepaidBits     float64 `json:"total_repaid_bits"`
}

// ProposedAction is the minimal description the ledger needs to rule on an
// action during insolvency. Whether an action counts as calibration is a
// fixed named-set lookup on the ledger, not a field the proposer controls.
type ProposedAction struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}
