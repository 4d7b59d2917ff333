// Package ledger charges the agent real, trackable debt whenever it claims
// more information than it gains. Debt above the hard threshold blocks every
// non-calibration action until repaid through calibration evidence.
package ledger

import (
	"fmt"
	"math"

	"assaygate/domain/core"
	"assaygate/domain/ledger"
	"assaygate/internal/config"
)

// DefaultCalibrationActions is the fixed allowlist of actions that remain
// permitted while insolvent. Classification is a named-set lookup, not a
// property inferred from the action's effect.
func DefaultCalibrationActions() map[string]bool {
	return map[string]bool{
		"recalibrate_instrument": true,
		"baseline_replicates":    true,
		"instrument_blank":       true,
		"dye_titration":          true,
	}
}

// Ledger is one run's epistemic debt state. Exclusively owned by its run;
// never shared.
type Ledger struct {
	cfg config.LedgerConfig

	claims map[core.ClaimID]*ledger.Claim
	order  []core.ClaimID

	debt        float64
	refusals    int
	totalRepaid float64

	calibrationActions map[string]bool
}

// NewLedger creates an empty ledger with the default calibration allowlist
func NewLedger(cfg config.LedgerConfig) *Ledger {
	return &Ledger{
		cfg:                cfg,
		claims:             make(map[core.ClaimID]*ledger.Claim),
		calibrationActions: DefaultCalibrationActions(),
	}
}

// OpenClaim registers the agent's pre-act statement of expected gain
func (l *Ledger) OpenClaim(designID core.DesignID, cycle int, action ledger.ProposedAction, claimedBits float64, modalities []string, wellCount int, priorEntropyBits float64) (ledger.Claim, error) {
	if math.IsNaN(claimedBits) || math.IsInf(claimedBits, 0) || claimedBits < 0 {
		return ledger.Claim{}, core.NewValidationError("claimed_gain_bits", fmt.Sprintf("must be finite and non-negative, got %v", claimedBits))
	}
	claim := ledger.Claim{
		ID:               core.NewClaimID(),
		DesignID:         designID,
		Cycle:            cycle,
		Action:           action,
		ClaimedGainBits:  claimedBits,
		Modalities:       append([]string(nil), modalities...),
		WellCount:        wellCount,
		PriorEntropyBits: priorEntropyBits,
		Status:           ledger.StatusOpen,
		OpenedAt:         core.Now(),
	}
	l.claims[claim.ID] = &claim
	l.order = append(l.order, claim.ID)
	return claim, nil
}

// Resolve settles one open claim against the realized entropy delta. A claim
// resolves exactly once; the shortfall, if any, is added to cumulative debt.
func (l *Ledger) Resolve(claimID core.ClaimID, priorEntropyBits, posteriorEntropyBits float64) (ledger.Resolution, error) {
	claim, ok := l.claims[claimID]
	if !ok {
		return ledger.Resolution{}, fmt.Errorf("%w: %s", core.ErrUnknownClaim, claimID)
	}
	if claim.Status != ledger.StatusOpen {
		return ledger.Resolution{}, fmt.Errorf("%w: %s is %s", core.ErrClaimResolved, claimID, claim.Status)
	}

	realized := priorEntropyBits - posteriorEntropyBits
	increment := claim.ClaimedGainBits - realized
	if increment < 0 {
		increment = 0
	}
	l.debt += increment
	claim.Status = ledger.StatusResolved

	return ledger.Resolution{
		ClaimID:          claimID,
		Cycle:            claim.Cycle,
		ClaimedGainBits:  claim.ClaimedGainBits,
		RealizedGainBits: realized,
		DebtIncrement:    increment,
		DebtAfter:        l.debt,
		ResolvedAt:       core.Now(),
	}, nil
}

// Abandon marks an open claim as discarded after a mid-cycle abort. The
// caller logs the anomaly; abandoning is never a silent zero-gain resolve.
func (l *Ledger) Abandon(claimID core.ClaimID) error {
	claim, ok := l.claims[claimID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownClaim, claimID)
	}
	if claim.Status != ledger.StatusOpen {
		return fmt.Errorf("%w: %s is %s", core.ErrClaimResolved, claimID, claim.Status)
	}
	claim.Status = ledger.StatusAbandoned
	return nil
}

// ShouldRefuse rules on a proposed action under the current debt position
func (l *Ledger) ShouldRefuse(action ledger.ProposedAction) (bool, string) {
	if !l.insolvent() {
		return false, ""
	}
	if l.IsCalibrationAction(action.Name) {
		return false, ""
	}
	return true, fmt.Sprintf("debt %.3f bits at or above hard threshold %.3f; only calibration actions are permitted", l.debt, l.cfg.HardThresholdBits)
}

// IsCalibrationAction reports whether the name is on the fixed allowlist
func (l *Ledger) IsCalibrationAction(name string) bool {
	return l.calibrationActions[name]
}

// NoteRefusal records one enforced refusal. After the configured number of
// consecutive refusals with no successful calibration escape, the run is
// bankrupt: a terminal condition, not a loop.
func (l *Ledger) NoteRefusal() error {
	l.refusals++
	if l.refusals >= l.cfg.BankruptcyRefusals {
		return fmt.Errorf("%w: %d consecutive refusals without calibration escape", core.ErrBankrupt, l.refusals)
	}
	return nil
}

// RepayFromCalibration credits debt from calibration evidence actually
// produced: the log2 ratio of gate relative widths, one bit per halving of
// the interval. The credit is capped at a fixed multiple of the action's
// nominal value so the repayment estimator cannot be farmed.
func (l *Ledger) RepayFromCalibration(widthBefore, widthAfter, nominalBits float64) float64 {
	if widthBefore <= 0 || widthAfter <= 0 || widthAfter >= widthBefore {
		return 0
	}
	derived := math.Log2(widthBefore / widthAfter)
	capBits := l.cfg.RepaymentCapFactor * nominalBits
	if derived > capBits {
		derived = capBits
	}
	if derived <= 0 {
		return 0
	}
	applied := derived
	if applied > l.debt {
		applied = l.debt
	}
	l.debt -= applied
	l.totalRepaid += applied
	l.refusals = 0
	return applied
}

// CheckEscape verifies the anti-deadlock floor: while insolvent at least one
// calibration action must remain affordable, otherwise the run must abort
// explicitly rather than spin.
func (l *Ledger) CheckEscape(remainingBudget, cheapestCalibrationCost float64) error {
	if !l.insolvent() {
		return nil
	}
	if remainingBudget < cheapestCalibrationCost {
		return fmt.Errorf("%w: budget %.2f below cheapest calibration cost %.2f", core.ErrBudgetExhausted, remainingBudget, cheapestCalibrationCost)
	}
	return nil
}

// State returns the externally visible debt position
func (l *Ledger) State() ledger.DebtState {
	open := 0
	for _, c := range l.claims {
		if c.Status == ledger.StatusOpen {
			open++
		}
	}
	return ledger.DebtState{
		DebtBits:            l.debt,
		Insolvent:           l.insolvent(),
		HardThreshold:       l.cfg.HardThresholdBits,
		ConsecutiveRefusals: l.refusals,
		OpenClaims:          open,
		TotalRepaidBits:     l.totalRepaid,
	}
}

// OpenClaims lists unresolved claims in the order they were opened
func (l *Ledger) OpenClaims() []ledger.Claim {
	var out []ledger.Claim
	for _, id := range l.order {
		if c := l.claims[id]; c.Status == ledger.StatusOpen {
			out = append(out, *c)
		}
	}
	return out
}

// Claim returns one claim by id
func (l *Ledger) Claim(claimID core.ClaimID) (ledger.Claim, bool) {
	c, ok := l.claims[claimID]
	if !ok {
		return ledger.Claim{}, false
	}
	return *c, true
}

func (l *Ledger) insolvent() bool {
	return l.debt >= l.cfg.HardThresholdBits
}
