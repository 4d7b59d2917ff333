// Package app wires the accountability core into one run-scoped object: per
// cycle, gate update, inference, governance, then debt resolution. All state
// is exclusively owned by the run; concurrent runs construct their own.
package app

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"assaygate/domain/audit"
	"assaygate/domain/calibration"
	"assaygate/domain/core"
	domaingov "assaygate/domain/governance"
	domainledger "assaygate/domain/ledger"
	"assaygate/domain/mechanism"
	"assaygate/internal"
	"assaygate/internal/config"
	"assaygate/internal/gatekeeper"
	"assaygate/internal/governance"
	"assaygate/internal/inference"
	"assaygate/internal/ledger"
	"assaygate/ports"
)

// CycleOutcome is one completed decision cycle's record
type CycleOutcome struct {
	Cycle       int                      `json:"cycle"`
	Posterior   mechanism.Posterior      `json:"posterior"`
	Evidence    float64                  `json:"evidence"`
	Decision    domaingov.Decision       `json:"decision"`
	Resolution  domainledger.Resolution  `json:"resolution"`
	Transitions []calibration.Transition `json:"transitions,omitempty"`
	Repaid      float64                  `json:"repaid,omitempty"`
}

// Run owns one continuous accountability history. Not safe for concurrent
// use; the only blocking point is the external execution engine call.
type Run struct {
	id     core.RunID
	cfg    *config.Config
	logger *internal.Logger

	tracker *gatekeeper.Tracker
	engine  *inference.Engine
	debts   *ledger.Ledger
	ece     *inference.ECETracker

	hypotheses mechanism.HypothesisSet
	nuisance   *mechanism.NuisanceModel

	exec   ports.ExecutionEngine
	events ports.EventLog

	cycle       int
	openClaim   *domainledger.Claim
	lastPost    *mechanism.Posterior
	history     []CycleOutcome
	terminated  bool
	terminalErr error

	budget          float64
	cheapestCalCost float64
}

// Option configures a run at construction
type Option func(*Run)

// WithCalibrator wires an offline-trained confidence calibrator
func WithCalibrator(c ports.ConfidenceCalibrator) Option {
	return func(r *Run) {
		r.engine = inference.NewEngine(r.cfg.Inference, c)
	}
}

// WithBudget sets the remaining budget and the cheapest calibration action
// cost used by the anti-deadlock check. Without it the budget is unbounded.
func WithBudget(budget, cheapestCalibration float64) Option {
	return func(r *Run) {
		r.budget = budget
		r.cheapestCalCost = cheapestCalibration
	}
}

// WithLogger overrides the default logger
func WithLogger(l *internal.Logger) Option {
	return func(r *Run) { r.logger = l }
}

// NewRun builds a run with fully independent component instances
func NewRun(cfg *config.Config, hs mechanism.HypothesisSet, nm *mechanism.NuisanceModel, exec ports.ExecutionEngine, events ports.EventLog, opts ...Option) (*Run, error) {
	if err := hs.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, core.NewValidationError("execution_engine", "required")
	}
	if events == nil {
		return nil, core.NewValidationError("event_log", "required")
	}
	r := &Run{
		id:         core.NewRunID(),
		cfg:        cfg,
		logger:     internal.NewDefaultLogger(),
		tracker:    gatekeeper.NewTracker(cfg.Gate),
		engine:     inference.NewEngine(cfg.Inference, nil),
		debts:      ledger.NewLedger(cfg.Ledger),
		ece:        inference.NewECETracker(cfg.Inference.ECEBins, cfg.Inference.ECEMinSamples),
		hypotheses: hs,
		nuisance:   nm,
		exec:       exec,
		events:     events,
		budget:     math.Inf(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ID returns the run identifier
func (r *Run) ID() core.RunID { return r.id }

// ProposeAndClaim registers the agent's claimed information gain before any
// wells are touched. While insolvent it refuses everything off the
// calibration allowlist and, past the refusal budget, terminates the run as
// bankrupt rather than looping.
func (r *Run) ProposeAndClaim(ctx context.Context, design ports.Design) (core.ClaimID, error) {
	if r.terminated {
		return "", fmt.Errorf("run terminated: %w", r.terminalErr)
	}
	if r.openClaim != nil {
		return "", fmt.Errorf("%w: claim %s still open", core.ErrBadInput, r.openClaim.ID)
	}

	if refuse, reason := r.debts.ShouldRefuse(design.Action); refuse {
		if err := r.append(ctx, audit.SchemaRefusal, map[string]any{
			"design_id": design.ID,
			"action":    design.Action.Name,
			"reason":    reason,
		}); err != nil {
			return "", err
		}
		r.logger.Warn("run %s: refused %s: %s", r.id, design.Action.Name, reason)

		if err := r.debts.NoteRefusal(); err != nil {
			r.terminate(ctx, err, audit.SchemaBankruptcy)
			return "", err
		}
		if err := r.debts.CheckEscape(r.budget, r.cheapestCalCost); err != nil {
			r.terminate(ctx, err, audit.SchemaRunAborted)
			return "", err
		}
		return "", fmt.Errorf("%w: %s", core.ErrInsolvent, reason)
	}

	claim, err := r.debts.OpenClaim(design.ID, r.cycle, design.Action, design.ClaimedGainBits, design.Modalities, design.WellCount, r.priorEntropyBits())
	if err != nil {
		return "", err
	}
	r.openClaim = &claim
	r.budget -= design.Action.Cost

	if err := r.append(ctx, audit.SchemaClaimOpened, claim); err != nil {
		return "", err
	}
	r.logger.Debug("run %s cycle %d: claim %s opened for %s (%.3f bits claimed)",
		r.id, r.cycle, claim.ID, design.Action.Name, design.ClaimedGainBits)
	return claim.ID, nil
}

// ExecuteDesign delegates to the execution engine. Engine failure surfaces
// as a distinct error, never as a zero-signal observation.
func (r *Run) ExecuteDesign(ctx context.Context, design ports.Design) (ports.Observation, error) {
	obs, err := r.exec.Execute(ctx, design)
	if err != nil {
		return ports.Observation{}, fmt.Errorf("%w: %v", core.ErrExecutionFailed, err)
	}
	return obs, nil
}

// ObserveAndResolve settles the open claim against what the observation
// actually taught: gates update first, then inference, then governance, then
// the debt resolution. Every step lands in the audit stream.
func (r *Run) ObserveAndResolve(ctx context.Context, claimID core.ClaimID, obs ports.Observation) (domainledger.Resolution, error) {
	if r.terminated {
		return domainledger.Resolution{}, fmt.Errorf("run terminated: %w", r.terminalErr)
	}
	if r.openClaim == nil || r.openClaim.ID != claimID {
		return domainledger.Resolution{}, fmt.Errorf("%w: %s", core.ErrUnknownClaim, claimID)
	}
	claim := *r.openClaim

	widthBefore := r.meanGateWidth()
	transitions, err := r.tracker.Update(obs.Calibration)
	if err != nil {
		r.logger.Warn("run %s cycle %d: gate update: %v", r.id, r.cycle, err)
	}
	for _, tr := range transitions {
		if err := r.append(ctx, audit.SchemaGateTransition, tr); err != nil {
			return domainledger.Resolution{}, err
		}
	}

	post, inferErr := r.engine.Infer(obs.Features, r.hypotheses, r.nuisance)
	evidence := 0.0
	if inferErr != nil {
		// Fail closed: a malformed observation renders a NO_COMMIT
		// decision, never an exception mid-cycle.
		r.logger.Warn("run %s cycle %d: inference: %v", r.id, r.cycle, inferErr)
		post = mechanism.Posterior{}
	} else {
		evidence = inference.EvidenceStrength(post)
	}

	decision := governance.Decide(post, evidence, r.cfg.Governance)
	r.logger.Debug("run %s cycle %d: %s top=%s(%.3f) nuisance=%.3f evidence=%.2f blocker=%s",
		r.id, r.cycle, decision.Action, post.TopMechanism, post.TopProbability,
		post.NuisanceProbability(), evidence, decision.Blocker)
	if err := r.append(ctx, audit.SchemaGovernanceDecision, map[string]any{
		"decision":  decision,
		"posterior": post.Probs,
		"evidence":  evidence,
	}); err != nil {
		return domainledger.Resolution{}, err
	}

	posteriorEntropy := claim.PriorEntropyBits
	if inferErr == nil {
		posteriorEntropy = post.EntropyBits()
	}
	resolution, err := r.debts.Resolve(claim.ID, claim.PriorEntropyBits, posteriorEntropy)
	if err != nil {
		return domainledger.Resolution{}, err
	}
	if err := r.append(ctx, audit.SchemaClaimResolved, resolution); err != nil {
		return domainledger.Resolution{}, err
	}

	repaid := 0.0
	if r.debts.IsCalibrationAction(claim.Action.Name) {
		repaid = r.debts.RepayFromCalibration(widthBefore, r.meanGateWidth(), claim.ClaimedGainBits)
		if repaid > 0 {
			if err := r.append(ctx, audit.SchemaRepayment, map[string]any{
				"claim_id":     claim.ID,
				"repaid_bits":  repaid,
				"width_before": widthBefore,
			}); err != nil {
				return domainledger.Resolution{}, err
			}
		}
	}

	outcome := CycleOutcome{
		Cycle:       r.cycle,
		Posterior:   post,
		Evidence:    evidence,
		Decision:    decision,
		Resolution:  resolution,
		Transitions: transitions,
		Repaid:      repaid,
	}
	r.history = append(r.history, outcome)
	if inferErr == nil {
		r.lastPost = &post
	}
	r.openClaim = nil
	r.cycle++
	return resolution, nil
}

// Abort discards the outstanding claim as a logged anomaly and terminates
// the run. It never resolves the claim as zero gain.
func (r *Run) Abort(ctx context.Context, reason string) error {
	if r.openClaim != nil {
		if err := r.debts.Abandon(r.openClaim.ID); err != nil {
			return err
		}
		if err := r.append(ctx, audit.SchemaClaimAbandoned, map[string]any{
			"claim_id": r.openClaim.ID,
			"reason":   reason,
		}); err != nil {
			return err
		}
		r.openClaim = nil
	}
	r.terminate(ctx, fmt.Errorf("aborted: %s", reason), audit.SchemaRunAborted)
	return nil
}

// Close verifies a clean shutdown. An unresolved claim here is an error
// state, not a silent success.
func (r *Run) Close(ctx context.Context) error {
	if r.openClaim != nil {
		if err := r.append(ctx, audit.SchemaClaimAbandoned, map[string]any{
			"claim_id": r.openClaim.ID,
			"reason":   "unresolved at shutdown",
		}); err != nil {
			return err
		}
		id := r.openClaim.ID
		_ = r.debts.Abandon(id)
		r.openClaim = nil
		return fmt.Errorf("%w: %s", core.ErrUnresolvedClaims, id)
	}
	return nil
}

// CurrentGateStatus returns a snapshot of every tracked gate
func (r *Run) CurrentGateStatus() map[calibration.Quantity]calibration.Gate {
	return r.tracker.Gates()
}

// CurrentDebtStatus returns the ledger's visible position
func (r *Run) CurrentDebtStatus() domainledger.DebtState {
	return r.debts.State()
}

// History returns completed cycle outcomes, oldest first
func (r *Run) History() []CycleOutcome {
	out := make([]CycleOutcome, len(r.history))
	copy(out, r.history)
	return out
}

// Terminated reports whether the run has reached a terminal condition
func (r *Run) Terminated() (bool, error) {
	return r.terminated, r.terminalErr
}

// RecordCorrectness feeds ground truth for a past committed decision into
// the expected-calibration-error tracker.
func (r *Run) RecordCorrectness(confidence float64, correct bool) {
	r.ece.Record(confidence, correct)
}

// ECEReport returns the current calibration-error summary
func (r *Run) ECEReport() inference.ECEReport {
	return r.ece.Compute()
}

func (r *Run) priorEntropyBits() float64 {
	if r.lastPost != nil {
		return r.lastPost.EntropyBits()
	}
	priors := make([]float64, 0, len(r.hypotheses.Hypotheses))
	for _, h := range r.hypotheses.Hypotheses {
		if h.Prior > 0 {
			priors = append(priors, h.Prior)
		}
	}
	if len(priors) == 0 {
		return 0
	}
	return stat.Entropy(priors) / math.Ln2
}

// meanGateWidth is the repayment evidence proxy: the average CI relative
// width across tracked gates.
func (r *Run) meanGateWidth() float64 {
	gates := r.tracker.Gates()
	if len(gates) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range gates {
		sum += g.RelativeWidth
	}
	return sum / float64(len(gates))
}

func (r *Run) terminate(ctx context.Context, cause error, schema audit.Schema) {
	r.terminated = true
	r.terminalErr = cause
	if err := r.append(ctx, schema, map[string]any{"cause": cause.Error()}); err != nil {
		r.logger.Error("run %s: terminal event append failed: %v", r.id, err)
	}
	r.logger.Error("run %s terminated: %v", r.id, cause)
}

func (r *Run) append(ctx context.Context, schema audit.Schema, payload any) error {
	ev := audit.New(r.id, r.cycle, schema, payload)
	if err := r.events.Append(ctx, ev); err != nil {
		return fmt.Errorf("%w: %v", core.ErrEventLogFailed, err)
	}
	return nil
}
