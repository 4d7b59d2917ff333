// Package inference computes the mechanism posterior: a Bayesian update
// over the closed candidate set plus the explicit nuisance competitor.
package inference

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"assaygate/domain/core"
	"assaygate/domain/mechanism"
	"assaygate/internal/config"
	"assaygate/ports"
)

// Engine scores hypotheses against channel features. Stateless between
// calls apart from configuration; every Infer call returns a fresh
// Posterior, never a mutated one.
type Engine struct {
	cfg        config.InferenceConfig
	calibrator ports.ConfidenceCalibrator
}

// NewEngine creates an engine. The calibrator is optional; pass nil when no
// offline-trained confidence model is available.
func NewEngine(cfg config.InferenceConfig, calibrator ports.ConfidenceCalibrator) *Engine {
	return &Engine{cfg: cfg, calibrator: calibrator}
}

// Infer runs the lossless Bayes update: posterior proportional to prior
// times multivariate-normal likelihood, with the nuisance hypothesis scored
// under inflated covariance and a density-dependent mean shift.
func (e *Engine) Infer(features mechanism.Features, hs mechanism.HypothesisSet, nm *mechanism.NuisanceModel) (mechanism.Posterior, error) {
	if err := hs.Validate(); err != nil {
		return mechanism.Posterior{}, err
	}
	dim := hs.Dim()
	if err := features.Validate(dim); err != nil {
		return mechanism.Posterior{}, err
	}

	var inflation, shift []float64
	if nm != nil {
		inflation = nm.CovarianceInflation(dim)
		shift = nm.MeanShift(features.Density, dim)
	}

	ids := make([]mechanism.MechanismID, 0, len(hs.Hypotheses))
	logPost := make([]float64, 0, len(hs.Hypotheses))
	logLiks := make(map[mechanism.MechanismID]float64, len(hs.Hypotheses))

	for _, h := range hs.Hypotheses {
		mean := h.Mean
		variance := h.Var
		if h.ID.IsNuisance() && nm != nil {
			mean = addVectors(h.Mean, shift)
			variance = addVectors(h.Var, inflation)
		}
		ll := diagonalNormalLogLik(features.Values, mean, variance)
		logLiks[h.ID] = ll

		lp := math.Inf(-1)
		if h.Prior > 0 {
			lp = math.Log(h.Prior) + ll
		}
		ids = append(ids, h.ID)
		logPost = append(logPost, lp)
	}

	norm := floats.LogSumExp(logPost)
	if math.IsInf(norm, -1) || math.IsNaN(norm) {
		return mechanism.Posterior{}, core.NewValidationError("likelihoods", "no hypothesis has support")
	}

	probs := make(map[mechanism.MechanismID]float64, len(ids))
	for i, id := range ids {
		probs[id] = math.Exp(logPost[i] - norm)
	}

	ambiguous, capped := CapAmbiguity(probs, e.cfg.ClarityThreshold, e.cfg.AmbiguityCeiling)

	top, topProb := topOf(probs)
	post := mechanism.Posterior{
		Probs:          probs,
		LogLikelihoods: logLiks,
		TopMechanism:   top,
		TopProbability: topProb,
		IsAmbiguous:    ambiguous,
		CapApplied:     capped,
	}
	post.Uncertainty = clamp01(1 - post.Margin())

	if e.calibrator != nil {
		cal := clamp01(e.calibrator.Calibrate(topProb))
		post.CalibratedConfidence = &cal
	}
	return post, nil
}

// CapAmbiguity applies the anti-overconfidence cap in place: when the
// relative top-two gap falls below the clarity threshold and the top
// probability exceeds the ceiling, the top is capped and the excess is
// redistributed across the rest. No redistributed probability may end above
// the capped top, or a repeat application would cap a different mechanism
// and lift the first one back up; the excess is therefore water-filled, and
// the effective ceiling is floored at 1/n, the smallest maximum any
// n-hypothesis posterior can have. The operation is idempotent and never
// increases the top probability.
func CapAmbiguity(probs map[mechanism.MechanismID]float64, clarity, ceiling float64) (ambiguous, capped bool) {
	top, topProb := topOf(probs)
	second := secondOf(probs, top)
	if topProb <= 0 {
		return false, false
	}
	if (topProb-second)/topProb >= clarity {
		return false, false
	}
	eff := ceiling
	if floor := 1 / float64(len(probs)); eff < floor {
		eff = floor
	}
	if topProb <= eff {
		return true, false
	}

	// Water-fill 1-eff into the non-top entries: scale proportionally,
	// clamping any entry that would pass the ceiling and rescaling the rest.
	remaining := 1 - eff
	atCap := make(map[mechanism.MechanismID]bool, len(probs))
	for {
		freeMass := 0.0
		free := 0
		for id, p := range probs {
			if id == top || atCap[id] {
				continue
			}
			freeMass += p
			free++
		}
		if free == 0 {
			break
		}
		if freeMass <= 0 {
			// Only zero-mass entries remain; spread the leftover evenly.
			// eff >= 1/n keeps each share at or below the cap.
			share := remaining / float64(free)
			for id := range probs {
				if id == top || atCap[id] {
					continue
				}
				probs[id] = share
			}
			remaining = 0
			break
		}
		scale := remaining / freeMass
		overflowed := false
		for id, p := range probs {
			if id == top || atCap[id] {
				continue
			}
			if p*scale >= eff {
				atCap[id] = true
				remaining -= eff
				overflowed = true
			}
		}
		if overflowed {
			continue
		}
		for id, p := range probs {
			if id == top || atCap[id] {
				continue
			}
			probs[id] = p * scale
		}
		remaining = 0
		break
	}
	for id := range atCap {
		probs[id] = eff
	}
	if remaining < 0 {
		remaining = 0
	}
	probs[top] = eff + remaining
	return true, true
}

// EvidenceStrength is the log2 Bayes factor of the leading mechanism over
// the nuisance hypothesis, the scalar the governance contract consumes as
// evidence strength.
func EvidenceStrength(p mechanism.Posterior) float64 {
	topLL, ok := p.LogLikelihoods[p.TopMechanism]
	if !ok {
		return 0
	}
	nuisLL, ok := p.LogLikelihoods[mechanism.Nuisance]
	if !ok {
		return 0
	}
	if p.TopMechanism.IsNuisance() {
		return 0
	}
	return (topLL - nuisLL) / math.Ln2
}

func diagonalNormalLogLik(x, mean, variance []float64) float64 {
	ll := 0.0
	for i := range x {
		v := variance[i]
		if v <= 0 {
			return math.Inf(-1)
		}
		d := x[i] - mean[i]
		ll += -0.5*math.Log(2*math.Pi*v) - d*d/(2*v)
	}
	return ll
}

func addVectors(a, b []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	for i := 0; i < len(out) && i < len(b); i++ {
		out[i] += b[i]
	}
	return out
}

func topOf(probs map[mechanism.MechanismID]float64) (mechanism.MechanismID, float64) {
	ids := make([]mechanism.MechanismID, 0, len(probs))
	for id := range probs {
		ids = append(ids, id)
	}
	// Deterministic tie-break by id so repeated calls agree.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var top mechanism.MechanismID
	best := math.Inf(-1)
	for _, id := range ids {
		if probs[id] > best {
			best = probs[id]
			top = id
		}
	}
	return top, best
}

func secondOf(probs map[mechanism.MechanismID]float64, top mechanism.MechanismID) float64 {
	second := 0.0
	for id, p := range probs {
		if id == top {
			continue
		}
		if p > second {
			second = p
		}
	}
	return second
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
