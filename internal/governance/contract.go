// Package governance renders terminal decisions from posterior evidence.
// Decide is pure and deterministic: no hidden state, no side effects; audit
// logging happens in the caller immediately after each call.
package governance

import (
	"fmt"
	"math"

	"assaygate/domain/governance"
	"assaygate/domain/mechanism"
)

// Decide maps one posterior to {COMMIT, NO_COMMIT, NO_DETECTION}. It
// consumes the full probability mapping plus ambiguity fields, never a
// pre-collapsed argmax. Rule order, first match wins:
//
//  1. invalid probabilities: fail closed, NO_COMMIT with BAD_INPUT
//  2. anti-cowardice: strong evidence forbids NO_DETECTION
//  3. anti-hubris: COMMIT only with high top probability AND low nuisance
//  4. default NO_COMMIT carrying the specific blocker
func Decide(post mechanism.Posterior, evidenceStrength float64, th governance.Thresholds) governance.Decision {
	if blocker, reason := validate(post, evidenceStrength); blocker != governance.BlockerNone {
		return governance.Decision{
			Action:  governance.ActionNoCommit,
			Reason:  reason,
			Blocker: blocker,
		}
	}

	top, topProb := argmax(post.Probs)
	nuisanceProb := post.Probs[mechanism.Nuisance]
	strong := evidenceStrength >= th.StrongEvidence

	// NO_DETECTION is on the table only when nothing mechanistic leads and
	// the evidence is genuinely weak.
	wouldDeclareNothing := top.IsNuisance() && evidenceStrength < th.DetectionFloor

	if wouldDeclareNothing && strong {
		return governance.Decision{
			Action:  governance.ActionNoCommit,
			Reason:  fmt.Sprintf("evidence strength %.2f meets the strong-evidence bar; declaring no detection is forbidden", evidenceStrength),
			Blocker: governance.BlockerStrongEvidence,
		}
	}

	if topProb >= th.CommitThreshold && nuisanceProb <= th.NuisanceCeiling && !top.IsNuisance() {
		if post.IsAmbiguous {
			return governance.Decision{
				Action:  governance.ActionNoCommit,
				Reason:  fmt.Sprintf("top mechanism %s clears the thresholds but the top-two gap is below clarity", top),
				Blocker: governance.BlockerAmbiguous,
			}
		}
		return governance.Decision{
			Action:    governance.ActionCommit,
			Mechanism: top,
			Reason:    fmt.Sprintf("posterior %.3f on %s with nuisance %.3f", topProb, top, nuisanceProb),
		}
	}

	if wouldDeclareNothing {
		return governance.Decision{
			Action:  governance.ActionNoDetection,
			Reason:  fmt.Sprintf("nuisance leads at %.3f and evidence strength %.2f is below the detection floor", nuisanceProb, evidenceStrength),
			Blocker: governance.BlockerWeakEvidence,
		}
	}

	blocker := governance.BlockerLowTopProb
	reason := fmt.Sprintf("top probability %.3f below commit threshold %.2f", topProb, th.CommitThreshold)
	if topProb >= th.CommitThreshold || top.IsNuisance() {
		blocker = governance.BlockerHighNuisance
		reason = fmt.Sprintf("nuisance probability %.3f above ceiling %.2f", nuisanceProb, th.NuisanceCeiling)
	}
	return governance.Decision{
		Action:  governance.ActionNoCommit,
		Reason:  reason,
		Blocker: blocker,
	}
}

func validate(post mechanism.Posterior, evidenceStrength float64) (governance.Blocker, string) {
	if len(post.Probs) == 0 {
		return governance.BlockerBadInput, "empty posterior"
	}
	if math.IsNaN(evidenceStrength) {
		return governance.BlockerBadInput, "evidence strength is NaN"
	}
	sum := 0.0
	for id, p := range post.Probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return governance.BlockerBadInput, fmt.Sprintf("probability %v for %s outside [0,1]", p, id)
		}
		sum += p
	}
	if sum < 1-1e-6 || sum > 1+1e-6 {
		return governance.BlockerBadInput, fmt.Sprintf("posterior sums to %v, not 1", sum)
	}
	return governance.BlockerNone, ""
}

func argmax(probs map[mechanism.MechanismID]float64) (mechanism.MechanismID, float64) {
	var top mechanism.MechanismID
	best := math.Inf(-1)
	for id, p := range probs {
		if p > best || (p == best && id < top) {
			best = p
			top = id
		}
	}
	return top, best
}
