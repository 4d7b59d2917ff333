package governance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"assaygate/domain/governance"
	"assaygate/domain/mechanism"
)

func post(probs map[mechanism.MechanismID]float64) mechanism.Posterior {
	var top mechanism.MechanismID
	best := 0.0
	for id, p := range probs {
		if p > best {
			best = p
			top = id
		}
	}
	return mechanism.Posterior{Probs: probs, TopMechanism: top, TopProbability: best}
}

func TestCommitScenario(t *testing.T) {
	// Posterior {A:0.85, B:0.10, NUISANCE:0.05} with commit 0.80 and
	// nuisance ceiling 0.35 commits to A.
	p := post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.85,
		mechanism.MitoDysfunction: 0.10,
		mechanism.Nuisance:        0.05,
	})
	d := Decide(p, 1.0, governance.DefaultThresholds())
	assert.Equal(t, governance.ActionCommit, d.Action)
	assert.Equal(t, mechanism.ERStress, d.Mechanism)
	assert.Equal(t, governance.BlockerNone, d.Blocker)
}

func TestBadInputFailsClosed(t *testing.T) {
	cases := []struct {
		name string
		post mechanism.Posterior
		ev   float64
	}{
		{"empty posterior", mechanism.Posterior{}, 1.0},
		{"negative probability", post(map[mechanism.MechanismID]float64{
			mechanism.ERStress: 1.2, mechanism.Nuisance: -0.2,
		}), 1.0},
		{"does not sum to one", post(map[mechanism.MechanismID]float64{
			mechanism.ERStress: 0.5, mechanism.Nuisance: 0.2,
		}), 1.0},
		{"NaN probability", post(map[mechanism.MechanismID]float64{
			mechanism.ERStress: math.NaN(), mechanism.Nuisance: 0.5,
		}), 1.0},
		{"NaN evidence", post(map[mechanism.MechanismID]float64{
			mechanism.ERStress: 0.5, mechanism.Nuisance: 0.5,
		}), math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.post, tc.ev, governance.DefaultThresholds())
			assert.Equal(t, governance.ActionNoCommit, d.Action)
			assert.Equal(t, governance.BlockerBadInput, d.Blocker)
			assert.Empty(t, d.Mechanism)
		})
	}
}

func TestAntiCowardiceForbidsNoDetectionUnderStrongEvidence(t *testing.T) {
	shapes := []map[mechanism.MechanismID]float64{
		{mechanism.Nuisance: 0.90, mechanism.ERStress: 0.10},
		{mechanism.Nuisance: 0.50, mechanism.ERStress: 0.30, mechanism.MitoDysfunction: 0.20},
		{mechanism.Nuisance: 0.34, mechanism.ERStress: 0.33, mechanism.MitoDysfunction: 0.33},
	}
	th := governance.DefaultThresholds()
	for _, probs := range shapes {
		d := Decide(post(probs), th.StrongEvidence, th)
		assert.NotEqual(t, governance.ActionNoDetection, d.Action,
			"strong evidence must forbid NO_DETECTION for %v", probs)
	}
}

func TestAntiHubrisRequiresBothConditions(t *testing.T) {
	th := governance.Thresholds{
		CommitThreshold: 0.50,
		NuisanceCeiling: 0.20,
		StrongEvidence:  2.0,
		DetectionFloor:  0.25,
	}

	// High top, high nuisance: blocked on nuisance.
	d := Decide(post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.60,
		mechanism.Nuisance:        0.30,
		mechanism.MitoDysfunction: 0.10,
	}), 1.0, th)
	assert.Equal(t, governance.ActionNoCommit, d.Action)
	assert.Equal(t, governance.BlockerHighNuisance, d.Blocker)

	// Low top, low nuisance: blocked on top probability.
	d = Decide(post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.45,
		mechanism.MitoDysfunction: 0.40,
		mechanism.Nuisance:        0.15,
	}), 1.0, th)
	assert.Equal(t, governance.ActionNoCommit, d.Action)
	assert.Equal(t, governance.BlockerLowTopProb, d.Blocker)

	// Both satisfied: commit.
	d = Decide(post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.70,
		mechanism.MitoDysfunction: 0.15,
		mechanism.Nuisance:        0.15,
	}), 1.0, th)
	assert.Equal(t, governance.ActionCommit, d.Action)
}

func TestCommitNeverHappensWithoutBothConditions(t *testing.T) {
	th := governance.DefaultThresholds()
	grid := []map[mechanism.MechanismID]float64{
		{mechanism.ERStress: 0.79, mechanism.MitoDysfunction: 0.11, mechanism.Nuisance: 0.10},
		{mechanism.ERStress: 0.60, mechanism.Nuisance: 0.40},
		{mechanism.Nuisance: 0.85, mechanism.ERStress: 0.15},
		{mechanism.ERStress: 0.85, mechanism.MitoDysfunction: 0.10, mechanism.Nuisance: 0.05},
	}
	for _, probs := range grid {
		p := post(probs)
		d := Decide(p, 1.0, th)
		if d.Action == governance.ActionCommit {
			assert.GreaterOrEqual(t, p.TopProbability, th.CommitThreshold)
			assert.LessOrEqual(t, probs[mechanism.Nuisance], th.NuisanceCeiling)
			assert.False(t, d.Mechanism.IsNuisance())
		}
	}
}

func TestNoDetectionWhenNuisanceLeadsAndEvidenceWeak(t *testing.T) {
	d := Decide(post(map[mechanism.MechanismID]float64{
		mechanism.Nuisance:        0.70,
		mechanism.ERStress:        0.20,
		mechanism.MitoDysfunction: 0.10,
	}), 0.1, governance.DefaultThresholds())
	assert.Equal(t, governance.ActionNoDetection, d.Action)
	assert.Equal(t, governance.BlockerWeakEvidence, d.Blocker)
}

func TestAmbiguityBlocksCommit(t *testing.T) {
	p := post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.85,
		mechanism.MitoDysfunction: 0.10,
		mechanism.Nuisance:        0.05,
	})
	p.IsAmbiguous = true
	d := Decide(p, 1.0, governance.DefaultThresholds())
	assert.Equal(t, governance.ActionNoCommit, d.Action)
	assert.Equal(t, governance.BlockerAmbiguous, d.Blocker)
}

func TestDecideIsDeterministic(t *testing.T) {
	p := post(map[mechanism.MechanismID]float64{
		mechanism.ERStress:        0.55,
		mechanism.MitoDysfunction: 0.25,
		mechanism.Nuisance:        0.20,
	})
	first := Decide(p, 0.8, governance.DefaultThresholds())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Decide(p, 0.8, governance.DefaultThresholds()))
	}
}
