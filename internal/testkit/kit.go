// Package testkit provides deterministic synthetic fixtures: a ground-truth
// world that behaves like the execution engine, and a scripted engine for
// exact-output tests.
package testkit

import (
	"context"
	"fmt"
	"math/rand"

	"assaygate/domain/calibration"
	"assaygate/domain/mechanism"
	"assaygate/ports"
)

// StandardChannels is the fixture channel layout
var StandardChannels = []string{"er_marker", "mito_marker", "tubulin_marker", "viability"}

// StandardHypothesisSet returns the fixture candidate set: three mechanisms
// plus the nuisance competitor, uniform priors.
func StandardHypothesisSet() mechanism.HypothesisSet {
	unit := []float64{1, 1, 1, 1}
	return mechanism.HypothesisSet{
		Channels: StandardChannels,
		Hypotheses: []mechanism.Hypothesis{
			{ID: mechanism.ERStress, Prior: 0.25, Mean: []float64{3, 0.5, 0, -1}, Var: unit},
			{ID: mechanism.MitoDysfunction, Prior: 0.25, Mean: []float64{0.5, 3, 0, -2}, Var: unit},
			{ID: mechanism.MicrotubuleDisrupt, Prior: 0.25, Mean: []float64{0, 0.5, 3, -1.5}, Var: unit},
			{ID: mechanism.Nuisance, Prior: 0.25, Mean: []float64{0, 0, 0, 0}, Var: unit},
		},
	}
}

// StandardNuisanceModel returns a fixture nuisance model with mild inflation
// and a density-dependent shift.
func StandardNuisanceModel() *mechanism.NuisanceModel {
	nm := mechanism.NewNuisanceModel(len(StandardChannels))
	nm.SetSource(mechanism.SourceTechnical, []float64{0.5, 0.5, 0.5, 0.5})
	nm.SetSource(mechanism.SourceBiological, []float64{0.3, 0.3, 0.3, 0.3})
	nm.SetSource(mechanism.SourcePipeline, []float64{0.2, 0.2, 0.2, 0.2})
	nm.DensitySlope = []float64{0.4, 0.4, 0.2, -0.6}
	return nm
}

// World is a seeded synthetic wet lab with one true mechanism. It implements
// the execution engine port.
type World struct {
	rng     *rand.Rand
	hs      mechanism.HypothesisSet
	truth   mechanism.MechanismID
	noiseSD float64
}

// NewWorld creates a world whose observations center on the true
// mechanism's signature plus Gaussian noise.
func NewWorld(seed int64, truth mechanism.MechanismID, noiseSD float64) *World {
	return &World{
		rng:     rand.New(rand.NewSource(seed)),
		hs:      StandardHypothesisSet(),
		truth:   truth,
		noiseSD: noiseSD,
	}
}

// Truth returns the ground-truth mechanism
func (w *World) Truth() mechanism.MechanismID { return w.truth }

// Execute synthesizes an observation for the design
func (w *World) Execute(_ context.Context, design ports.Design) (ports.Observation, error) {
	var signature []float64
	for _, h := range w.hs.Hypotheses {
		if h.ID == w.truth {
			signature = h.Mean
			break
		}
	}
	if signature == nil {
		return ports.Observation{}, fmt.Errorf("unknown truth mechanism %s", w.truth)
	}

	values := make([]float64, len(signature))
	for i, m := range signature {
		values[i] = m + w.rng.NormFloat64()*w.noiseSD
	}

	wells := design.WellCount
	if wells <= 0 {
		wells = 24
	}
	return ports.Observation{
		Features: mechanism.Features{
			Values:    values,
			Channels:  StandardChannels,
			Density:   0.5,
			WellCount: wells,
		},
		Calibration: w.calibrationBatch(wells),
	}, nil
}

func (w *World) calibrationBatch(wells int) calibration.Batch {
	conditions := []string{"vehicle", "low_dose", "high_dose"}
	per := wells / len(conditions)
	if per < 2 {
		per = 2
	}
	var readings []calibration.ConditionReadings
	for _, q := range []calibration.Quantity{calibration.QuantityGlobalNoise, calibration.QuantityFluorescence} {
		for _, c := range conditions {
			vals := make([]float64, per)
			for i := range vals {
				vals[i] = 10 + w.rng.NormFloat64()
			}
			readings = append(readings, calibration.ConditionReadings{
				Quantity:  q,
				Condition: c,
				Values:    vals,
			})
		}
	}
	return calibration.Batch{Readings: readings}
}

// ScriptedEngine replays queued observations and errors in order
type ScriptedEngine struct {
	steps []scriptStep
	calls int
}

type scriptStep struct {
	obs ports.Observation
	err error
}

// NewScriptedEngine creates an empty script
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{}
}

// QueueObservation appends a successful step
func (e *ScriptedEngine) QueueObservation(obs ports.Observation) *ScriptedEngine {
	e.steps = append(e.steps, scriptStep{obs: obs})
	return e
}

// QueueError appends a failing step
func (e *ScriptedEngine) QueueError(err error) *ScriptedEngine {
	e.steps = append(e.steps, scriptStep{err: err})
	return e
}

// Calls returns how many times Execute ran
func (e *ScriptedEngine) Calls() int { return e.calls }

// Execute returns the next scripted step
func (e *ScriptedEngine) Execute(_ context.Context, _ ports.Design) (ports.Observation, error) {
	if e.calls >= len(e.steps) {
		return ports.Observation{}, fmt.Errorf("scripted engine exhausted after %d calls", e.calls)
	}
	step := e.steps[e.calls]
	e.calls++
	if step.err != nil {
		return ports.Observation{}, step.err
	}
	return step.obs, nil
}

// CleanObservation builds a low-noise observation matching one mechanism's
// signature exactly, useful for forcing decisive posteriors.
func CleanObservation(truth mechanism.MechanismID, wells int) ports.Observation {
	hs := StandardHypothesisSet()
	var signature []float64
	for _, h := range hs.Hypotheses {
		if h.ID == truth {
			signature = h.Mean
			break
		}
	}
	values := make([]float64, len(signature))
	copy(values, signature)

	vals := func(base float64) []float64 {
		return []float64{base - 1, base, base + 1, base - 1, base, base + 1}
	}
	return ports.Observation{
		Features: mechanism.Features{
			Values:    values,
			Channels:  StandardChannels,
			Density:   0.5,
			WellCount: wells,
		},
		Calibration: calibration.Batch{Readings: []calibration.ConditionReadings{
			{Quantity: calibration.QuantityGlobalNoise, Condition: "vehicle", Values: vals(10)},
			{Quantity: calibration.QuantityGlobalNoise, Condition: "low_dose", Values: vals(12)},
			{Quantity: calibration.QuantityGlobalNoise, Condition: "high_dose", Values: vals(14)},
		}},
	}
}
