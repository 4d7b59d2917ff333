package mechanism

import (
	"assaygate/domain/core"
)

// MechanismID names a candidate causal mechanism from the closed set
type MechanismID string

// Nuisance is the explicit "confound/noise, not a mechanism" competitor.
// It participates in every posterior alongside the real candidates.
const Nuisance MechanismID = "NUISANCE"

// Canonical mechanism identifiers for the simulated wet-lab domain
const (
	ERStress           MechanismID = "ER_STRESS"
	MitoDysfunction    MechanismID = "MITO_DYSFUNCTION"
	MicrotubuleDisrupt MechanismID = "MICROTUBULE_DISRUPTION"
	DNADamage          MechanismID = "DNA_DAMAGE"
	OxidativeStress    MechanismID = "OXIDATIVE_STRESS"
)

// String returns the string representation
func (m MechanismID) String() string { return string(m) }

// IsNuisance reports whether the id is the nuisance competitor
func (m MechanismID) IsNuisance() bool { return m == Nuisance }

// Hypothesis is one candidate explanation with its channel-space signature.
// Mean and Var describe a multivariate normal with diagonal covariance over
// the channel feature vector.
type Hypothesis struct {
	ID    MechanismID `json:"id"`
	Prior float64     `json:"prior"`
	Mean  []float64   `json:"mean"`
	Var   []float64   `json:"var"`
}

// HypothesisSet is the closed candidate set for one phenotype question.
// It must contain exactly one Nuisance hypothesis.
type HypothesisSet struct {
	Channels   []string     `json:"channels"`
	Hypotheses []Hypothesis `json:"hypotheses"`
}

// Validate checks structural integrity of the set
func (hs HypothesisSet) Validate() error {
	if len(hs.Hypotheses) == 0 {
		return core.ErrEmptyHypotheses
	}
	nuisanceCount := 0
	priorSum := 0.0
	dim := len(hs.Channels)
	for _, h := range hs.Hypotheses {
		if h.ID.IsNuisance() {
			nuisanceCount++
		}
		if h.Prior < 0 || h.Prior > 1 {
			return core.NewProbabilityError("prior("+h.ID.String()+")", h.Prior)
		}
		priorSum += h.Prior
		if len(h.Mean) != dim || len(h.Var) != dim {
			return core.ErrDimensionMismatch
		}
		for _, v := range h.Var {
			if v <= 0 {
				return core.NewValidationError("var("+h.ID.String()+")", "non-positive variance")
			}
		}
	}
	if nuisanceCount != 1 {
		return core.NewValidationError("hypotheses", "exactly one NUISANCE hypothesis required")
	}
	if priorSum < 1-1e-9 || priorSum > 1+1e-9 {
		return core.NewValidationError("priors", "must sum to 1")
	}
	return nil
}

// Dim returns the channel-space dimensionality
func (hs HypothesisSet) Dim() int { return len(hs.Channels) }

// Features is one cycle's channel-level summary feature vector, as returned
// by the execution engine for a completed design.
type Features struct {
	Values    []float64 `json:"values"`
	Channels  []string  `json:"channels"`
	Density   float64   `json:"density"` // seeding density / contact-pressure proxy, 0-1
	WellCount int       `json:"well_count"`
}

// Validate checks the feature vector against an expected dimensionality
func (f Features) Validate(dim int) error {
	if len(f.Values) != dim {
		return core.ErrDimensionMismatch
	}
	if f.Density < 0 || f.Density > 1 {
		return core.NewValidationError("density", "outside [0,1]")
	}
	return nil
}
