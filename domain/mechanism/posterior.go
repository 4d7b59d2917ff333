package mechanism

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Posterior is the immutable result of one inference call. It is created
// fresh per call, never mutated, and superseded by the next call.
type Posterior struct {
	Probs          map[MechanismID]float64 `json:"probs"`
	LogLikelihoods map[MechanismID]float64 `json:"log_likelihoods"`

	TopMechanism   MechanismID `json:"top_mechanism"`
	TopProbability float64     `json:"top_probability"`

	// IsAmbiguous is set when the top-two gap falls below the clarity
	// threshold; the ambiguity cap may then have reduced TopProbability.
	IsAmbiguous bool    `json:"is_ambiguous"`
	Uncertainty float64 `json:"uncertainty"`
	CapApplied  bool    `json:"cap_applied"`

	// CalibratedConfidence comes from an offline-trained model and is
	// independent of the raw posterior. Nil when no calibrator is wired.
	CalibratedConfidence *float64 `json:"calibrated_confidence,omitempty"`
}

// NuisanceProbability returns the posterior mass on the nuisance hypothesis
func (p Posterior) NuisanceProbability() float64 {
	return p.Probs[Nuisance]
}

// SecondProbability returns the runner-up probability
func (p Posterior) SecondProbability() float64 {
	second := 0.0
	for id, prob := range p.Probs {
		if id == p.TopMechanism {
			continue
		}
		if prob > second {
			second = prob
		}
	}
	return second
}

// Margin returns the relative top-two gap (top-second)/top, zero for an
// empty or degenerate posterior
func (p Posterior) Margin() float64 {
	if p.TopProbability <= 0 {
		return 0
	}
	return (p.TopProbability - p.SecondProbability()) / p.TopProbability
}

// EntropyBits returns the Shannon entropy of the posterior in bits
func (p Posterior) EntropyBits() float64 {
	probs := make([]float64, 0, len(p.Probs))
	for _, v := range p.Probs {
		if v > 0 {
			probs = append(probs, v)
		}
	}
	if len(probs) == 0 {
		return 0
	}
	return stat.Entropy(probs) / math.Ln2
}
