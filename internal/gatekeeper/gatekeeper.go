// Package gatekeeper maintains pooled-variance noise estimates and
// hysteresis-gated calibration status per tracked quantity. It is the only
// component that touches raw per-well measurements.
package gatekeeper

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"assaygate/domain/calibration"
	"assaygate/domain/core"
	"assaygate/internal/config"
)

// Tracker owns every calibration gate for one run. Not safe for concurrent
// use; each run constructs its own.
type Tracker struct {
	cfg   config.GateConfig
	gates map[calibration.Quantity]*trackedGate
}

type trackedGate struct {
	gate calibration.Gate

	// history holds recent batch pooled-variance estimates for drift
	// detection, newest last, capped at the drift window.
	history []float64
}

// NewTracker creates a tracker with no gates; gates materialize on first
// observation of a quantity.
func NewTracker(cfg config.GateConfig) *Tracker {
	return &Tracker{
		cfg:   cfg,
		gates: make(map[calibration.Quantity]*trackedGate),
	}
}

// Update pools the batch into each touched quantity's estimate and advances
// its hysteresis state machine. It returns one transition record per gate
// flip, with the triggering evidence attached.
func (t *Tracker) Update(batch calibration.Batch) ([]calibration.Transition, error) {
	byQuantity := make(map[calibration.Quantity][]calibration.ConditionReadings)
	for _, r := range batch.Readings {
		byQuantity[r.Quantity] = append(byQuantity[r.Quantity], r)
	}

	var transitions []calibration.Transition
	for _, q := range batch.Quantities() {
		tr, err := t.updateQuantity(q, byQuantity[q])
		if err != nil {
			return transitions, err
		}
		if tr != nil {
			transitions = append(transitions, *tr)
		}
	}
	return transitions, nil
}

func (t *Tracker) updateQuantity(q calibration.Quantity, readings []calibration.ConditionReadings) (*calibration.Transition, error) {
	batchVar, batchDF, err := pooledVariance(readings)
	if err != nil {
		return nil, fmt.Errorf("gate %s: %w", q, err)
	}

	tg, ok := t.gates[q]
	if !ok {
		tg = &trackedGate{gate: calibration.Gate{
			Quantity: q,
			State:    calibration.StateUnstable,
		}}
		t.gates[q] = tg
	}

	drift := tg.driftAgainstHistory(batchVar)
	tg.pushHistory(batchVar, t.cfg.DriftWindow)

	pooled, df := tg.windowPooled(batchVar, batchDF)
	width := relativeCIWidth(pooled, df, t.cfg.Alpha)

	prev := tg.gate.State
	breach := calibration.BreachNone
	switch {
	case drift > t.cfg.DriftThreshold:
		breach = calibration.BreachDrift
	case width > t.cfg.ExitWidth:
		breach = calibration.BreachWidth
	}

	next := prev
	counter := tg.gate.ConsecutiveStable
	switch {
	case breach != calibration.BreachNone:
		// Losing trust is easy: one breach from any state.
		next = calibration.StateUnstable
		counter = 0
	case width <= t.cfg.EnterWidth:
		counter++
		if counter >= t.cfg.StableK {
			next = calibration.StateStable
		} else {
			next = calibration.StateAccumulating
		}
	default:
		// Between enter and exit: a stable gate holds, but an
		// accumulating streak is broken.
		counter = 0
		if prev != calibration.StateStable {
			next = calibration.StateUnstable
		}
	}

	tg.gate.PooledVariance = pooled
	tg.gate.DegreesOfFreedom = df
	tg.gate.RelativeWidth = width
	tg.gate.ConsecutiveStable = counter
	tg.gate.Drift = drift
	tg.gate.State = next
	tg.gate.Stable = next == calibration.StateStable
	tg.gate.Updates++
	tg.gate.LastUpdated = core.Now()

	if next == prev {
		return nil, nil
	}
	return &calibration.Transition{
		Quantity:      q,
		From:          prev,
		To:            next,
		Breach:        breach,
		RelativeWidth: width,
		Drift:         drift,
		Consecutive:   counter,
		At:            tg.gate.LastUpdated,
	}, nil
}

// Gate returns a copy of one gate's current status
func (t *Tracker) Gate(q calibration.Quantity) (calibration.Gate, bool) {
	tg, ok := t.gates[q]
	if !ok {
		return calibration.Gate{}, false
	}
	return tg.gate, true
}

// Gates returns a snapshot of all tracked gates
func (t *Tracker) Gates() map[calibration.Quantity]calibration.Gate {
	out := make(map[calibration.Quantity]calibration.Gate, len(t.gates))
	for q, tg := range t.gates {
		out[q] = tg.gate
	}
	return out
}

// AllStable reports whether every listed quantity is currently certified
func (t *Tracker) AllStable(quantities []calibration.Quantity) bool {
	for _, q := range quantities {
		tg, ok := t.gates[q]
		if !ok || !tg.gate.Stable {
			return false
		}
	}
	return true
}

func (tg *trackedGate) driftAgainstHistory(batchVar float64) float64 {
	if len(tg.history) == 0 {
		return 0
	}
	mean, err := stats.Mean(tg.history)
	if err != nil || mean == 0 {
		return 0
	}
	d := (batchVar - mean) / mean
	if d < 0 {
		d = -d
	}
	return d
}

func (tg *trackedGate) pushHistory(v float64, window int) {
	tg.history = append(tg.history, v)
	if window > 0 && len(tg.history) > window {
		tg.history = tg.history[len(tg.history)-window:]
	}
}

// windowPooled blends the retained history into one df-weighted estimate.
// Each history entry carries the current batch's df as an approximation of
// its own; the rolling estimate therefore tracks the recent noise level
// rather than the lifetime average.
func (tg *trackedGate) windowPooled(batchVar, batchDF float64) (float64, float64) {
	if len(tg.history) == 0 {
		return batchVar, batchDF
	}
	sum := 0.0
	for _, v := range tg.history {
		sum += v
	}
	pooled := sum / float64(len(tg.history))
	return pooled, batchDF * float64(len(tg.history))
}

// pooledVariance combines per-condition sample variances weighted by their
// degrees of freedom.
func pooledVariance(readings []calibration.ConditionReadings) (float64, float64, error) {
	num := 0.0
	df := 0.0
	for _, r := range readings {
		if len(r.Values) < 2 {
			continue
		}
		s2, err := stats.SampleVariance(r.Values)
		if err != nil {
			return 0, 0, fmt.Errorf("condition %s: %w", r.Condition, err)
		}
		k := float64(len(r.Values) - 1)
		num += k * s2
		df += k
	}
	if df == 0 {
		return 0, 0, fmt.Errorf("%w: no condition with at least two wells", core.ErrBadInput)
	}
	return num / df, df, nil
}

// relativeCIWidth derives the chi-square confidence interval for the pooled
// variance and returns (upper-lower)/(2*estimate).
func relativeCIWidth(estimate, df, alpha float64) float64 {
	if estimate <= 0 || df <= 0 {
		return 1
	}
	chi := distuv.ChiSquared{K: df}
	lo := df * estimate / chi.Quantile(1-alpha/2)
	hi := df * estimate / chi.Quantile(alpha/2)
	return (hi - lo) / (2 * estimate)
}
