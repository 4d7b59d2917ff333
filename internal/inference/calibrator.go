package inference

// CalibrationEvent is one historical (confidence, correctness) pair
type CalibrationEvent struct {
	Confidence float64
	Correct    bool
}

// BinnedCalibrator maps raw confidence to the historical accuracy observed
// in its bucket. It is fitted offline on accumulated decision history and
// implements ports.ConfidenceCalibrator; inference works identically with
// or without one wired.
type BinnedCalibrator struct {
	accuracy []float64
	fitted   []bool
}

// FitBinnedCalibrator trains a calibrator from history. Buckets with no
// events fall back to the raw confidence at calibration time.
func FitBinnedCalibrator(history []CalibrationEvent, bins int) *BinnedCalibrator {
	if bins < 1 {
		bins = 10
	}
	counts := make([]int, bins)
	correct := make([]int, bins)
	for _, ev := range history {
		idx := int(clamp01(ev.Confidence) * float64(bins))
		if idx == bins {
			idx--
		}
		counts[idx]++
		if ev.Correct {
			correct[idx]++
		}
	}
	c := &BinnedCalibrator{
		accuracy: make([]float64, bins),
		fitted:   make([]bool, bins),
	}
	for i := range counts {
		if counts[i] > 0 {
			c.accuracy[i] = float64(correct[i]) / float64(counts[i])
			c.fitted[i] = true
		}
	}
	return c
}

// Calibrate returns the fitted accuracy for the raw confidence's bucket
func (c *BinnedCalibrator) Calibrate(rawConfidence float64) float64 {
	raw := clamp01(rawConfidence)
	idx := int(raw * float64(len(c.accuracy)))
	if idx == len(c.accuracy) {
		idx--
	}
	if !c.fitted[idx] {
		return raw
	}
	return c.accuracy[idx]
}
