package inference

// ECETracker bins (confidence, correctness) events into fixed-width buckets
// and reports the expected calibration error: the size-weighted mean gap
// between stated confidence and realized accuracy.
type ECETracker struct {
	bins       []binStats
	minSamples int
	total      int
}

type binStats struct {
	count   int
	sumConf float64
	correct int
}

// BinReport is one bucket's contribution to the ECE
type BinReport struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	Accuracy       float64 `json:"accuracy"`
}

// ECEReport is the tracker's current summary
type ECEReport struct {
	ECE     float64 `json:"ece"`
	Samples int     `json:"samples"`

	// Unstable marks an estimate built on too few events to be trusted.
	Unstable bool        `json:"unstable"`
	Bins     []BinReport `json:"bins"`
}

// NewECETracker creates a tracker with the given bucket count and minimum
// sample floor.
func NewECETracker(bins, minSamples int) *ECETracker {
	if bins < 1 {
		bins = 10
	}
	return &ECETracker{
		bins:       make([]binStats, bins),
		minSamples: minSamples,
	}
}

// Record adds one (confidence, correctness) event
func (t *ECETracker) Record(confidence float64, correct bool) {
	confidence = clamp01(confidence)
	idx := int(confidence * float64(len(t.bins)))
	if idx == len(t.bins) {
		idx--
	}
	b := &t.bins[idx]
	b.count++
	b.sumConf += confidence
	if correct {
		b.correct++
	}
	t.total++
}

// Compute returns the current ECE, flagged unstable below the sample floor
func (t *ECETracker) Compute() ECEReport {
	report := ECEReport{
		Samples:  t.total,
		Unstable: t.total < t.minSamples,
	}
	if t.total == 0 {
		report.Bins = []BinReport{}
		return report
	}
	width := 1.0 / float64(len(t.bins))
	ece := 0.0
	for i, b := range t.bins {
		br := BinReport{
			Lower: float64(i) * width,
			Upper: float64(i+1) * width,
			Count: b.count,
		}
		if b.count > 0 {
			br.MeanConfidence = b.sumConf / float64(b.count)
			br.Accuracy = float64(b.correct) / float64(b.count)
			gap := br.Accuracy - br.MeanConfidence
			if gap < 0 {
				gap = -gap
			}
			ece += float64(b.count) / float64(t.total) * gap
		}
		report.Bins = append(report.Bins, br)
	}
	report.ECE = ece
	return report
}
