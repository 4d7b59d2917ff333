package ports

// ConfidenceCalibrator maps raw posterior confidence to calibrated
// confidence, trained offline on (confidence, correctness) history. Wiring
// one is optional; inference must not assume it is present.
type ConfidenceCalibrator interface {
	Calibrate(rawConfidence float64) float64
}
