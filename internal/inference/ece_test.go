package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestECEUnstableBelowSampleFloor(t *testing.T) {
	tracker := NewECETracker(10, 30)
	for i := 0; i < 29; i++ {
		tracker.Record(0.8, true)
	}
	report := tracker.Compute()
	assert.True(t, report.Unstable)
	assert.Equal(t, 29, report.Samples)

	tracker.Record(0.8, true)
	assert.False(t, tracker.Compute().Unstable)
}

func TestECEPerfectCalibrationIsZero(t *testing.T) {
	tracker := NewECETracker(10, 10)
	// 80% confidence, 80% correct: 4 hits then 1 miss, repeated.
	for i := 0; i < 50; i++ {
		tracker.Record(0.8, i%5 != 4)
	}
	report := tracker.Compute()
	assert.InDelta(t, 0.0, report.ECE, 1e-9)
}

func TestECEKnownAnswer(t *testing.T) {
	tracker := NewECETracker(10, 10)
	// Bin [0.9,1.0): 40 events at 0.95, half correct -> gap 0.45.
	for i := 0; i < 40; i++ {
		tracker.Record(0.95, i%2 == 0)
	}
	// Bin [0.5,0.6): 10 events at 0.55, 60% correct -> gap 0.05.
	for i := 0; i < 10; i++ {
		tracker.Record(0.55, i%5 < 3)
	}
	report := tracker.Compute()
	// Size-weighted: 0.8*0.45 + 0.2*0.05 = 0.37
	assert.InDelta(t, 0.37, report.ECE, 1e-9)
	assert.False(t, report.Unstable)
}

func TestECEEmptyTracker(t *testing.T) {
	tracker := NewECETracker(10, 30)
	report := tracker.Compute()
	assert.True(t, report.Unstable)
	assert.Zero(t, report.ECE)
	assert.Zero(t, report.Samples)
}

func TestBinnedCalibratorFallsBackOnEmptyBucket(t *testing.T) {
	cal := FitBinnedCalibrator([]CalibrationEvent{
		{Confidence: 0.95, Correct: false},
		{Confidence: 0.95, Correct: true},
	}, 10)
	assert.InDelta(t, 0.5, cal.Calibrate(0.97), 1e-9)
	// Bucket [0.3,0.4) saw no history: raw passes through.
	assert.InDelta(t, 0.35, cal.Calibrate(0.35), 1e-9)
}
