package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecidePassInMidRange(t *testing.T) {
	c := New(2)
	// capacity 1000, availableRead 500 -> f=0.5, within [0.25, 0.75]
	assert.Equal(t, ActionPass, c.Decide(500, 1000, 128))
}

func TestDecideStretchBelowLowWatermark(t *testing.T) {
	c := New(2)
	assert.Equal(t, ActionStretch, c.Decide(100, 1000, 128))
}

func TestDecideCompressAboveHighWatermarkWithSlack(t *testing.T) {
	c := New(2)
	assert.Equal(t, ActionCompress, c.Decide(900, 1000, 128))
}

func TestDecideDoesNotCompressWithoutSlack(t *testing.T) {
	c := New(2)
	// f=129/140≈0.92 > 0.75 but availableRead (129) is not > requested+1 (129)
	assert.Equal(t, ActionPass, c.Decide(129, 140, 128))
}

func TestSteadyStateNoDriftCorrections(t *testing.T) {
	c := New(2)
	capacity := 2048
	fill := capacity / 2
	for i := 0; i < 100_000; i++ {
		action := c.Decide(fill, capacity, 128)
		if action != ActionPass {
			c.NoteDriftCorrection()
		}
	}
	assert.Equal(t, uint64(0), c.DriftCorrections())
}

func TestLastFrameRegisterStartsZeroAndUpdates(t *testing.T) {
	c := New(2)
	assert.Equal(t, []float32{0, 0}, c.LastFrame())

	c.RecordLastFrame([]float32{0.25, -0.25})
	assert.Equal(t, []float32{0.25, -0.25}, c.LastFrame())
}

func TestResetClearsCountersAndRegister(t *testing.T) {
	c := New(1)
	c.RecordLastFrame([]float32{0.5})
	c.NoteUnderrun()
	c.NoteDriftCorrection()

	c.Reset()
	assert.Equal(t, []float32{0}, c.LastFrame())
	assert.Equal(t, uint64(0), c.Underruns())
	assert.Equal(t, uint64(0), c.DriftCorrections())
}

// TestSustainedOverProducerBiasOnlyCompresses simulates a producer
// slightly faster than the consumer: fill level trends upward, so once
// it crosses the high watermark the compensator should only ever
// choose compress, never stretch.
func TestSustainedOverProducerBiasOnlyCompresses(t *testing.T) {
	c := New(2)
	capacity := 2048
	fill := capacity / 2
	sawStretch := false
	sawCompress := false
	for i := 0; i < 5000; i++ {
		fill++ // producer slightly ahead of consumer
		if fill > capacity {
			fill = capacity
		}
		switch c.Decide(fill, capacity, 128) {
		case ActionStretch:
			sawStretch = true
		case ActionCompress:
			sawCompress = true
			fill-- // compensator discards one frame before the read
		}
	}
	assert.False(t, sawStretch)
	assert.True(t, sawCompress)
}
