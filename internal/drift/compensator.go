// Package drift implements the Drift Compensator policy: observing the
// Elastic Ring Buffer's occupancy ratio on each playback callback and
// choosing to pass, stretch, or compress by exactly one frame so the
// two independent sample clocks stay reconciled without audible pitch
// perturbation.
//
// This is a new policy module — the teacher repo has no direct
// analog — but it follows the fill-ratio observation style used in
// the teacher's health_monitor.go (observing a buffer's occupancy and
// reacting per-period) and the atomic-counter discipline used
// throughout audiocore's metrics collection.
package drift

import "sync/atomic"

// Action is the per-callback decision the compensator makes.
type Action int

const (
	ActionPass Action = iota
	ActionStretch
	ActionCompress
)

func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionStretch:
		return "stretch"
	case ActionCompress:
		return "compress"
	default:
		return "unknown"
	}
}

const (
	lowWatermark  = 0.25
	highWatermark = 0.75
)

// Compensator holds the last-frame register used to replicate samples
// during a stretch, plus the drift/underrun counters the Status/Event
// Surface reads. The last-frame register is written without
// synchronization from both the capture callback (after each ring
// write) and the playback callback (after each read); the counters are
// atomic and are also read from the management thread.
type Compensator struct {
	channels int
	lastFrame []float32

	underruns       atomic.Uint64
	driftCorrections atomic.Uint64
}

// New creates a Compensator for the given channel count. The last-frame
// register starts at all zeros per the spec.
func New(channels int) *Compensator {
	if channels <= 0 {
		channels = 1
	}
	return &Compensator{
		channels:  channels,
		lastFrame: make([]float32, channels),
	}
}

// Decide chooses the action for this callback given the current ERB
// occupancy (availableRead, availableWrite's complement) against
// capacity and the frame count the callback requested.
func (c *Compensator) Decide(availableRead, capacity, requested int) Action {
	if capacity <= 0 {
		return ActionPass
	}
	f := float64(availableRead) / float64(capacity)

	switch {
	case f < lowWatermark:
		return ActionStretch
	case f > highWatermark && availableRead > requested+1:
		return ActionCompress
	default:
		return ActionPass
	}
}

// RecordLastFrame copies the trailing frame of a just-read (or
// just-written) block into the replication register. frame must be
// exactly Channels() long.
func (c *Compensator) RecordLastFrame(frame []float32) {
	copy(c.lastFrame, frame)
}

// LastFrame returns the current replication register, read-only for
// the caller (the slice is owned by the Compensator; callers must not
// retain it across the next RecordLastFrame call).
func (c *Compensator) LastFrame() []float32 {
	return c.lastFrame
}

// Channels returns the configured channel count.
func (c *Compensator) Channels() int {
	return c.channels
}

// NoteUnderrun increments the underrun counter; called once per
// stretch event that was triggered by an actual shortfall (not every
// low-fill callback necessarily underruns if the ERB can still satisfy
// the request).
func (c *Compensator) NoteUnderrun() {
	c.underruns.Add(1)
}

// NoteDriftCorrection increments the drift-correction counter; called
// once per stretch or compress action taken.
func (c *Compensator) NoteDriftCorrection() {
	c.driftCorrections.Add(1)
}

// Underruns returns the cumulative underrun count.
func (c *Compensator) Underruns() uint64 {
	return c.underruns.Load()
}

// DriftCorrections returns the cumulative drift-correction count.
func (c *Compensator) DriftCorrections() uint64 {
	return c.driftCorrections.Load()
}

// Reset zeroes the last-frame register and counters. Only legal when
// the engine is not Running, mirroring the ring buffer's Reset.
func (c *Compensator) Reset() {
	for i := range c.lastFrame {
		c.lastFrame[i] = 0
	}
	c.underruns.Store(0)
	c.driftCorrections.Store(0)
}
