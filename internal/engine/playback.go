package engine

import (
	"github.com/Arnold-Curtis/AudioGlass/internal/drift"
	"github.com/Arnold-Curtis/AudioGlass/internal/normalizer"
)

// onPlayback is the Playback Worker's callback (§4.5): observe ring
// buffer occupancy, apply the Drift Compensator's decision, then fill
// the host-provided output block, tolerant of a variable frame count
// between invocations.
func (c *Controller) onPlayback(outBlock, inBlock []byte, frames int) {
	if !c.running.Load() {
		zeroFill(outBlock)
		return
	}
	c.playbackRaiser.Raise()

	channels := c.ring.Channels()
	if channels == 0 || frames <= 0 {
		zeroFill(outBlock)
		return
	}

	available := c.ring.AvailableRead()
	capacity := c.ring.CapacityFrames()
	action := c.compensator.Decide(available, capacity, frames)
	c.surface.SetFillRatio(float64(available) / float64(capacity))

	wanted := frames
	switch action {
	case drift.ActionStretch:
		if available < wanted {
			c.compensator.NoteUnderrun()
			c.surface.NoteUnderrun()
		}
		c.compensator.NoteDriftCorrection()
		c.surface.NoteDriftCorrection()
	case drift.ActionCompress:
		c.discardOneFrame(channels)
		c.compensator.NoteDriftCorrection()
		c.surface.NoteDriftCorrection()
	}

	floats := c.readFromRing(wanted, channels)

	format := toNormalizerFormat(c.playbackFormat)
	bytes, err := normalizer.FromFloat32(floats, format, c.playbackScratch[:0])
	if err != nil {
		c.surface.EmitError("normalize_playback", err.Error())
		zeroFill(outBlock)
		return
	}
	c.playbackScratch = bytes

	n := copy(outBlock, bytes)
	if n < len(outBlock) {
		zeroFill(outBlock[n:])
	}
}

// readFromRing reads up to wanted frames from the ring buffer,
// re-acquiring across a single wraparound, and pads any shortfall
// with the compensator's last-frame register.
func (c *Controller) readFromRing(wanted, channels int) []float32 {
	out := c.readScratch[:0]

	remaining := wanted
	for remaining > 0 {
		slice := c.ring.AcquireRead(remaining)
		got := len(slice) / channels
		if got == 0 {
			break
		}
		out = append(out, slice...)
		c.ring.CommitRead(got)
		remaining -= got
	}

	if len(out) > 0 {
		last := out[len(out)-channels:]
		c.compensator.RecordLastFrame(last)
	}

	for remaining > 0 {
		out = append(out, c.compensator.LastFrame()...)
		remaining--
	}

	c.readScratch = out
	return out
}

// discardOneFrame implements the Compress action: drop exactly one
// frame from the ring buffer before the read.
func (c *Controller) discardOneFrame(channels int) {
	slice := c.ring.AcquireRead(1)
	got := len(slice) / channels
	if got > 0 {
		c.ring.CommitRead(got)
	}
}

func (c *Controller) onPlaybackStop() {
	if c.running.Load() {
		c.surface.EmitError("device_lost", "playback device stopped unexpectedly")
		c.handleDeviceRemoved(c.playbackInfo.ID)
	}
}

func zeroFill(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
