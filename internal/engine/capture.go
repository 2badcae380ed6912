package engine

import (
	"github.com/Arnold-Curtis/AudioGlass/internal/normalizer"
)

// onCapture is the Capture Worker's callback (§4.4): convert the
// host-provided input block to internal float32, applying volume as a
// gain during the same pass, then write it to the ring buffer. Never
// locks and never performs I/O. Without decimation and without a debug
// sink it does not allocate once its scratch buffers have grown; with
// decimation, Decimate allocates its accumulator, and with a debug sink
// each callback allocates one frame copy.
func (c *Controller) onCapture(outBlock, inBlock []byte, frames int) {
	if !c.running.Load() {
		return
	}
	c.captureRaiser.Raise()

	format := toNormalizerFormat(c.captureFormat)
	floats, err := normalizer.ToFloat32(inBlock, format, c.captureScratch[:0])
	if err != nil {
		c.surface.EmitError("normalize_capture", err.Error())
		return
	}
	c.captureScratch = floats

	channels := c.ring.Channels()
	vol := c.volume()
	if vol != 1 {
		for i := range floats {
			floats[i] *= vol
		}
	}

	if c.decimateRatio > 1 {
		decimated := normalizer.Decimate(floats, channels, c.decimateRatio, c.decimateScratch[:0])
		c.decimateScratch = decimated
		floats = decimated
	}

	c.writeToRing(floats, channels)

	if c.debugSink != nil && len(floats) >= channels {
		tail := floats[len(floats)-channels:]
		frameCopy := make([]float32, channels)
		copy(frameCopy, tail)
		c.debugSink.Push(frameCopy)
	}
}

// writeToRing writes floats (interleaved, channels wide) into the ring
// buffer, incrementing the overrun counter by whatever doesn't fit and
// re-acquiring across a single wraparound if necessary.
func (c *Controller) writeToRing(floats []float32, channels int) {
	framesWanted := len(floats) / channels
	if framesWanted == 0 {
		return
	}

	available := c.ring.AvailableWrite()
	if framesWanted > available {
		overrun := framesWanted - available
		for i := 0; i < overrun; i++ {
			c.surface.NoteOverrun()
		}
		framesWanted = available
	}

	offset := 0
	remaining := framesWanted
	for remaining > 0 {
		slice := c.ring.AcquireWrite(remaining)
		got := len(slice) / channels
		if got == 0 {
			break
		}
		copy(slice, floats[offset*channels:(offset+got)*channels])
		c.ring.CommitWrite(got)
		offset += got
		remaining -= got
	}

	if offset > 0 {
		last := floats[(offset-1)*channels : offset*channels]
		c.compensator.RecordLastFrame(last)
	}
}

func (c *Controller) onCaptureStop() {
	if c.running.Load() {
		c.surface.EmitError("device_lost", "capture device stopped unexpectedly")
		c.handleDeviceRemoved(c.captureInfo.ID)
	}
}
