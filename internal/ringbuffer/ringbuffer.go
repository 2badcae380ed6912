// Package ringbuffer implements the Elastic Ring Buffer (ERB): the
// wait-free single-producer/single-consumer handoff between the
// capture worker and the playback worker. It is the sole piece of
// cross-thread shared state on the engine's hot path.
//
// The buffer stores interleaved float32 frames at a fixed channel
// count. Capacity is rounded up to a power of two so index arithmetic
// can mask instead of divide. The producer side (Capture Worker) is
// the only caller of AcquireWrite/CommitWrite; the consumer side
// (Playback Worker) is the only caller of AcquireRead/CommitRead.
// Nothing in this package takes a lock.
package ringbuffer

import "sync/atomic"

// Buffer is an SPSC ring buffer of interleaved float32 audio frames.
type Buffer struct {
	data     []float32 // capacityFrames * channels, contiguous
	mask     uint64     // capacityFrames - 1
	channels int

	// writeIndex is advanced only by the producer; readIndex only by
	// the consumer. Both are monotonically nondecreasing frame counts,
	// masked at access time. Advances are published with release
	// ordering and observed with acquire ordering so that the opposite
	// side's frame writes happen-before the index becomes visible.
	writeIndex atomic.Uint64
	readIndex  atomic.Uint64
}

// New creates a Buffer for the given channel count whose capacity is
// the next power of two at or above capacityFrames. capacityFrames and
// channels must both be positive.
func New(capacityFrames, channels int) *Buffer {
	if capacityFrames <= 0 {
		capacityFrames = 1
	}
	if channels <= 0 {
		channels = 1
	}
	capacityFrames = nextPowerOfTwo(capacityFrames)

	return &Buffer{
		data:     make([]float32, capacityFrames*channels),
		mask:     uint64(capacityFrames - 1),
		channels: channels,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// CapacityFrames returns the buffer's power-of-two frame capacity.
func (b *Buffer) CapacityFrames() int {
	return int(b.mask) + 1
}

// Channels returns the configured channel count.
func (b *Buffer) Channels() int {
	return b.channels
}

// AvailableRead returns the number of frames the consumer may read
// right now. Safe to call from either thread; from the consumer it is
// a lower bound (the producer may be concurrently adding frames), from
// the producer it is an upper bound (the consumer may be concurrently
// draining it further).
func (b *Buffer) AvailableRead() int {
	w := b.writeIndex.Load()
	r := b.readIndex.Load()
	return int(w - r)
}

// AvailableWrite returns the number of frames the producer may write
// right now; the mirror image of AvailableRead.
func (b *Buffer) AvailableWrite() int {
	return b.CapacityFrames() - b.AvailableRead()
}

// AcquireWrite returns a contiguous slice of frames (not bytes) the
// producer may fill, with length min(n, AvailableWrite(), frames to
// end of the linear region). The caller must CommitWrite with however
// many of the returned frames it actually filled, and re-acquire for
// any remainder if the first slice was truncated by wraparound.
func (b *Buffer) AcquireWrite(n int) []float32 {
	if n <= 0 {
		return nil
	}
	avail := b.AvailableWrite()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	start := b.writeIndex.Load() & b.mask
	toEnd := b.CapacityFrames() - int(start)
	if n > toEnd {
		n = toEnd
	}

	lo := int(start) * b.channels
	hi := lo + n*b.channels
	return b.data[lo:hi]
}

// CommitWrite publishes n frames (must be <= the length most recently
// returned by AcquireWrite and not yet committed) with release
// ordering, making them visible to the consumer's acquire-ordered
// reads of writeIndex.
func (b *Buffer) CommitWrite(n int) {
	if n <= 0 {
		return
	}
	b.writeIndex.Add(uint64(n))
}

// AcquireRead returns a contiguous slice of frames the consumer may
// read, with length min(n, AvailableRead(), frames to end of the
// linear region). The caller must CommitRead with however many frames
// it actually consumed.
func (b *Buffer) AcquireRead(n int) []float32 {
	if n <= 0 {
		return nil
	}
	avail := b.AvailableRead()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	start := b.readIndex.Load() & b.mask
	toEnd := b.CapacityFrames() - int(start)
	if n > toEnd {
		n = toEnd
	}

	lo := int(start) * b.channels
	hi := lo + n*b.channels
	return b.data[lo:hi]
}

// CommitRead advances the read index by n frames with release
// ordering, freeing the corresponding capacity for the producer.
func (b *Buffer) CommitRead(n int) {
	if n <= 0 {
		return
	}
	b.readIndex.Add(uint64(n))
}

// Reset sets the read index equal to the write index, discarding any
// residual samples. Only legal when the engine is not Running — the
// caller (Engine Controller) is responsible for that invariant.
func (b *Buffer) Reset() {
	b.readIndex.Store(b.writeIndex.Load())
}

// Prefill writes n zero frames directly, advancing the write index
// without going through AcquireWrite/CommitWrite. Used once at engine
// start to pre-fill the buffer to a symmetric margin before either
// device callback runs.
func (b *Buffer) Prefill(n int) {
	if n <= 0 {
		return
	}
	if n > b.CapacityFrames() {
		n = b.CapacityFrames()
	}
	remaining := n
	for remaining > 0 {
		slice := b.AcquireWrite(remaining)
		if len(slice) == 0 {
			break
		}
		for i := range slice {
			slice[i] = 0
		}
		got := len(slice) / b.channels
		b.CommitWrite(got)
		remaining -= got
	}
}
