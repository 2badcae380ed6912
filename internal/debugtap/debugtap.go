// Package debugtap implements the Debug Capture Recorder (§4.10): an
// optional, off-hot-path consumer that spills the normalized capture
// frames pushed to it to a WAV file for post-hoc troubleshooting (the
// engine pushes the last frame of each capture callback). It is
// disabled unless explicitly constructed and started, runs on its own
// goroutine, and drops frames rather than blocking the capture
// callback when its channel is full — the same non-blocking, drop-on-
// full discipline the teacher applies to onAudioData's output channel
// in sources/malgo/malgo.go. It is a diagnostics tap, not persistent
// recording: bounded queue, one file per session, no retention policy.
package debugtap

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Arnold-Curtis/AudioGlass/internal/errs"
	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
)

var log = logging.ForComponent("debugtap")

// queueCapacity bounds how many pending frames the recorder will hold
// before dropping new ones; at 128-frame periods this is a few hundred
// milliseconds of slack.
const queueCapacity = 256

// Recorder consumes normalized float32 frames pushed from the capture
// callback and writes them to a WAV file on its own goroutine.
type Recorder struct {
	frames   chan []float32
	done     chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Uint64
	sampleRate int
	channels   int

	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
}

// New creates a Recorder that will write to path once Start is
// called. sampleRate and channels describe the internal float32
// stream the engine pushes, not the original device-native format.
func New(sampleRate, channels int) *Recorder {
	return &Recorder{
		frames:     make(chan []float32, queueCapacity),
		done:       make(chan struct{}),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Start opens path and begins the background writer goroutine.
func (r *Recorder) Start(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errs.New(err).
			Component("debugtap").
			ForKind(errs.KindInvalidArgument).
			Context("path", path).
			Build()
	}

	const bitDepth = 16
	const wavFormatPCM = 1
	enc := wav.NewEncoder(file, r.sampleRate, bitDepth, r.channels, wavFormatPCM)

	r.mu.Lock()
	r.file = file
	r.enc = enc
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()
	return nil
}

// Push enqueues a copy of a normalized frame for recording. Never
// blocks: if the queue is full the frame is dropped and the drop
// counter is incremented. Safe to call from the capture callback.
func (r *Recorder) Push(frame []float32) {
	select {
	case r.frames <- frame:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the cumulative count of frames dropped due to a full
// queue, for diagnostics.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: r.sampleRate, NumChannels: r.channels},
		Data:   make([]int, r.channels),
	}

	for {
		select {
		case frame, ok := <-r.frames:
			if !ok {
				return
			}
			r.writeFrame(intBuf, frame)
		case <-r.done:
			r.drainAndClose(intBuf)
			return
		}
	}
}

func (r *Recorder) drainAndClose(intBuf *audio.IntBuffer) {
	for {
		select {
		case frame, ok := <-r.frames:
			if !ok {
				return
			}
			r.writeFrame(intBuf, frame)
		default:
			return
		}
	}
}

func (r *Recorder) writeFrame(intBuf *audio.IntBuffer, frame []float32) {
	for i, sample := range frame {
		if i >= len(intBuf.Data) {
			break
		}
		intBuf.Data[i] = int(sample * 32767)
	}

	r.mu.Lock()
	enc := r.enc
	r.mu.Unlock()
	if enc == nil {
		return
	}
	if err := enc.Write(intBuf); err != nil {
		log.Warn("debug capture write failed", "error", err)
	}
}

// Stop drains any queued frames, finalizes the WAV file, and waits for
// the writer goroutine to exit.
func (r *Recorder) Stop() error {
	close(r.done)
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return nil
	}
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("debugtap: failed to close wav encoder: %w", err)
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("debugtap: failed to close file: %w", err)
		}
	}
	r.enc = nil
	r.file = nil
	return nil
}
