package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Arnold-Curtis/AudioGlass/internal/config"
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio/fake"
	"github.com/Arnold-Curtis/AudioGlass/internal/ringbuffer"
	"github.com/Arnold-Curtis/AudioGlass/internal/status"
)

const (
	timeoutShort = 2 * time.Second
	pollShort    = 5 * time.Millisecond
)

func newTestController(t *testing.T) (*Controller, *fake.Service) {
	t.Helper()
	service := fake.New()
	c := New(Options{Service: service})
	cfg := config.Defaults()
	cfg.RingBufferFrames = 2048
	require.NoError(t, c.Initialize(context.Background(), cfg))
	return c, service
}

func devicesOf(t *testing.T, c *Controller) (*fake.Device, *fake.Device) {
	t.Helper()
	return c.captureDev.(*fake.Device), c.playbackDev.(*fake.Device)
}

func TestInitializeStartStopUninitializeHappyPath(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, StateInitialized, c.State())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, StateStopped, c.State())

	require.NoError(t, c.Uninitialize(context.Background()))
	assert.Equal(t, StateUninitialized, c.State())
}

func TestStateMachineRejectsOperationsFromWrongState(t *testing.T) {
	c := New(Options{Service: fake.New()})

	err := c.Start(context.Background())
	assert.Error(t, err, "start before initialize must fail")
	assert.Equal(t, StateUninitialized, c.State(), "failed operation must not mutate state")

	err = c.Stop(context.Background())
	assert.Error(t, err, "stop before running must fail")

	cfg := config.Defaults()
	require.NoError(t, c.Initialize(context.Background(), cfg))
	err = c.Initialize(context.Background(), cfg)
	assert.Error(t, err, "double initialize must fail")
}

func TestStartFillsRingBufferToHalfCapacity(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	assert.Equal(t, c.ring.CapacityFrames()/2, c.ring.AvailableRead())
}

func TestPlaybackPullAfterCapturePushWritesFullBlock(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	captureDev, playbackDev := devicesOf(t, c)

	pcm := sineFloat32Bytes(128, 2)
	captureDev.PushCapture(pcm, 128)

	out := make([]byte, 128*2*4)
	playbackDev.PullPlayback(out, 128)

	writes := playbackDev.PlaybackWrites()
	require.Len(t, writes, 1)
	assert.Len(t, writes[0], len(out))
}

func TestSetVolumeClampsToUnitRange(t *testing.T) {
	c, _ := newTestController(t)
	c.SetVolume(2.0)
	assert.InDelta(t, 1.0, float64(c.volume()), 0.0001)

	c.SetVolume(-1.0)
	assert.InDelta(t, 0.0, float64(c.volume()), 0.0001)
}

func TestVolumeZeroSilencesOutputWithinOnePeriod(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	captureDev, playbackDev := devicesOf(t, c)

	c.SetVolume(0.0)
	pcm := sineFloat32Bytes(128, 2)
	captureDev.PushCapture(pcm, 128)

	out := make([]byte, 128*2*4)
	playbackDev.PullPlayback(out, 128)

	for i := 0; i < len(out); i += 4 {
		v := math.Float32frombits(uint32(out[i]) | uint32(out[i+1])<<8 | uint32(out[i+2])<<16 | uint32(out[i+3])<<24)
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestOverrunIncrementsWhenCaptureOutrunsRing(t *testing.T) {
	c, _ := newTestController(t)
	c.ring = ringbuffer.New(128, 2) // deliberately tiny to force an overrun
	c.compensator.Reset()
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	captureDev, _ := devicesOf(t, c)
	pcm := sineFloat32Bytes(4096, 2)
	captureDev.PushCapture(pcm, 4096)

	snap := c.GetStatus()
	assert.Greater(t, snap.Overruns, uint64(0))
}

func TestDeviceRemovedStopsEngineAndEmitsEvent(t *testing.T) {
	service := fake.New()

	var mu sync.Mutex
	var gotDisconnect string
	poster := status.Poster(func(e status.Event) {
		if e.Kind == status.EventDeviceDisconnected {
			mu.Lock()
			gotDisconnect = e.DeviceID
			mu.Unlock()
		}
	})

	c := New(Options{Service: service, Poster: poster})
	require.NoError(t, c.Initialize(context.Background(), config.Defaults()))
	require.NoError(t, c.Start(context.Background()))

	service.Emit(hostaudio.NotifierEvent{Kind: hostaudio.EventDeviceRemoved, DeviceID: c.playbackInfo.ID})

	assert.Eventually(t, func() bool { return c.State() == StateStopped }, timeoutShort, pollShort)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, c.playbackInfo.ID, gotDisconnect)
}

func TestUninitializeLeavesNoGoroutinesRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, _ := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Uninitialize(context.Background()))
}

func TestGetStatusCallableFromAnyStateIncludingUninitialized(t *testing.T) {
	c := New(Options{Service: fake.New()})
	assert.NotPanics(t, func() {
		_ = c.GetStatus()
	})
}

// TestCaptureAndPlaybackCallbacksAllocateNothingOnSteadyPath covers
// testable property 3: once the reusable scratch buffers have grown to
// their steady-state capacity, neither hot-path callback may allocate.
func TestCaptureAndPlaybackCallbacksAllocateNothingOnSteadyPath(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	const periodFrames = 128
	const channels = 2
	pcm := sineFloat32Bytes(periodFrames, channels)
	out := make([]byte, periodFrames*channels*4)

	for i := 0; i < 10; i++ {
		c.onCapture(nil, pcm, periodFrames)
		c.onPlayback(out, nil, periodFrames)
	}

	allocs := testing.AllocsPerRun(100, func() {
		c.onCapture(nil, pcm, periodFrames)
		c.onPlayback(out, nil, periodFrames)
	})
	assert.Equal(t, float64(0), allocs, "capture/playback callbacks must not allocate once warmed up")
}

func sineFloat32Bytes(frames, channels int) []byte {
	out := make([]byte, frames*channels*4)
	for f := 0; f < frames; f++ {
		v := float32(0.5)
		bits := math.Float32bits(v)
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			out[off] = byte(bits)
			out[off+1] = byte(bits >> 8)
			out[off+2] = byte(bits >> 16)
			out[off+3] = byte(bits >> 24)
		}
	}
	return out
}
