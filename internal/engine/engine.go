// Package engine implements the Engine Controller (§4.6): the duplex
// transparency engine's state machine, wiring the ring buffer, sample
// normalizer, drift compensator, host audio service, real-time
// priority service, and device monitor into one coordinated unit.
//
// Startup and shutdown sequencing is coordinated with
// golang.org/x/sync/errgroup the way the teacher coordinates its own
// background goroutines in sources/malgo/malgo.go's monitor(ctx)
// pattern, even though here the actual start/stop ordering (capture
// before playback, and the reverse on stop) is strictly sequential
// rather than fanned out.
package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Arnold-Curtis/AudioGlass/internal/config"
	"github.com/Arnold-Curtis/AudioGlass/internal/devicemonitor"
	"github.com/Arnold-Curtis/AudioGlass/internal/drift"
	"github.com/Arnold-Curtis/AudioGlass/internal/errs"
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
	"github.com/Arnold-Curtis/AudioGlass/internal/normalizer"
	"github.com/Arnold-Curtis/AudioGlass/internal/ringbuffer"
	"github.com/Arnold-Curtis/AudioGlass/internal/rtpriority"
	"github.com/Arnold-Curtis/AudioGlass/internal/status"
)

var log = logging.ForComponent("engine")

// State mirrors status.State; re-exported so callers of this package
// don't need to import status directly for basic state checks.
type State = status.State

const (
	StateUninitialized = status.StateUninitialized
	StateInitialized   = status.StateInitialized
	StateRunning       = status.StateRunning
	StateStopped       = status.StateStopped
	StateFaulted       = status.StateFaulted
)

// stopDeadline is the implementation-defined deadline (≥2s per §5) the
// controller waits for a device to stop before declaring Faulted.
const stopDeadline = 3 * time.Second

// Options bundles the dependencies a Controller needs beyond
// EngineConfig: the host audio service (real or fake) and, optionally,
// a status poster and a Prometheus registry-backed metrics collector.
type Options struct {
	Service hostaudio.Service
	Poster  status.Poster
	Metrics *status.Metrics

	// DebugCapture, if non-nil, receives a copy of the last normalized
	// frame of each capture callback (one frame per period, not the
	// full stream); see internal/debugtap.
	DebugCapture DebugSink
}

// DebugSink receives normalized capture frames for optional,
// best-effort diagnostic recording (§4.10). Implementations must never
// block the capture callback.
type DebugSink interface {
	Push(frame []float32)
}

// Controller is the duplex engine's single management-thread state
// machine. All exported methods except the workers' internal hot-path
// helpers are safe to call from any thread; they serialize on mu.
type Controller struct {
	mu    sync.Mutex
	state atomic.Int32

	cfg     config.EngineConfig
	service hostaudio.Service
	surface *status.Surface

	ring        *ringbuffer.Buffer
	compensator *drift.Compensator

	captureInfo  hostaudio.DeviceInfo
	playbackInfo hostaudio.DeviceInfo
	captureDev   hostaudio.Device
	playbackDev  hostaudio.Device

	captureFormat  hostaudio.SampleFormat
	playbackFormat hostaudio.SampleFormat
	decimateRatio  int

	captureRaiser  *rtpriority.Raiser
	playbackRaiser *rtpriority.Raiser

	monitor       *devicemonitor.Monitor
	monitorCancel context.CancelFunc

	running    atomic.Bool
	volumeBits atomic.Uint64

	enabledIntent atomic.Bool

	debugSink DebugSink

	captureScratch  []float32
	decimateScratch []float32
	playbackScratch []byte
	readScratch     []float32
}

// New creates a Controller in the Uninitialized state.
func New(opts Options) *Controller {
	c := &Controller{
		service:        opts.Service,
		surface:        status.New(opts.Poster, opts.Metrics),
		captureRaiser:  rtpriority.New(),
		playbackRaiser: rtpriority.New(),
		debugSink:      opts.DebugCapture,
	}
	c.state.Store(int32(StateUninitialized))
	c.volumeBits.Store(float64bits(1.0))
	c.monitor = devicemonitor.New(opts.Service, c)
	return c
}

func (c *Controller) stateLocked() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.surface.SetState(s)
}

// State returns the controller's current state. Safe from any thread.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Initialize enumerates and resolves devices, allocates the ring
// buffer, constructs both device objects, and leaves them stopped.
func (c *Controller) Initialize(ctx context.Context, cfg config.EngineConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != StateUninitialized {
		return errs.New(nil).
			Component("engine").
			ForKind(errs.KindInvalidState).
			Context("state", c.stateLocked().String()).
			Context("operation", "initialize").
			Build()
	}

	normalized, _, err := config.Validate(cfg)
	if err != nil {
		return err
	}
	c.cfg = normalized

	hostInfo := c.monitor.HostInfo()
	log.Info("host platform", "os", hostInfo.OS, "backend", hostInfo.Backend, "cpu_count", hostInfo.CPUCount)
	c.surface.SetHostInfo(status.HostInfo{OS: hostInfo.OS, Backend: hostInfo.Backend, CPUCount: hostInfo.CPUCount})

	captureInfo, err := c.service.Resolve(normalized.InputDeviceID, hostaudio.DirectionCapture)
	if err != nil {
		return err
	}
	playbackInfo, err := c.service.Resolve(normalized.OutputDeviceID, hostaudio.DirectionPlayback)
	if err != nil {
		return err
	}
	c.captureInfo = captureInfo
	c.playbackInfo = playbackInfo

	c.ring = ringbuffer.New(normalized.RingBufferFrames, normalized.Channels)
	c.compensator = drift.New(normalized.Channels)

	shareMode := hostaudio.ShareModeShared
	if normalized.ShareMode == config.ShareModeExclusive {
		shareMode = hostaudio.ShareModeExclusive
	}
	flags := hostaudio.OpenFlags{
		BypassOSResampler: normalized.BypassOSResampler,
		ProAudioUsage:      normalized.PerformanceProfile == config.ProfileLowLatency,
	}

	captureFormat := hostaudio.FormatF32
	playbackFormat := hostaudio.FormatF32

	captureDev, err := c.service.Open(ctx, captureInfo, hostaudio.OpenParams{
		Direction:    hostaudio.DirectionCapture,
		Format:       captureFormat,
		Channels:     normalized.Channels,
		SampleRate:   normalized.SampleRate,
		PeriodFrames: normalized.PeriodFrames,
		ShareMode:    shareMode,
		Flags:        flags,
	}, c.onCapture, c.onCaptureStop)
	if err != nil {
		return err
	}

	playbackDev, err := c.service.Open(ctx, playbackInfo, hostaudio.OpenParams{
		Direction:    hostaudio.DirectionPlayback,
		Format:       playbackFormat,
		Channels:     normalized.Channels,
		SampleRate:   normalized.SampleRate,
		PeriodFrames: normalized.PeriodFrames,
		ShareMode:    shareMode,
		Flags:        flags,
	}, c.onPlayback, c.onPlaybackStop)
	if err != nil {
		return err
	}

	c.captureDev = captureDev
	c.playbackDev = playbackDev
	c.captureFormat = captureDev.ActualFormat()
	c.playbackFormat = playbackDev.ActualFormat()

	ratio, exact := normalizer.DecimationRatio(captureDev.ActualSampleRate(), normalized.SampleRate)
	if !exact {
		return errs.New(nil).
			Component("engine").
			ForKind(errs.KindInvalidArgument).
			Context("native_rate", captureDev.ActualSampleRate()).
			Context("internal_rate", normalized.SampleRate).
			Context("error", "non-integer decimation ratio").
			Build()
	}
	c.decimateRatio = ratio

	monitorCtx, cancel := context.WithCancel(context.Background())
	c.monitorCancel = cancel
	if err := c.monitor.Start(monitorCtx); err != nil {
		log.Warn("device monitor subscription failed, continuing without hot-plug events", "error", err)
	}

	c.setState(StateInitialized)
	return nil
}

// Start pre-fills the ring buffer, then starts capture before
// playback per the spec's strict ordering.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stateLocked() {
	case StateInitialized, StateStopped:
	default:
		return errs.New(nil).
			Component("engine").
			ForKind(errs.KindInvalidState).
			Context("state", c.stateLocked().String()).
			Context("operation", "start").
			Build()
	}

	c.enabledIntent.Store(true)
	c.ring.Prefill(c.ring.CapacityFrames() / 2)
	c.running.Store(true)

	// Capture must be live before playback so the consumer never
	// observes the ring buffer before the producer has begun; each
	// stage is bounded by stopDeadline via errgroup+context the same
	// way Stop bounds its own device calls.
	if err := runStage(ctx, c.captureDev.Start); err != nil {
		c.running.Store(false)
		c.setState(StateFaulted)
		return err
	}
	if err := runStage(ctx, c.playbackDev.Start); err != nil {
		c.running.Store(false)
		_ = c.captureDev.Stop()
		c.setState(StateFaulted)
		return err
	}

	c.setState(StateRunning)
	return nil
}

// Stop stops playback first, then capture, mirroring start's ordering,
// and reverts any priority boosts. It does not free the ring buffer or
// devices.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != StateRunning {
		return errs.New(nil).
			Component("engine").
			ForKind(errs.KindInvalidState).
			Context("state", c.stateLocked().String()).
			Context("operation", "stop").
			Build()
	}

	c.enabledIntent.Store(false)
	c.running.Store(false)

	if err := runStage(ctx, c.playbackDev.Stop); err != nil {
		c.setState(StateFaulted)
		return err
	}
	if err := runStage(ctx, c.captureDev.Stop); err != nil {
		c.setState(StateFaulted)
		return err
	}

	c.captureRaiser.Revert()
	c.playbackRaiser.Revert()

	c.setState(StateStopped)
	return nil
}

// runStage runs a single blocking device call under an errgroup bound
// to stopDeadline, turning a hung OS call into a reported error
// instead of a wedged management thread. Grounded on the cancellation
// discipline in the teacher's sources/malgo/malgo.go monitor(ctx).
func runStage(ctx context.Context, fn func() error) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, stopDeadline)
	defer cancel()

	group, _ := errgroup.WithContext(deadlineCtx)
	done := make(chan struct{})
	group.Go(func() error {
		defer close(done)
		return fn()
	})

	select {
	case <-done:
		return group.Wait()
	case <-deadlineCtx.Done():
		return errs.New(deadlineCtx.Err()).
			Component("engine").
			ForKind(errs.KindDeviceStartFailed).
			Context("error", "device call did not complete within deadline").
			Build()
	}
}

// Uninitialize stops the engine if running, then tears down devices
// and frees the ring buffer.
func (c *Controller) Uninitialize(ctx context.Context) error {
	c.mu.Lock()
	state := c.stateLocked()
	c.mu.Unlock()

	if state == StateRunning {
		if err := c.Stop(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() == StateUninitialized {
		return nil
	}

	if c.monitorCancel != nil {
		c.monitorCancel()
	}
	c.monitor.Stop()

	if c.captureDev != nil {
		_ = c.captureDev.Uninit()
	}
	if c.playbackDev != nil {
		_ = c.playbackDev.Uninit()
	}
	c.captureDev = nil
	c.playbackDev = nil
	c.ring = nil
	c.compensator = nil

	c.setState(StateUninitialized)
	return nil
}

// SetVolume clamps v to [0,1] and stores it atomically; legal in any
// state, takes effect on the next capture callback.
func (c *Controller) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.volumeBits.Store(float64bits(v))
	c.surface.SetVolume(v)
}

func (c *Controller) volume() float32 {
	return float32(float64frombits(c.volumeBits.Load()))
}

// EnableSentry turns on best-effort forwarding of error events to an
// already-initialized sentry-go hub; see status.Surface.EnableSentry.
func (c *Controller) EnableSentry() {
	c.surface.EnableSentry()
}

// DisableSentry turns sentry forwarding back off.
func (c *Controller) DisableSentry() {
	c.surface.DisableSentry()
}

// GetStatus composes a status snapshot; callable from any thread.
func (c *Controller) GetStatus() status.EngineStatus {
	periodFrames := 0
	sampleRate := 0
	capacityFrames := 0
	c.mu.Lock()
	if c.ring != nil {
		periodFrames = c.cfg.PeriodFrames
		sampleRate = c.cfg.SampleRate
		capacityFrames = c.ring.CapacityFrames()
	}
	c.mu.Unlock()
	snap := c.surface.Snapshot(periodFrames, sampleRate, capacityFrames)
	c.surface.ObserveRoundTripLatency(snap.RoundTripLatency)
	return snap
}

// OnDeviceEvent implements devicemonitor.Handler (§4.8).
func (c *Controller) OnDeviceEvent(ctx context.Context, event devicemonitor.Event) {
	switch event.Kind {
	case devicemonitor.EventDeviceRemoved:
		c.handleDeviceRemoved(event.DeviceID)
	case devicemonitor.EventDeviceAdded:
		c.handleDeviceAdded(ctx, event.DeviceID)
	}
}

func (c *Controller) handleDeviceRemoved(deviceID string) {
	c.mu.Lock()
	matches := c.stateLocked() == StateRunning &&
		(deviceID == c.captureInfo.ID || deviceID == c.playbackInfo.ID)
	c.mu.Unlock()

	if !matches {
		return
	}

	c.running.Store(false)
	c.mu.Lock()
	c.setState(StateStopped)
	c.mu.Unlock()
	c.surface.EmitDeviceDisconnected(deviceID)
}

func (c *Controller) handleDeviceAdded(ctx context.Context, deviceID string) {
	c.mu.Lock()
	shouldRestart := c.enabledIntent.Load() &&
		c.stateLocked() == StateStopped &&
		(deviceID == c.captureInfo.ID || deviceID == c.playbackInfo.ID)
	c.mu.Unlock()

	if !shouldRestart {
		return
	}

	if err := c.Start(ctx); err != nil {
		c.surface.EmitError(string(errs.KindOf(err)), err.Error())
	}
}

func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }
