package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
)

var log = logging.ForComponent("status")

// State mirrors the Engine Controller's state machine (§4.6) for
// reporting purposes; it is not the source of truth, just a copy the
// controller publishes.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// EngineStatus is the read-only snapshot returned by get_status()
// (§4.6, §4.9). State, counters, fill ratio and volume come from
// atomic loads; LastError and HostInfo are copied under the surface's
// read lock. GetStatus is callable from any thread.
type EngineStatus struct {
	State            State
	Underruns        uint64
	Overruns         uint64
	DriftCorrections uint64
	FillRatio        float64
	Volume           float64
	RoundTripLatency time.Duration
	PerLegLatency    time.Duration
	LastError        string
	HostInfo         HostInfo
}

// HostInfo mirrors devicemonitor.HostInfo (§4.11): a diagnostic
// snapshot of the host platform, set once at startup and carried
// through every status snapshot for operator visibility. It never
// influences engine control flow. Defined here rather than imported
// from devicemonitor so this package stays a leaf dependency.
type HostInfo struct {
	OS       string
	Backend  string
	CPUCount int
}

// Event is a single notification posted through the surface.
type Event struct {
	Kind      EventKind
	Running   bool
	ErrorKind string
	Message   string
	DeviceID  string
}

// EventKind enumerates the three event kinds §4.9 names.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventError
	EventDeviceDisconnected
)

// Poster delivers an Event on whatever posting context the shell
// supplied at construction (e.g. a UI main-thread dispatcher); if none
// was provided events are invoked directly on the emitting thread.
type Poster func(Event)

// Surface is the engine's combined counters + event dispatcher. The
// Engine Controller holds one Surface and both workers update its
// counters directly from the audio callbacks using only atomic ops.
type Surface struct {
	state atomic.Int32

	underruns        atomic.Uint64
	overruns         atomic.Uint64
	driftCorrections atomic.Uint64

	fillRatio atomic.Uint64 // bits of a float64, via math.Float64bits
	volume    atomic.Uint64

	mu        sync.RWMutex
	lastError string
	hostInfo  HostInfo

	poster  Poster
	metrics *Metrics

	sentryEnabled atomic.Bool
}

// New creates a Surface. poster may be nil, in which case events are
// dropped silently by Emit's caller contract — callers that care
// about events must supply a poster. metrics may be nil to disable
// Prometheus reporting.
func New(poster Poster, metrics *Metrics) *Surface {
	s := &Surface{poster: poster, metrics: metrics}
	s.state.Store(int32(StateUninitialized))
	return s
}

// EnableSentry turns on best-effort forwarding of error events to the
// process-wide sentry-go hub, which must already be initialized with
// sentry.Init. EmitError then calls sentry.CaptureMessage after an
// atomic check, the same fast-atomic-check-then-best-effort-send
// posture the teacher's telemetry.FastCaptureError uses; the outcome
// of the send is not checked or logged.
func (s *Surface) EnableSentry() {
	s.sentryEnabled.Store(true)
}

// DisableSentry turns sentry forwarding back off.
func (s *Surface) DisableSentry() {
	s.sentryEnabled.Store(false)
}

// SetState updates the published state and emits state_changed.
func (s *Surface) SetState(state State) {
	s.state.Store(int32(state))
	s.emit(Event{Kind: EventStateChanged, Running: state == StateRunning})
}

// NoteUnderrun increments the underrun counter.
func (s *Surface) NoteUnderrun() {
	s.underruns.Add(1)
	if s.metrics != nil {
		s.metrics.Underruns.Inc()
	}
}

// NoteOverrun increments the overrun counter.
func (s *Surface) NoteOverrun() {
	s.overruns.Add(1)
	if s.metrics != nil {
		s.metrics.Overruns.Inc()
	}
}

// NoteDriftCorrection increments the drift correction counter.
func (s *Surface) NoteDriftCorrection() {
	s.driftCorrections.Add(1)
	if s.metrics != nil {
		s.metrics.DriftCorrections.Inc()
	}
}

// SetFillRatio publishes the current ring buffer fill ratio, 0..1.
func (s *Surface) SetFillRatio(ratio float64) {
	s.fillRatio.Store(float64bits(ratio))
	if s.metrics != nil {
		s.metrics.FillLevel.Set(ratio)
	}
}

// SetVolume publishes the current volume, 0..1.
func (s *Surface) SetVolume(v float64) {
	s.volume.Store(float64bits(v))
	if s.metrics != nil {
		s.metrics.Volume.Set(v)
	}
}

// SetHostInfo publishes the host platform diagnostics the Device
// Monitor gathers once at startup (§4.11).
func (s *Surface) SetHostInfo(info HostInfo) {
	s.mu.Lock()
	s.hostInfo = info
	s.mu.Unlock()
}

// ObserveRoundTripLatency records a round-trip latency sample.
func (s *Surface) ObserveRoundTripLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.RoundTripLatency.Observe(d.Seconds())
	}
}

// EmitError records a fatal/non-fatal error and emits an error event,
// optionally forwarding to Sentry.
func (s *Surface) EmitError(kind, message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()

	s.emit(Event{Kind: EventError, ErrorKind: kind, Message: message})

	if s.sentryEnabled.Load() {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", "transparency_engine")
			scope.SetTag("error_kind", kind)
			sentry.CaptureMessage(message)
		})
	}
}

// EmitDeviceDisconnected emits a device_disconnected event.
func (s *Surface) EmitDeviceDisconnected(deviceID string) {
	s.emit(Event{Kind: EventDeviceDisconnected, DeviceID: deviceID})
}

func (s *Surface) emit(event Event) {
	if s.poster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("panic recovered while posting status event", "panic", r)
		}
	}()
	s.poster(event)
}

// Snapshot composes an EngineStatus from the surface's current atomic
// state, safe to call from any thread including concurrently with the
// audio callbacks updating counters. capacityFrames is the ring
// buffer's total capacity, needed to turn the published fill ratio
// back into a frame count for the round-trip latency estimate (§4.9):
// (fill_frames + period_frames) / sample_rate.
func (s *Surface) Snapshot(periodFrames, sampleRate, capacityFrames int) EngineStatus {
	s.mu.RLock()
	lastErr := s.lastError
	hostInfo := s.hostInfo
	s.mu.RUnlock()

	fillRatio := float64frombits(s.fillRatio.Load())
	volume := float64frombits(s.volume.Load())

	var perLeg, roundTrip time.Duration
	if sampleRate > 0 {
		perLeg = time.Duration(float64(periodFrames) / float64(sampleRate) * float64(time.Second))
		fillFrames := int(fillRatio * float64(capacityFrames))
		roundTrip = time.Duration(float64(fillFrames+periodFrames) / float64(sampleRate) * float64(time.Second))
	}

	return EngineStatus{
		State:            State(s.state.Load()),
		Underruns:        s.underruns.Load(),
		Overruns:         s.overruns.Load(),
		DriftCorrections: s.driftCorrections.Load(),
		FillRatio:        fillRatio,
		Volume:           volume,
		RoundTripLatency: roundTrip,
		PerLegLatency:    perLeg,
		LastError:        lastErr,
		HostInfo:         hostInfo,
	}
}
