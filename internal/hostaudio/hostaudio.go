// Package hostaudio defines the seam between the duplex engine and the
// OS low-latency shared-mode audio stack (§6 of the specification).
// The engine never talks to a concrete audio API directly; it talks to
// this interface, which the malgo subpackage implements for real
// hardware and the fake subpackage implements for tests.
package hostaudio

import "context"

// Direction is the data flow direction of a device.
type Direction int

const (
	DirectionCapture Direction = iota
	DirectionPlayback
)

// ShareMode mirrors config.ShareMode without importing the config
// package, keeping hostaudio a leaf dependency.
type ShareMode int

const (
	ShareModeShared ShareMode = iota
	ShareModeExclusive
)

// SampleFormat identifies the wire format of a device's native PCM.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

// DeviceInfo is the immutable metadata of an enumerated device.
type DeviceInfo struct {
	ID         string
	Name       string
	IsDefault  bool
	SampleRate int
	Channels   int
	Direction  Direction
}

// OpenFlags carries the host-audio flags §6 requires at minimum.
type OpenFlags struct {
	BypassOSResampler bool
	ProAudioUsage     bool
}

// OpenParams bundles the parameters passed to Service.Open.
type OpenParams struct {
	Direction    Direction
	Format       SampleFormat
	Channels     int
	SampleRate   int
	PeriodFrames int
	ShareMode    ShareMode
	Flags        OpenFlags
}

// Callback is invoked once per period by the host audio subsystem.
// outBlock is non-nil (and must be filled) for playback devices;
// inBlock is non-nil (and holds captured samples) for capture devices.
// frames may vary across invocations — callers must never assume a
// fixed quantum.
type Callback func(outBlock, inBlock []byte, frames int)

// StopCallback is invoked when a device stops, whether requested or
// not (e.g. the underlying hardware disappeared).
type StopCallback func()

// Device is a single opened audio endpoint.
type Device interface {
	Start() error
	Stop() error
	Uninit() error

	// ActualFormat and ActualSampleRate report what the host actually
	// negotiated, which may differ from what was requested.
	ActualFormat() SampleFormat
	ActualSampleRate() int
}

// NotifierEvent is a device state/route change reported through
// Service.Subscribe.
type NotifierEvent struct {
	Kind     NotifierEventKind
	DeviceID string
}

// NotifierEventKind enumerates the kinds of notification events.
type NotifierEventKind int

const (
	EventDeviceAdded NotifierEventKind = iota
	EventDeviceRemoved
)

// Notifier receives device state/route events from the host.
type Notifier interface {
	Notify(event NotifierEvent)
}

// Service is the host audio abstraction the Engine Controller depends
// on (§6). A concrete implementation wraps a specific low-latency
// shared-mode API (here: malgo/miniaudio); a fake implementation lets
// tests exercise the engine without real hardware.
type Service interface {
	// ListDevices enumerates devices in the given direction.
	ListDevices(direction Direction) ([]DeviceInfo, error)

	// Resolve turns an opaque device identifier into a handle usable
	// by Open. An empty id resolves to the direction's default device.
	Resolve(id string, direction Direction) (DeviceInfo, error)

	// Open creates (but does not start) a device.
	Open(ctx context.Context, device DeviceInfo, params OpenParams, onData Callback, onStop StopCallback) (Device, error)

	// Subscribe registers a notifier for device add/remove events.
	// Returns an unsubscribe function.
	Subscribe(notifier Notifier) (unsubscribe func(), err error)

	// Close releases any host-level context held by the service.
	Close() error
}
