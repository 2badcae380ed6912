// Package fake provides an in-memory hostaudio.Service double so the
// engine and its workers can be exercised in tests without real audio
// hardware, the way the teacher's audiocore tests substitute a fake
// source for MalgoSource.
package fake

import (
	"context"
	"sync"

	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
)

// Service is a deterministic, hardware-free hostaudio.Service. Tests
// drive its devices by calling PushCapture on the Device returned from
// Open, or by reading what was written via PlaybackWrites.
type Service struct {
	mu       sync.Mutex
	devices  []hostaudio.DeviceInfo
	opened   []*Device
	notifier hostaudio.Notifier
	closed   bool
}

// New creates a fake service seeded with one default capture and one
// default playback device, matching the minimal device set §2/§6
// assumes is always available.
func New() *Service {
	return &Service{
		devices: []hostaudio.DeviceInfo{
			{ID: "fake-input", Name: "Fake Microphone", IsDefault: true, SampleRate: 48000, Channels: 2, Direction: hostaudio.DirectionCapture},
			{ID: "fake-output", Name: "Fake Headphones", IsDefault: true, SampleRate: 48000, Channels: 2, Direction: hostaudio.DirectionPlayback},
		},
	}
}

// AddDevice lets a test register an extra enumerable device, e.g. to
// simulate a USB headset being plugged in mid-session.
func (s *Service) AddDevice(d hostaudio.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, d)
}

// RemoveDevice drops a device by id, simulating unplugging it.
func (s *Service) RemoveDevice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.devices[:0]
	for _, d := range s.devices {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	s.devices = kept
}

func (s *Service) ListDevices(direction hostaudio.Direction) ([]hostaudio.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []hostaudio.DeviceInfo
	for _, d := range s.devices {
		if d.Direction == direction {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) Resolve(id string, direction hostaudio.Direction) (hostaudio.DeviceInfo, error) {
	devices, _ := s.ListDevices(direction)
	if id == "" {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
	}
	for _, d := range devices {
		if d.ID == id {
			return d, nil
		}
	}
	return hostaudio.DeviceInfo{}, errDeviceNotFound(id)
}

func (s *Service) Open(ctx context.Context, device hostaudio.DeviceInfo, params hostaudio.OpenParams, onData hostaudio.Callback, onStop hostaudio.StopCallback) (hostaudio.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev := &Device{
		info:      device,
		params:    params,
		onData:    onData,
		onStop:    onStop,
		format:    params.Format,
		sampleRate: params.SampleRate,
	}
	s.opened = append(s.opened, dev)
	return dev, nil
}

func (s *Service) Subscribe(notifier hostaudio.Notifier) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.notifier = nil
	}, nil
}

// Emit delivers a device add/remove notification to the currently
// subscribed notifier, simulating a hot-plug event for devicemonitor
// tests.
func (s *Service) Emit(event hostaudio.NotifierEvent) {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n != nil {
		n.Notify(event)
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Device is a fake opened endpoint. For a capture device, tests call
// PushCapture to synthesize a period of microphone input and drive the
// registered callback. For a playback device, the callback is invoked
// by the test with an empty outBlock to pull; PlaybackWrites collects
// what the engine wrote.
type Device struct {
	mu         sync.Mutex
	info       hostaudio.DeviceInfo
	params     hostaudio.OpenParams
	onData     hostaudio.Callback
	onStop     hostaudio.StopCallback
	format     hostaudio.SampleFormat
	sampleRate int
	running    bool
	writes     [][]byte
}

func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	wasRunning := d.running
	d.running = false
	cb := d.onStop
	d.mu.Unlock()

	if wasRunning && cb != nil {
		cb()
	}
	return nil
}

func (d *Device) Uninit() error { return nil }

func (d *Device) ActualFormat() hostaudio.SampleFormat { return d.format }
func (d *Device) ActualSampleRate() int                { return d.sampleRate }

// PushCapture drives the capture callback with raw PCM bytes as if
// they had just arrived from the microphone.
func (d *Device) PushCapture(pcm []byte, frames int) {
	d.mu.Lock()
	running := d.running
	cb := d.onData
	d.mu.Unlock()
	if !running || cb == nil {
		return
	}
	cb(nil, pcm, frames)
}

// PullPlayback drives the playback callback, letting the engine fill
// outBlock, then records what it wrote for assertions.
func (d *Device) PullPlayback(outBlock []byte, frames int) []byte {
	d.mu.Lock()
	running := d.running
	cb := d.onData
	d.mu.Unlock()
	if !running || cb == nil {
		return outBlock
	}
	cb(outBlock, nil, frames)
	d.mu.Lock()
	d.writes = append(d.writes, append([]byte(nil), outBlock...))
	d.mu.Unlock()
	return outBlock
}

// PlaybackWrites returns every block written across calls to
// PullPlayback, in order.
func (d *Device) PlaybackWrites() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

// SimulateStop fires the stop callback without a prior Stop call,
// simulating the hardware disappearing out from under the engine.
func (d *Device) SimulateStop() {
	d.mu.Lock()
	d.running = false
	cb := d.onStop
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return "fake device not found: " + e.id }

func errDeviceNotFound(id string) error { return &notFoundError{id: id} }
