// Package malgo implements hostaudio.Service over the gen2brain/malgo
// bindings to miniaudio, the same cross-platform low-latency audio
// library the teacher uses in internal/audiocore/sources/malgo.
package malgo

import (
	"context"
	"encoding/hex"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Arnold-Curtis/AudioGlass/internal/errs"
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
)

// Service is the malgo-backed hostaudio.Service implementation. It
// owns one malgo context for the process lifetime of the engine
// instance that created it — each engine.Controller gets its own
// Service, so multiple engines never share host state.
type Service struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// New initializes a malgo context for the current platform's preferred
// backend.
func New() (*Service, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errs.New(err).
			Component("hostaudio").
			ForKind(errs.KindHostInitFailed).
			Context("backend", runtime.GOOS).
			Build()
	}
	return &Service{ctx: ctx}, nil
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errs.New(nil).
			Component("hostaudio").
			ForKind(errs.KindHostInitFailed).
			Context("os", runtime.GOOS).
			Build()
	}
}

func malgoDirection(d hostaudio.Direction) malgo.DeviceType {
	if d == hostaudio.DirectionPlayback {
		return malgo.Playback
	}
	return malgo.Capture
}

// ListDevices enumerates devices in the given direction, skipping the
// "Discard all samples" null device the way EnumerateDevices does in
// the teacher's sources/malgo/device.go.
func (s *Service) ListDevices(direction hostaudio.Direction) ([]hostaudio.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.ctx.Devices(malgoDirection(direction))
	if err != nil {
		return nil, errs.New(err).
			Component("hostaudio").
			ForKind(errs.KindHostInitFailed).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]hostaudio.DeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		id, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			id = infos[i].ID.String()
		}
		devices = append(devices, hostaudio.DeviceInfo{
			ID:        id,
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault == 1,
			Direction: direction,
		})
	}
	return devices, nil
}

// Resolve finds a device by id, or the direction's default if id is
// empty, following the precedence in the teacher's SelectDevice.
func (s *Service) Resolve(id string, direction hostaudio.Direction) (hostaudio.DeviceInfo, error) {
	devices, err := s.ListDevices(direction)
	if err != nil {
		return hostaudio.DeviceInfo{}, err
	}

	if id == "" || id == "default" || id == "sysdefault" {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
		if len(devices) > 0 {
			return devices[0], nil
		}
	}

	for _, d := range devices {
		if d.ID == id || d.Name == id {
			return d, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(d.Name, id) {
			return d, nil
		}
	}

	return hostaudio.DeviceInfo{}, errs.New(nil).
		Component("hostaudio").
		ForKind(errs.KindDeviceOpenFailed).
		Context("device_id", id).
		Context("available_devices", len(devices)).
		Build()
}

// Open opens a capture or playback device with the requested format,
// channel count, sample rate and period size, matching the
// configuration the teacher applies in MalgoSource.Start: per-direction
// channel count, explicit sample rate, and malgo.Alsa.NoMMap=1 on Linux
// to force the low-latency path. Exclusive share mode and the
// BypassOSResampler flag both set WASAPI's NoAutoConvertSRC; the device
// itself is always opened in miniaudio's default shared mode, and the
// ProAudioUsage flag is not passed to the host.
func (s *Service) Open(ctx context.Context, device hostaudio.DeviceInfo, params hostaudio.OpenParams, onData hostaudio.Callback, onStop hostaudio.StopCallback) (hostaudio.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.ctx.Devices(malgoDirection(params.Direction))
	if err != nil {
		return nil, errs.New(err).
			Component("hostaudio").
			ForKind(errs.KindDeviceOpenFailed).
			Build()
	}

	var target *malgo.DeviceInfo
	for i := range infos {
		decoded, derr := hexToASCII(infos[i].ID.String())
		if derr == nil && decoded == device.ID {
			target = &infos[i]
			break
		}
		if infos[i].Name() == device.ID {
			target = &infos[i]
			break
		}
	}
	if target == nil && (device.ID == "" || device.IsDefault) {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				target = &infos[i]
				break
			}
		}
	}
	if target == nil {
		return nil, errs.New(nil).
			Component("hostaudio").
			ForKind(errs.KindDeviceOpenFailed).
			Context("device_id", device.ID).
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgoDirection(params.Direction))
	deviceConfig.SampleRate = uint32(params.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if params.ShareMode == hostaudio.ShareModeExclusive || params.Flags.BypassOSResampler {
		deviceConfig.Wasapi.NoAutoConvertSRC = 1
	}

	format := toMalgoFormat(params.Format)
	switch params.Direction {
	case hostaudio.DirectionCapture:
		deviceConfig.Capture.Channels = uint32(params.Channels)
		deviceConfig.Capture.Format = format
		deviceConfig.Capture.DeviceID = target.ID.Pointer()
	case hostaudio.DirectionPlayback:
		deviceConfig.Playback.Channels = uint32(params.Channels)
		deviceConfig.Playback.Format = format
		deviceConfig.Playback.DeviceID = target.ID.Pointer()
	}
	if params.PeriodFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(params.PeriodFrames)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(outBlock, inBlock []byte, frames uint32) {
			onData(outBlock, inBlock, int(frames))
		},
	}
	if onStop != nil {
		callbacks.Stop = onStop
	}

	dev, err := malgo.InitDevice(s.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, errs.New(err).
			Component("hostaudio").
			ForKind(errs.KindDeviceOpenFailed).
			Context("device_id", device.ID).
			Context("direction", int(params.Direction)).
			Build()
	}

	return &malgoDevice{device: dev, direction: params.Direction}, nil
}

// Subscribe is a no-op: this malgo binding exposes no device-change
// notification callback to wire a Notifier to. Device removal is
// still detected in practice through each malgoDevice's Stop
// callback firing when the underlying hardware disappears mid-stream
// (see engine.onCaptureStop/onPlaybackStop); only a *reconnected*
// device reappearing without the engine having been told is missed by
// this Service. devicemonitor.Monitor still Subscribes unconditionally
// so the fake backend's notifier-driven tests exercise the same code
// path this real backend will use once miniaudio gains one.
func (s *Service) Subscribe(notifier hostaudio.Notifier) (func(), error) {
	return func() {}, nil
}

// Close releases the malgo context.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil
	}
	err := s.ctx.Uninit()
	s.ctx = nil
	if err != nil {
		return errs.New(err).Component("hostaudio").ForKind(errs.KindHostInitFailed).Build()
	}
	return nil
}

type malgoDevice struct {
	device    *malgo.Device
	direction hostaudio.Direction
}

func (d *malgoDevice) Start() error {
	if err := d.device.Start(); err != nil {
		return errs.New(err).Component("hostaudio").ForKind(errs.KindDeviceStartFailed).Build()
	}
	return nil
}

func (d *malgoDevice) Stop() error {
	if err := d.device.Stop(); err != nil {
		return errs.New(err).Component("hostaudio").ForKind(errs.KindDeviceStartFailed).Build()
	}
	return nil
}

func (d *malgoDevice) Uninit() error {
	d.device.Uninit()
	return nil
}

func (d *malgoDevice) ActualFormat() hostaudio.SampleFormat {
	if d.direction == hostaudio.DirectionPlayback {
		return fromMalgoFormat(d.device.PlaybackFormat())
	}
	return fromMalgoFormat(d.device.CaptureFormat())
}

func (d *malgoDevice) ActualSampleRate() int {
	return int(d.device.SampleRate())
}

func toMalgoFormat(f hostaudio.SampleFormat) malgo.FormatType {
	switch f {
	case hostaudio.FormatU8:
		return malgo.FormatU8
	case hostaudio.FormatS16:
		return malgo.FormatS16
	case hostaudio.FormatS24:
		return malgo.FormatS24
	case hostaudio.FormatS32:
		return malgo.FormatS32
	case hostaudio.FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatF32
	}
}

func fromMalgoFormat(f malgo.FormatType) hostaudio.SampleFormat {
	switch f {
	case malgo.FormatU8:
		return hostaudio.FormatU8
	case malgo.FormatS16:
		return hostaudio.FormatS16
	case malgo.FormatS24:
		return hostaudio.FormatS24
	case malgo.FormatS32:
		return hostaudio.FormatS32
	case malgo.FormatF32:
		return hostaudio.FormatF32
	default:
		return hostaudio.FormatUnknown
	}
}

func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
