// Package devicemonitor implements the Device Monitor (§4.8): it
// subscribes to host audio device-change notifications and raises
// device_added/device_removed events, with a settling delay before
// reporting an added device as usable so the host subsystem has time
// to finish initializing it.
package devicemonitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
)

var log = logging.ForComponent("devicemonitor")

// SettlingDelay is the minimum wait after a device_added notification
// before the engine attempts a fresh start() against it, giving the OS
// time to finalize initialization of the reappeared endpoint.
const SettlingDelay = 500 * time.Millisecond

// Event mirrors a host notification translated into the engine's own
// vocabulary, decoupling engine.Controller from hostaudio's types.
type Event struct {
	Kind     EventKind
	DeviceID string
}

// EventKind enumerates the kinds of events the monitor raises.
type EventKind int

const (
	EventDeviceAdded EventKind = iota
	EventDeviceRemoved
)

// Handler receives device monitor events. The engine Controller
// implements this to react to removed/added endpoints.
type Handler interface {
	OnDeviceEvent(ctx context.Context, event Event)
}

// Monitor subscribes to a hostaudio.Service's notifications and
// forwards them to a Handler, applying the settling delay to
// device_added events before they reach the handler.
type Monitor struct {
	service hostaudio.Service
	handler Handler

	mu         sync.Mutex
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a Monitor bound to the given service and handler. It
// does not subscribe until Start is called.
func New(service hostaudio.Service, handler Handler) *Monitor {
	return &Monitor{service: service, handler: handler}
}

// HostInfo is a diagnostic snapshot of the host platform (§4.11): OS,
// the low-latency audio backend the platform's hostaudio.Service
// targets, and logical CPU count. It never influences device-event
// handling; it exists for operator visibility through the Status/Event
// Surface.
type HostInfo struct {
	OS       string
	Backend  string
	CPUCount int
}

var (
	hostInfoOnce   sync.Once
	hostInfoCached HostInfo
)

// HostInfo returns the host platform diagnostics (§4.11), gathered
// once and memoized since the host platform cannot change over a
// process's lifetime. Sourced via shirou/gopsutil/v3, the same library
// the teacher's internal/analysis/realtime.go uses for its own
// host.Info() diagnostic log line.
func (m *Monitor) HostInfo() HostInfo {
	hostInfoOnce.Do(func() {
		hostInfoCached.OS = runtime.GOOS
		hostInfoCached.Backend = backendName()
		if info, err := host.Info(); err == nil {
			hostInfoCached.OS = info.OS
		} else {
			log.Debug("host info unavailable", "error", err)
		}
		if counts, err := cpu.Counts(true); err == nil {
			hostInfoCached.CPUCount = counts
		} else {
			log.Debug("cpu count unavailable", "error", err)
		}
	})
	return hostInfoCached
}

// backendName names the low-latency audio backend hostaudio/malgo
// selects for this platform (see malgo.backendForPlatform), kept as a
// parallel pure mapping here so the Device Monitor need not import the
// malgo package just to describe it.
func backendName() string {
	switch runtime.GOOS {
	case "linux":
		return "alsa"
	case "windows":
		return "wasapi"
	case "darwin":
		return "coreaudio"
	default:
		return "unknown"
	}
}

// Start subscribes to device notifications. Settling delays for
// device_added events are scheduled against ctx, so canceling ctx
// also cancels any pending settling timers.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	unsubscribe, err := m.service.Subscribe(notifierFunc(func(event hostaudio.NotifierEvent) {
		m.handleNotification(monitorCtx, event)
	}))
	if err != nil {
		cancel()
		return err
	}
	m.unsubscribe = unsubscribe
	return nil
}

// Stop unsubscribes and cancels any pending settling timers.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	cancel := m.cancel
	m.unsubscribe = nil
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	m.wg.Wait()
}

func (m *Monitor) handleNotification(ctx context.Context, event hostaudio.NotifierEvent) {
	switch event.Kind {
	case hostaudio.EventDeviceRemoved:
		log.Info("device removed", "device_id", event.DeviceID)
		m.handler.OnDeviceEvent(ctx, Event{Kind: EventDeviceRemoved, DeviceID: event.DeviceID})

	case hostaudio.EventDeviceAdded:
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			timer := time.NewTimer(SettlingDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
				log.Info("device added, settling delay elapsed", "device_id", event.DeviceID)
				m.handler.OnDeviceEvent(ctx, Event{Kind: EventDeviceAdded, DeviceID: event.DeviceID})
			case <-ctx.Done():
			}
		}()
	}
}

type notifierFunc func(hostaudio.NotifierEvent)

func (f notifierFunc) Notify(event hostaudio.NotifierEvent) { f(event) }
