package devicemonitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio/fake"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHandler) OnDeviceEvent(ctx context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

func TestDeviceRemovedDeliveredImmediately(t *testing.T) {
	service := fake.New()
	handler := &recordingHandler{}
	mon := New(service, handler)

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	service.Emit(hostaudio.NotifierEvent{Kind: hostaudio.EventDeviceRemoved, DeviceID: "fake-input"})

	assert.Eventually(t, func() bool {
		return len(handler.snapshot()) == 1
	}, time.Second, time.Millisecond)

	events := handler.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventDeviceRemoved, events[0].Kind)
	assert.Equal(t, "fake-input", events[0].DeviceID)
}

func TestDeviceAddedWaitsForSettlingDelay(t *testing.T) {
	service := fake.New()
	handler := &recordingHandler{}
	mon := New(service, handler)

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	service.Emit(hostaudio.NotifierEvent{Kind: hostaudio.EventDeviceAdded, DeviceID: "fake-input"})

	assert.Empty(t, handler.snapshot(), "device_added must not be delivered before the settling delay elapses")

	assert.Eventually(t, func() bool {
		return len(handler.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := handler.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventDeviceAdded, events[0].Kind)
}

func TestStopCancelsPendingSettlingTimer(t *testing.T) {
	service := fake.New()
	handler := &recordingHandler{}
	mon := New(service, handler)

	require.NoError(t, mon.Start(context.Background()))
	service.Emit(hostaudio.NotifierEvent{Kind: hostaudio.EventDeviceAdded, DeviceID: "fake-input"})

	mon.Stop()

	time.Sleep(SettlingDelay + 100*time.Millisecond)
	assert.Empty(t, handler.snapshot(), "a canceled settling timer must never deliver its event")
}

func TestHostInfoReportsNonEmptyPlatformDiagnostics(t *testing.T) {
	mon := New(fake.New(), &recordingHandler{})

	info := mon.HostInfo()
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Backend)
	assert.Greater(t, info.CPUCount, 0)
}

func TestHostInfoIsMemoizedAcrossMonitors(t *testing.T) {
	first := New(fake.New(), &recordingHandler{}).HostInfo()
	second := New(fake.New(), &recordingHandler{}).HostInfo()
	assert.Equal(t, first, second)
}
