// Package rtpriority implements the Real-Time Priority Service (§4.7):
// a best-effort, non-fatal attempt to move the calling OS thread into
// a pro-audio/real-time scheduling class on first callback entry, and
// to revert it on stop. Failure here never aborts the engine — it is
// logged and the callback continues at whatever priority it already
// has, the same tolerant posture the teacher takes toward optional OS
// resource tuning in datastore's resource_monitor_*.go files.
package rtpriority

import (
	"sync"
	"sync/atomic"

	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
)

var log = logging.ForComponent("rtpriority")

// Raiser elevates the scheduling priority of the thread that calls
// Raise, exactly once, and restores it on Revert. It is intended to be
// called from inside an audio callback the first time that callback
// fires on its own OS thread, since Go only pins a goroutine to an OS
// thread for the duration of runtime.LockOSThread.
type Raiser struct {
	raised  atomic.Bool
	once    sync.Once
	revert  func()
	mu      sync.Mutex
	lastErr error
}

// New returns a Raiser. It does nothing until Raise is called.
func New() *Raiser {
	return &Raiser{}
}

// Raise attempts to move the current OS thread into a real-time or
// pro-audio scheduling class. It is idempotent: subsequent calls after
// a successful raise are no-ops. Errors are logged at warn level and
// swallowed — real-time scheduling is an optimization, not a
// correctness requirement, per the engine's real-time-safety posture.
func (r *Raiser) Raise() {
	if r.raised.Load() {
		return
	}
	r.once.Do(func() {
		revert, err := raiseCurrentThread()
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		if err != nil {
			log.Warn("failed to raise real-time thread priority", "error", err)
			return
		}
		r.revert = revert
		r.raised.Store(true)
		log.Debug("raised real-time thread priority")
	})
}

// Revert undoes a successful Raise, restoring the thread's previous
// scheduling class. Safe to call even if Raise never succeeded.
func (r *Raiser) Revert() {
	if !r.raised.CompareAndSwap(true, false) {
		return
	}
	r.mu.Lock()
	revert := r.revert
	r.mu.Unlock()
	if revert != nil {
		revert()
	}
	log.Debug("reverted real-time thread priority")
}

// LastError returns the error (if any) from the most recent Raise
// attempt, for diagnostics surfaced through the Status/Event Surface.
func (r *Raiser) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Raised reports whether this thread currently holds an elevated
// priority.
func (r *Raiser) Raised() bool {
	return r.raised.Load()
}
