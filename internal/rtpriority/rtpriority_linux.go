//go:build linux

package rtpriority

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// fifoPriority is a conservative real-time priority: high enough to
// preempt normal SCHED_OTHER work, low enough to leave headroom below
// kernel housekeeping threads that also run SCHED_FIFO.
const fifoPriority = 40

// raiseCurrentThread attempts SCHED_FIFO first (requires CAP_SYS_NICE
// or appropriate rlimits) and falls back to a reduced nice value via
// setpriority(2) if that fails, mirroring how pro-audio Linux
// applications degrade gracefully without root.
func raiseCurrentThread() (revert func(), err error) {
	tid := unix.Gettid()

	prevParam := &unix.SchedParam{}
	getErr := unix.SchedGetparam(tid, prevParam)

	param := &unix.SchedParam{Priority: fifoPriority}
	if err := unix.SchedSetscheduler(tid, unix.SCHED_FIFO, param); err == nil {
		return func() {
			if getErr == nil {
				_ = unix.SchedSetscheduler(tid, unix.SCHED_OTHER, prevParam)
			}
		}, nil
	}

	const reducedNice = -10
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, reducedNice); err != nil {
		return nil, fmt.Errorf("rtpriority: SCHED_FIFO and setpriority both failed: %w", err)
	}
	return func() {
		_ = unix.Setpriority(unix.PRIO_PROCESS, tid, 0)
	}, nil
}
