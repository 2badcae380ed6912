//go:build !linux

package rtpriority

import "errors"

// raiseCurrentThread has no implementation on this platform yet; the
// caller treats the returned error as non-fatal.
func raiseCurrentThread() (revert func(), err error) {
	return nil, errors.New("rtpriority: not implemented on this platform")
}
