package call

import (
	"errors"
	"fmt"
)

var (
	// ErrCallInProgress is returned by Start while another session is live.
	// At most one call session may be non-idle at a time.
	ErrCallInProgress = errors.New("a call is already in progress")

	// ErrNotRinging is returned by Accept/Reject when there is no pending
	// incoming call.
	ErrNotRinging = errors.New("no incoming call to answer")

	// ErrNotInCall is returned by toggle commands outside a live session.
	ErrNotInCall = errors.New("not in a call")

	errNoScreenTrack = errors.New("display capture produced no video track")
)

// MediaError wraps a device-acquisition failure (permission denied, device
// busy or absent). The call attempt is aborted and any partially acquired
// resources are released before this surfaces.
type MediaError struct {
	Op  string // "microphone/camera" or "screen"
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("failed to acquire %s: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }
