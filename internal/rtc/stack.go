package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/call"
)

// Stack bundles the pion API and the capture stack so peer connections and
// capture tracks share one media engine — the codecs the encoder produces
// must be the codecs the SDP negotiates.
type Stack struct {
	api     *webrtc.API
	devices call.Devices
}

// NewPeer creates a fresh peer transport. One per negotiation.
func (s *Stack) NewPeer() (call.PeerTransport, error) {
	return newPeer(s.api)
}

// Devices returns the capture stack matching this API.
func (s *Stack) Devices() call.Devices {
	return s.devices
}
