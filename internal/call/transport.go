package call

import (
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/signaling"
)

// TransportState is the coordinator's view of the peer connection's
// connectivity, reduced to the states the session machine reacts to.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	}
	return "unknown"
}

// PeerTransport is the externally provided peer connection. The rtc package
// implements it over pion; tests drive the coordinator with a fake.
type PeerTransport interface {
	AddTrack(t Track) (TrackSender, error)

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error

	// OnICECandidate registers a callback for locally gathered candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack registers a callback for inbound remote tracks.
	OnTrack(func(RemoteTrack))
	// OnStateChange registers a callback for connectivity changes.
	OnStateChange(func(TransportState))

	Close() error
}

// TrackSender is the outbound leg of one local track, supporting in-place
// replacement without renegotiation (used for screen sharing).
type TrackSender interface {
	Track() Track
	ReplaceTrack(Track) error
}

// RemoteTrack is an inbound media track. The coordinator only surfaces it;
// rendering is the embedder's concern.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
}

// Signal is the outbound side of the signaling channel the coordinator is
// constructed with. *signaling.Channel satisfies it.
type Signal interface {
	Send(msg signaling.Message) error
}
