package call

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/signaling"
)

// ---------------------------------------------------------------------------
// Test doubles for the externally provided collaborators.
// ---------------------------------------------------------------------------

type fakeTrack struct {
	id      string
	kind    TrackKind
	enabled bool
	stopped bool
	onEnded func()
}

func (t *fakeTrack) ID() string          { return t.id }
func (t *fakeTrack) Kind() TrackKind     { return t.kind }
func (t *fakeTrack) Enabled() bool       { return t.enabled }
func (t *fakeTrack) SetEnabled(v bool)   { t.enabled = v }
func (t *fakeTrack) OnEnded(fn func())   { t.onEnded = fn }
func (t *fakeTrack) Stop()               { t.stopped = true }

type fakeDevices struct {
	userCalls    int
	displayCalls int
	failUser     bool
	failDisplay  bool

	lastConstraints Constraints
	acquired        []*fakeTrack // every track ever handed out
	lastMic         *fakeTrack
	lastCam         *fakeTrack
	lastScreen      *fakeTrack
}

func (d *fakeDevices) GetUserMedia(c Constraints) (*Stream, error) {
	d.userCalls++
	d.lastConstraints = c
	if d.failUser {
		return nil, errors.New("permission denied")
	}

	d.lastMic = &fakeTrack{id: fmt.Sprintf("mic-%d", d.userCalls), kind: TrackAudio, enabled: true}
	d.acquired = append(d.acquired, d.lastMic)
	tracks := []Track{d.lastMic}

	if c.Video {
		d.lastCam = &fakeTrack{id: fmt.Sprintf("cam-%d", d.userCalls), kind: TrackVideo, enabled: true}
		d.acquired = append(d.acquired, d.lastCam)
		tracks = append(tracks, d.lastCam)
	}
	return NewStream(tracks...), nil
}

func (d *fakeDevices) GetDisplayMedia() (*Stream, error) {
	d.displayCalls++
	if d.failDisplay {
		return nil, errors.New("capture cancelled")
	}
	d.lastScreen = &fakeTrack{id: fmt.Sprintf("screen-%d", d.displayCalls), kind: TrackVideo, enabled: true}
	d.acquired = append(d.acquired, d.lastScreen)
	return NewStream(d.lastScreen), nil
}

type fakeSender struct {
	current Track
}

func (s *fakeSender) Track() Track { return s.current }

func (s *fakeSender) ReplaceTrack(t Track) error {
	s.current = t
	return nil
}

type fakePeer struct {
	added   []Track
	senders []*fakeSender

	mu      sync.Mutex
	applied []webrtc.ICECandidateInit
	failOn  map[string]bool // candidates that refuse to apply

	local  *webrtc.SessionDescription
	remote *webrtc.SessionDescription

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(RemoteTrack)
	onState func(TransportState)

	closed int
}

func (p *fakePeer) AddTrack(t Track) (TrackSender, error) {
	s := &fakeSender{current: t}
	p.added = append(p.added, t)
	p.senders = append(p.senders, s)
	return s, nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	p.local = &sdp
	return nil
}

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	p.remote = &sdp
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[c.Candidate] {
		return errors.New("candidate refused")
	}
	p.applied = append(p.applied, c)
	return nil
}

func (p *fakePeer) appliedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }
func (p *fakePeer) OnTrack(fn func(RemoteTrack))                   { p.onTrack = fn }
func (p *fakePeer) OnStateChange(fn func(TransportState))          { p.onState = fn }

func (p *fakePeer) Close() error {
	p.closed++
	return nil
}

type fakeRemoteTrack struct {
	id   string
	kind TrackKind
}

func (t fakeRemoteTrack) ID() string      { return t.id }
func (t fakeRemoteTrack) Kind() TrackKind { return t.kind }

type fakeSignal struct {
	sent []signaling.Message
	err  error // when set, every Send fails
}

func (s *fakeSignal) Send(m signaling.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSignal) byType(t signaling.MessageType) []signaling.Message {
	var out []signaling.Message
	for _, m := range s.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
