// Package rtc provides the pion-backed implementations of the call
// package's peer transport and device interfaces. The coordinator never
// touches pion directly; everything crosses through these adapters.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/call"
	"github.com/kota4976/buildup-call/internal/util"
)

// STUN servers for ICE candidate gathering. No TURN — calls that need a
// relay are out of reach until the platform provisions one.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// pionLocal is implemented by local track wrappers that can expose the
// underlying pion track for AddTrack/ReplaceTrack.
type pionLocal interface {
	pion() webrtc.TrackLocal
}

// Peer wraps a pion PeerConnection as a call.PeerTransport.
type Peer struct {
	pc *webrtc.PeerConnection
}

func newPeer(api *webrtc.API) (*Peer, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Peer{pc: pc}, nil
}

func (p *Peer) AddTrack(t call.Track) (call.TrackSender, error) {
	lt, ok := t.(pionLocal)
	if !ok {
		return nil, fmt.Errorf("track %s was not produced by this capture stack", t.ID())
	}
	s, err := p.pc.AddTrack(lt.pion())
	if err != nil {
		return nil, err
	}
	return &trackSender{rtp: s, current: t}, nil
}

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

func (p *Peer) OnTrack(fn func(call.RemoteTrack)) {
	p.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		util.LogDebug("remote track: id=%s kind=%s", tr.ID(), tr.Kind())
		// Keep the receiver drained; a stalled reader backs up the whole
		// transport. Playback is the embedder's concern.
		go drainTrack(tr)
		fn(remoteTrack{tr: tr})
	})
}

func (p *Peer) OnStateChange(fn func(call.TransportState)) {
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		util.LogDebug("ICE connection state: %s", s)
		switch s {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			fn(call.TransportConnected)
		case webrtc.ICEConnectionStateDisconnected:
			fn(call.TransportDisconnected)
		case webrtc.ICEConnectionStateFailed:
			fn(call.TransportFailed)
		case webrtc.ICEConnectionStateClosed:
			fn(call.TransportClosed)
		}
	})
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

func drainTrack(tr *webrtc.TrackRemote) {
	for {
		if _, _, err := tr.ReadRTP(); err != nil {
			return
		}
	}
}

// trackSender adapts a pion RTPSender to call.TrackSender.
type trackSender struct {
	rtp     *webrtc.RTPSender
	current call.Track
}

func (s *trackSender) Track() call.Track { return s.current }

func (s *trackSender) ReplaceTrack(t call.Track) error {
	lt, ok := t.(pionLocal)
	if !ok {
		return fmt.Errorf("track %s was not produced by this capture stack", t.ID())
	}
	if err := s.rtp.ReplaceTrack(lt.pion()); err != nil {
		return err
	}
	s.current = t
	return nil
}

// remoteTrack adapts a pion TrackRemote to call.RemoteTrack.
type remoteTrack struct {
	tr *webrtc.TrackRemote
}

func (r remoteTrack) ID() string { return r.tr.ID() }

func (r remoteTrack) Kind() call.TrackKind {
	if r.tr.Kind() == webrtc.RTPCodecTypeAudio {
		return call.TrackAudio
	}
	return call.TrackVideo
}
