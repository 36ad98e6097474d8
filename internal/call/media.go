package call

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one local capture track. SetEnabled flips transmission without
// renegotiation — the peer infers a muted mic or disabled camera from
// silence; nothing is signaled.
type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(bool)
	// OnEnded fires when the capture source stops outside our control,
	// e.g. the user ends a screen share from the OS-level UI.
	OnEnded(fn func())
	Stop()
}

// Stream groups tracks acquired together from one capture request.
type Stream struct {
	tracks []Track
}

// NewStream builds a Stream over the given tracks.
func NewStream(tracks ...Track) *Stream {
	return &Stream{tracks: tracks}
}

func (s *Stream) Tracks() []Track { return s.tracks }

func (s *Stream) AudioTracks() []Track { return s.byKind(TrackAudio) }
func (s *Stream) VideoTracks() []Track { return s.byKind(TrackVideo) }

func (s *Stream) byKind(k TrackKind) []Track {
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}

// Constraints describes what to capture. Audio is always requested; the
// echo-cancellation family of flags is best-effort — not every capture
// backend exposes them.
type Constraints struct {
	Video  bool
	Width  int // ideal, video only
	Height int // ideal, video only

	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints returns the capture profile used for calls: processed
// audio plus, if video is requested, a 1280×720 user-facing camera.
func DefaultConstraints(video bool) Constraints {
	return Constraints{
		Video:            video,
		Width:            1280,
		Height:           720,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Devices is the externally provided capture stack.
type Devices interface {
	GetUserMedia(c Constraints) (*Stream, error)
	GetDisplayMedia() (*Stream, error)
}

// pipeline owns the media resources of the active session: the local
// capture stream, the optional screen stream, and the senders attached to
// the peer transport. It is exclusively owned by the coordinator and only
// mutated under the coordinator's lock.
type pipeline struct {
	devices Devices

	local  *Stream
	screen *Stream

	videoSender TrackSender // outbound video leg, needed for track swaps
	sharing     bool
}

// acquire requests local audio (always) and video (if video is true).
func (p *pipeline) acquire(video bool) error {
	stream, err := p.devices.GetUserMedia(DefaultConstraints(video))
	if err != nil {
		return &MediaError{Op: "microphone/camera", Err: err}
	}
	p.local = stream
	return nil
}

// attach adds every local track to the peer transport, remembering the
// video sender for later screen-share substitution.
func (p *pipeline) attach(pc PeerTransport) error {
	if p.local == nil {
		return nil
	}
	for _, t := range p.local.Tracks() {
		sender, err := pc.AddTrack(t)
		if err != nil {
			return err
		}
		if t.Kind() == TrackVideo {
			p.videoSender = sender
		}
	}
	return nil
}

// toggleMute flips the audio track. Returns the new muted state and whether
// there was a track to act on.
func (p *pipeline) toggleMute() (muted, ok bool) {
	t := p.firstLocal(TrackAudio)
	if t == nil {
		return false, false
	}
	t.SetEnabled(!t.Enabled())
	return !t.Enabled(), true
}

// toggleVideo flips the camera track. Returns the new disabled state and
// whether there was a track to act on.
func (p *pipeline) toggleVideo() (disabled, ok bool) {
	t := p.firstLocal(TrackVideo)
	if t == nil {
		return false, false
	}
	t.SetEnabled(!t.Enabled())
	return !t.Enabled(), true
}

// startScreenShare captures the screen and swaps it in for the camera track
// on the existing sender — no renegotiation. onEnded fires if the user
// stops sharing from the OS-level UI, so the coordinator can revert.
func (p *pipeline) startScreenShare(onEnded func()) error {
	if p.sharing {
		return nil
	}
	if p.videoSender == nil {
		return ErrNotInCall
	}

	stream, err := p.devices.GetDisplayMedia()
	if err != nil {
		return &MediaError{Op: "screen", Err: err}
	}
	tracks := stream.VideoTracks()
	if len(tracks) == 0 {
		return &MediaError{Op: "screen", Err: errNoScreenTrack}
	}

	if err := p.videoSender.ReplaceTrack(tracks[0]); err != nil {
		for _, t := range stream.Tracks() {
			t.Stop()
		}
		return err
	}

	tracks[0].OnEnded(onEnded)
	p.screen = stream
	p.sharing = true
	return nil
}

// stopScreenShare stops the screen stream and restores the camera track.
// No-op when not sharing.
func (p *pipeline) stopScreenShare() error {
	if !p.sharing {
		return nil
	}
	if p.screen != nil {
		for _, t := range p.screen.Tracks() {
			t.Stop()
		}
		p.screen = nil
	}
	p.sharing = false

	if cam := p.firstLocal(TrackVideo); cam != nil && p.videoSender != nil {
		return p.videoSender.ReplaceTrack(cam)
	}
	return nil
}

// release stops every track across local and screen streams. Idempotent —
// callable even if nothing was ever acquired. A camera light left on after
// a call is a bug, not cosmetics.
func (p *pipeline) release() {
	if p.local != nil {
		for _, t := range p.local.Tracks() {
			t.Stop()
		}
		p.local = nil
	}
	if p.screen != nil {
		for _, t := range p.screen.Tracks() {
			t.Stop()
		}
		p.screen = nil
	}
	p.videoSender = nil
	p.sharing = false
}

func (p *pipeline) firstLocal(k TrackKind) Track {
	if p.local == nil {
		return nil
	}
	tracks := p.local.byKind(k)
	if len(tracks) == 0 {
		return nil
	}
	return tracks[0]
}
