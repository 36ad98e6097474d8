//go:build linux

package rtc

import (
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/call"
	"github.com/kota4976/buildup-call/internal/util"
)

// localTrack adapts a mediadevices capture track to call.Track.
type localTrack struct {
	md      mediadevices.Track
	kind    call.TrackKind
	enabled atomic.Bool
}

func newLocalTrack(t mediadevices.Track) *localTrack {
	kind := call.TrackVideo
	if t.Kind() == webrtc.RTPCodecTypeAudio {
		kind = call.TrackAudio
	}
	lt := &localTrack{md: t, kind: kind}
	lt.enabled.Store(true)
	return lt
}

func (t *localTrack) ID() string          { return t.md.ID() }
func (t *localTrack) Kind() call.TrackKind { return t.kind }

func (t *localTrack) Enabled() bool { return t.enabled.Load() }

// SetEnabled flips the local flag; the capture pipeline keeps running.
// TODO: pause the RTP sender when disabled. pion has no track-level
// enabled flag, so a true mute needs ReplaceTrack(nil) on the sender.
func (t *localTrack) SetEnabled(v bool) { t.enabled.Store(v) }

func (t *localTrack) OnEnded(fn func()) {
	t.md.OnEnded(func(err error) {
		if err != nil {
			util.LogDebug("track %s ended: %v", t.md.ID(), err)
		}
		fn()
	})
}

func (t *localTrack) Stop() {
	if err := t.md.Close(); err != nil {
		util.LogDebug("closing track %s: %v", t.md.ID(), err)
	}
}

func (t *localTrack) pion() webrtc.TrackLocal { return t.md }
