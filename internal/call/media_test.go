package call

import (
	"errors"
	"testing"
)

func TestPipelineAcquireAudioOnly(t *testing.T) {
	dev := &fakeDevices{}
	p := pipeline{devices: dev}

	if err := p.acquire(false); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got := len(p.local.Tracks()); got != 1 {
		t.Fatalf("tracks = %d, want 1", got)
	}
	if got := len(p.local.VideoTracks()); got != 0 {
		t.Fatalf("video tracks = %d, want 0", got)
	}
	if dev.lastConstraints.Video {
		t.Fatal("audio-only acquire requested video")
	}
	if !dev.lastConstraints.EchoCancellation || !dev.lastConstraints.NoiseSuppression || !dev.lastConstraints.AutoGainControl {
		t.Fatalf("audio processing flags not set: %+v", dev.lastConstraints)
	}
}

func TestPipelineAcquireWrapsMediaError(t *testing.T) {
	dev := &fakeDevices{failUser: true}
	p := pipeline{devices: dev}

	err := p.acquire(true)
	var me *MediaError
	if !errors.As(err, &me) {
		t.Fatalf("acquire = %v, want *MediaError", err)
	}
	if me.Op != "microphone/camera" {
		t.Fatalf("Op = %q", me.Op)
	}
}

func TestPipelineAttachRecordsVideoSender(t *testing.T) {
	dev := &fakeDevices{}
	p := pipeline{devices: dev}
	pc := &fakePeer{}

	if err := p.acquire(true); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.attach(pc); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if len(pc.added) != 2 {
		t.Fatalf("attached %d tracks, want 2", len(pc.added))
	}
	if p.videoSender == nil {
		t.Fatal("video sender not recorded")
	}
	if p.videoSender.Track() != Track(dev.lastCam) {
		t.Fatal("video sender not carrying the camera track")
	}
}

func TestPipelineTogglesWithoutStream(t *testing.T) {
	p := pipeline{devices: &fakeDevices{}}

	if _, ok := p.toggleMute(); ok {
		t.Fatal("toggleMute reported ok without a stream")
	}
	if _, ok := p.toggleVideo(); ok {
		t.Fatal("toggleVideo reported ok without a stream")
	}
}

func TestPipelineScreenShareWithoutVideoSender(t *testing.T) {
	dev := &fakeDevices{}
	p := pipeline{devices: dev}

	if err := p.acquire(false); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.startScreenShare(func() {}); !errors.Is(err, ErrNotInCall) {
		t.Fatalf("startScreenShare = %v, want ErrNotInCall", err)
	}
}

func TestPipelineScreenShareCaptureFailure(t *testing.T) {
	dev := &fakeDevices{failDisplay: true}
	p := pipeline{devices: dev}
	pc := &fakePeer{}

	if err := p.acquire(true); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.attach(pc); err != nil {
		t.Fatalf("attach: %v", err)
	}

	err := p.startScreenShare(func() {})
	var me *MediaError
	if !errors.As(err, &me) || me.Op != "screen" {
		t.Fatalf("startScreenShare = %v, want screen MediaError", err)
	}
	if p.sharing {
		t.Fatal("sharing flag set after capture failure")
	}
}

func TestPipelineReleaseIdempotent(t *testing.T) {
	dev := &fakeDevices{}
	p := pipeline{devices: dev}

	p.release() // nothing acquired yet

	if err := p.acquire(true); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	pc := &fakePeer{}
	if err := p.attach(pc); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := p.startScreenShare(func() {}); err != nil {
		t.Fatalf("startScreenShare: %v", err)
	}

	p.release()
	p.release()

	for _, tr := range dev.acquired {
		if !tr.stopped {
			t.Fatalf("track %s left running", tr.id)
		}
	}
	if p.local != nil || p.screen != nil || p.videoSender != nil || p.sharing {
		t.Fatalf("release left state behind: %+v", p)
	}
}
