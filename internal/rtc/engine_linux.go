//go:build linux

package rtc

import (
	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/call"
)

// NewStack builds the VP8+Opus capture stack over pion/mediadevices
// (V4L2 camera, malgo microphone, X11 screen capture).
func NewStack() (*Stack, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Stack{api: api, devices: &devices{selector: selector}}, nil
}

// devices implements call.Devices over pion/mediadevices.
type devices struct {
	selector *mediadevices.CodecSelector
}

func (d *devices) GetUserMedia(c call.Constraints) (*call.Stream, error) {
	// The echo-cancellation family of constraints has no knob here; audio
	// processing is whatever the capture driver provides.
	constraints := mediadevices.MediaStreamConstraints{
		Codec: d.selector,
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	if c.Video {
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			mc.Width = prop.IntRanged{Ideal: c.Width}
			mc.Height = prop.IntRanged{Ideal: c.Height}
		}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}
	return wrapStream(ms), nil
}

func (d *devices) GetDisplayMedia() (*call.Stream, error) {
	ms, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Codec: d.selector,
		Video: func(_ *mediadevices.MediaTrackConstraints) {},
	})
	if err != nil {
		return nil, err
	}
	return wrapStream(ms), nil
}

func wrapStream(ms mediadevices.MediaStream) *call.Stream {
	var tracks []call.Track
	for _, t := range ms.GetTracks() {
		tracks = append(tracks, newLocalTrack(t))
	}
	return call.NewStream(tracks...)
}
