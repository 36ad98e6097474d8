//go:build !linux

package rtc

import (
	"errors"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/call"
)

var errNoCapture = errors.New("device capture requires a linux build (V4L2/malgo drivers)")

// NewStack builds a signaling-capable stack without local capture. Calls
// started on this platform fail at media acquisition; incoming signaling
// still works, which keeps the client testable everywhere.
func NewStack() (*Stack, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Stack{api: api, devices: unsupportedDevices{}}, nil
}

type unsupportedDevices struct{}

func (unsupportedDevices) GetUserMedia(call.Constraints) (*call.Stream, error) {
	return nil, errNoCapture
}

func (unsupportedDevices) GetDisplayMedia() (*call.Stream, error) {
	return nil, errNoCapture
}
