// Package call implements the call-session coordinator: a state machine over
// the platform's signaling protocol that negotiates a 1:1 audio/video call,
// owns the local media resources, and tears everything down on any exit path.
package call

// State is the lifecycle phase of the call session.
type State int

const (
	StateIdle        State = iota // no call
	StateDialing                  // outgoing offer sent, waiting for answer
	StateRinging                  // incoming offer held, waiting for the user
	StateNegotiating              // descriptions exchanged, ICE in progress
	StateActive                   // transport connected, media flowing
	StateEnding                   // cleanup in progress
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateRinging:
		return "ringing"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	}
	return "unknown"
}

// Role records which side initiated the call; it determines who creates the
// initial offer and who answers.
type Role int

const (
	RoleNone Role = iota
	RoleCaller
	RoleCallee
)
