package call

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/signaling"
	"github.com/kota4976/buildup-call/internal/util"
)

// failureGrace is how long a failed transport may recover before the
// session is forcibly terminated. A debounce against transient ICE
// renegotiation, not a recovery protocol.
const failureGrace = 3 * time.Second

// Coordinator owns the single call session of this client. It validates
// commands against the session state, drives the media pipeline and the
// peer transport, and exchanges control messages over the injected
// signaling channel. At most one session is non-idle at a time.
//
// Commands and inbound signaling may arrive from any goroutine; all state
// is guarded by one mutex, and observer callbacks are invoked after the
// lock is released so handlers may call back into the Coordinator.
type Coordinator struct {
	signal  Signal
	newPeer func() (PeerTransport, error)

	mu     sync.Mutex
	events []func() // callbacks gathered under mu, fired after unlock

	id    string // per-call correlation id, logged only
	state State
	role  Role
	video bool

	conversationID string
	partnerID      string
	partnerName    string

	pc        PeerTransport
	media     pipeline
	buffer    candidateBuffer
	remoteSet bool // remote description applied for this negotiation

	// The remote offer held between "incoming call announced" and the
	// user accepting. At most one outstanding.
	pendingOffer string

	muted         bool
	videoDisabled bool

	remoteTracks []RemoteTrack

	durStop   chan struct{}
	failTimer *time.Timer
	failGrace time.Duration // 0 means failureGrace

	onStatus      func(string)
	onIncoming    func(partnerName string, video bool)
	onRemoteTrack func(RemoteTrack)
	onDuration    func(time.Duration)
	onEnded       func()
}

// NewCoordinator builds a Coordinator over its collaborators: the signaling
// channel, the capture stack, and a factory for peer transports (one per
// negotiation).
func NewCoordinator(signal Signal, devices Devices, newPeer func() (PeerTransport, error)) *Coordinator {
	return &Coordinator{
		signal:  signal,
		newPeer: newPeer,
		media:   pipeline{devices: devices},
		state:   StateIdle,
	}
}

// ---------------------------------------------------------------------------
// Observers
// ---------------------------------------------------------------------------

// OnStatusChange registers a callback for human-readable status updates.
func (c *Coordinator) OnStatusChange(fn func(string)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// OnIncomingCall registers a callback fired when a remote offer arrives.
// The session stays in the ringing state until Accept or Reject is called.
func (c *Coordinator) OnIncomingCall(fn func(partnerName string, video bool)) {
	c.mu.Lock()
	c.onIncoming = fn
	c.mu.Unlock()
}

// OnRemoteTrack registers a callback fired for each inbound media track.
func (c *Coordinator) OnRemoteTrack(fn func(RemoteTrack)) {
	c.mu.Lock()
	c.onRemoteTrack = fn
	c.mu.Unlock()
}

// OnDuration registers a callback fired once a second while the call is
// active, with the elapsed call time.
func (c *Coordinator) OnDuration(fn func(time.Duration)) {
	c.mu.Lock()
	c.onDuration = fn
	c.mu.Unlock()
}

// OnEnded registers a callback fired after a session is fully torn down.
func (c *Coordinator) OnEnded(fn func()) {
	c.mu.Lock()
	c.onEnded = fn
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// Start places an outgoing call: acquires media, creates the peer transport
// and sends the offer. Rejected with ErrCallInProgress unless idle.
func (c *Coordinator) Start(conversationID, partnerID, partnerName string, video bool) error {
	return c.run(func() error {
		if c.state != StateIdle {
			return ErrCallInProgress
		}

		c.id = uuid.NewString()
		c.role = RoleCaller
		c.video = video
		c.conversationID = conversationID
		c.partnerID = partnerID
		c.partnerName = partnerName
		c.state = StateDialing
		util.LogInfo("call %s: dialing %s (video=%v)", c.id, partnerName, video)

		if err := c.setupLocked(); err != nil {
			c.endLocked(false)
			return err
		}

		offer, err := c.pc.CreateOffer()
		if err != nil {
			c.endLocked(false)
			return fmt.Errorf("create offer: %w", err)
		}
		if err := c.pc.SetLocalDescription(offer); err != nil {
			c.endLocked(false)
			return fmt.Errorf("set local description: %w", err)
		}

		err = c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeOffer,
			SDP:            offer.SDP,
			ConversationID: conversationID,
			TargetUserID:   partnerID,
			IsVideo:        video,
		})
		if err != nil {
			// The channel neither queues nor retries. Stay in Dialing and
			// surface the error; the user decides whether to hang up.
			util.LogError("call %s: could not send offer: %v", c.id, err)
			c.statusLocked("Signaling unavailable")
			return err
		}

		util.Stats.AddPlaced()
		c.statusLocked("Calling " + partnerName + "...")
		return nil
	})
}

// Accept answers the pending incoming call: acquires media, creates the
// peer transport, applies the held offer, drains buffered candidates and
// sends the answer.
func (c *Coordinator) Accept() error {
	return c.run(func() error {
		if c.state != StateRinging || c.pendingOffer == "" {
			return ErrNotRinging
		}
		util.LogInfo("call %s: accepting", c.id)

		if err := c.setupLocked(); err != nil {
			c.endLocked(true)
			return err
		}

		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: c.pendingOffer}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			c.endLocked(true)
			return fmt.Errorf("set remote description: %w", err)
		}
		c.remoteSet = true
		c.pendingOffer = ""
		c.buffer.drain(c.pc)

		answer, err := c.pc.CreateAnswer()
		if err != nil {
			c.endLocked(true)
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			c.endLocked(true)
			return fmt.Errorf("set local description: %w", err)
		}

		err = c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeAnswer,
			SDP:            answer.SDP,
			ConversationID: c.conversationID,
			TargetUserID:   c.partnerID,
		})
		if err != nil {
			util.LogError("call %s: could not send answer: %v", c.id, err)
			c.statusLocked("Signaling unavailable")
			return err
		}

		util.Stats.AddAnswered()
		c.state = StateNegotiating
		c.statusLocked("Connecting...")
		return nil
	})
}

// Reject declines the pending incoming call. No media was acquired while
// ringing, so teardown is a state reset plus the reject message.
func (c *Coordinator) Reject() error {
	return c.run(func() error {
		if c.state != StateRinging {
			return ErrNotRinging
		}
		util.LogInfo("call %s: rejecting", c.id)

		err := c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeReject,
			ConversationID: c.conversationID,
			TargetUserID:   c.partnerID,
		})
		if err != nil {
			util.LogWarning("call %s: could not send reject: %v", c.id, err)
		}
		return c.endLocked(false)
	})
}

// End hangs up the current session, if any. Idempotent.
func (c *Coordinator) End() error {
	return c.run(func() error {
		return c.endLocked(true)
	})
}

// ToggleMute flips the local audio track and returns the new muted state.
// Purely local — the peer infers a muted mic from silence.
func (c *Coordinator) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		return false, ErrNotInCall
	}
	muted, ok := c.media.toggleMute()
	if !ok {
		return false, ErrNotInCall
	}
	c.muted = muted
	util.LogDebug("call %s: muted=%v", c.id, muted)
	return muted, nil
}

// ToggleVideo flips the local camera track and returns the new disabled
// state. Purely local, like ToggleMute.
func (c *Coordinator) ToggleVideo() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		return false, ErrNotInCall
	}
	disabled, ok := c.media.toggleVideo()
	if !ok {
		return false, ErrNotInCall
	}
	c.videoDisabled = disabled
	util.LogDebug("call %s: video disabled=%v", c.id, disabled)
	return disabled, nil
}

// StartScreenShare swaps the outgoing camera track for a screen capture.
// If the user stops sharing from the OS-level UI, the camera is restored
// automatically.
func (c *Coordinator) StartScreenShare() error {
	return c.run(func() error {
		if c.state == StateIdle {
			return ErrNotInCall
		}
		if err := c.media.startScreenShare(c.handleScreenEnded); err != nil {
			return err
		}
		util.LogInfo("call %s: screen share started", c.id)
		return nil
	})
}

// StopScreenShare stops the screen capture and restores the camera track.
func (c *Coordinator) StopScreenShare() error {
	return c.run(func() error {
		if err := c.media.stopScreenShare(); err != nil {
			return err
		}
		util.LogInfo("call %s: screen share stopped", c.id)
		return nil
	})
}

// ---------------------------------------------------------------------------
// Inbound signaling
// ---------------------------------------------------------------------------

// HandleMessage dispatches one inbound signaling message. Wire it to the
// channel with Channel.OnSignal. Unknown types are ignored.
func (c *Coordinator) HandleMessage(msg signaling.Message) {
	_ = c.run(func() error {
		switch msg.Type {
		case signaling.MsgTypeOffer:
			c.handleOfferLocked(msg)
		case signaling.MsgTypeAnswer:
			c.handleAnswerLocked(msg)
		case signaling.MsgTypeCandidate:
			c.handleCandidateLocked(msg)
		case signaling.MsgTypeReject:
			if c.matchesLocked(msg) {
				util.LogInfo("call %s: partner rejected", c.id)
				c.statusLocked("Call rejected")
				c.endLocked(false)
			}
		case signaling.MsgTypeEnd:
			if c.matchesLocked(msg) {
				util.LogInfo("call %s: partner hung up", c.id)
				c.endLocked(false)
			}
		default:
			util.LogDebug("ignoring signaling message type %q", msg.Type)
		}
		return nil
	})
}

func (c *Coordinator) handleOfferLocked(msg signaling.Message) {
	if c.state != StateIdle {
		// Glare: a second offer while a session exists. Answer busy and
		// keep the current session untouched; overwriting the pending
		// offer would strand the first caller in Dialing.
		util.LogWarning("busy-rejecting offer from %s (state %s)", msg.SenderID, c.state)
		err := c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeReject,
			ConversationID: msg.ConversationID,
			TargetUserID:   msg.SenderID,
		})
		if err != nil {
			util.LogWarning("could not send busy reject: %v", err)
		}
		return
	}

	c.id = uuid.NewString()
	c.role = RoleCallee
	c.conversationID = msg.ConversationID
	c.partnerID = msg.SenderID
	c.partnerName = msg.SenderName
	if c.partnerName == "" {
		c.partnerName = "Unknown caller"
	}
	c.video = msg.IsVideo
	c.pendingOffer = msg.SDP
	c.state = StateRinging

	util.LogInfo("call %s: incoming from %s (video=%v)", c.id, c.partnerName, c.video)
	c.statusLocked("Incoming call")

	name, video := c.partnerName, c.video
	if fn := c.onIncoming; fn != nil {
		c.emit(func() { fn(name, video) })
	}
}

func (c *Coordinator) handleAnswerLocked(msg signaling.Message) {
	if c.state != StateDialing || c.pc == nil || !c.matchesLocked(msg) {
		util.LogWarning("ignoring unexpected answer (state %s)", c.state)
		return
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		util.LogError("call %s: applying answer failed: %v", c.id, err)
		c.endLocked(true)
		return
	}
	c.remoteSet = true
	c.buffer.drain(c.pc)

	c.state = StateNegotiating
	c.statusLocked("Connecting...")
}

func (c *Coordinator) handleCandidateLocked(msg signaling.Message) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.Candidate, &init); err != nil {
		util.LogWarning("dropping malformed ICE candidate: %v", err)
		return
	}

	// Candidates legitimately race the offer/answer through the relay.
	// Until the remote description is set they cannot be applied, so queue
	// them for the drain that follows it.
	if c.pc == nil || !c.remoteSet {
		c.buffer.enqueue(init)
		return
	}
	if err := c.pc.AddICECandidate(init); err != nil {
		util.LogWarning("dropping ICE candidate: %v", err)
	}
}

// matchesLocked reports whether an inbound message belongs to the current
// session. Routing ids are opaque; only equality is checked.
func (c *Coordinator) matchesLocked(msg signaling.Message) bool {
	if c.state == StateIdle {
		return false
	}
	return msg.ConversationID == "" || msg.ConversationID == c.conversationID
}

// ---------------------------------------------------------------------------
// Transport events
// ---------------------------------------------------------------------------

func (c *Coordinator) handleTransportState(s TransportState) {
	_ = c.run(func() error {
		if c.state == StateIdle {
			return nil
		}
		util.LogDebug("call %s: transport %s", c.id, s)

		switch s {
		case TransportConnected:
			if c.failTimer != nil {
				c.failTimer.Stop()
				c.failTimer = nil
			}
			c.markActiveLocked()

		case TransportDisconnected:
			// Stays active: ICE routinely flaps through disconnected during
			// renegotiation. Only a failed transport arms the kill timer.
			if c.state == StateActive {
				c.statusLocked("Reconnecting...")
			}

		case TransportFailed:
			c.statusLocked("Connection failed")
			if c.failTimer == nil {
				c.failTimer = time.AfterFunc(c.grace(), c.forceEnd)
			}
		}
		return nil
	})
}

func (c *Coordinator) handleRemoteTrack(t RemoteTrack) {
	_ = c.run(func() error {
		if c.state == StateIdle {
			return nil
		}
		c.remoteTracks = append(c.remoteTracks, t)
		if fn := c.onRemoteTrack; fn != nil {
			c.emit(func() { fn(t) })
		}
		// First media implies the transport is up even if the state
		// callback has not fired yet.
		c.markActiveLocked()
		return nil
	})
}

// forceEnd fires when the failure grace window expires without recovery.
func (c *Coordinator) forceEnd() {
	_ = c.run(func() error {
		if c.state == StateIdle || c.failTimer == nil {
			return nil
		}
		util.LogWarning("call %s: transport did not recover within %s", c.id, c.grace())
		return c.endLocked(true)
	})
}

func (c *Coordinator) markActiveLocked() {
	switch c.state {
	case StateDialing, StateRinging, StateNegotiating, StateActive:
		c.state = StateActive
		c.statusLocked("In call")
		c.startDurationLocked()
	}
}

// ---------------------------------------------------------------------------
// Getters
// ---------------------------------------------------------------------------

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Coordinator) VideoDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoDisabled
}

func (c *Coordinator) ScreenSharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.sharing
}

func (c *Coordinator) PartnerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partnerName
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// run executes f under the session lock, then fires the callbacks f queued.
// Observer callbacks never run while the lock is held.
func (c *Coordinator) run(f func() error) error {
	c.mu.Lock()
	err := f()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	for _, fn := range events {
		fn()
	}
	return err
}

func (c *Coordinator) emit(fn func()) {
	c.events = append(c.events, fn)
}

func (c *Coordinator) statusLocked(status string) {
	util.LogDebug("call status: %s", status)
	if fn := c.onStatus; fn != nil {
		c.emit(func() { fn(status) })
	}
}

// setupLocked acquires local media, creates the peer transport, attaches
// the tracks and wires the transport callbacks. On failure the caller is
// responsible for running the teardown path.
func (c *Coordinator) setupLocked() error {
	if err := c.media.acquire(c.video); err != nil {
		return err
	}

	pc, err := c.newPeer()
	if err != nil {
		return fmt.Errorf("create peer transport: %w", err)
	}
	c.pc = pc
	c.remoteSet = false

	if err := c.media.attach(pc); err != nil {
		return fmt.Errorf("attach local tracks: %w", err)
	}

	// Routing fields are fixed for the life of the negotiation; snapshot
	// them so the candidate callback never touches session state.
	convID, partnerID, callID := c.conversationID, c.partnerID, c.id

	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		data, err := json.Marshal(cand)
		if err != nil {
			return
		}
		err = c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeCandidate,
			Candidate:      data,
			ConversationID: convID,
			TargetUserID:   partnerID,
		})
		if err != nil {
			util.LogWarning("call %s: could not send ICE candidate: %v", callID, err)
		}
	})
	pc.OnTrack(c.handleRemoteTrack)
	pc.OnStateChange(c.handleTransportState)
	return nil
}

// endLocked is the single termination path: every hangup, rejection,
// failure and error funnels through here. sendEnd controls whether the
// remote side is notified. Idempotent — a no-op once idle.
func (c *Coordinator) endLocked(sendEnd bool) error {
	if c.state == StateIdle {
		return nil
	}
	c.state = StateEnding

	if sendEnd && c.conversationID != "" {
		err := c.signal.Send(signaling.Message{
			Type:           signaling.MsgTypeEnd,
			ConversationID: c.conversationID,
			TargetUserID:   c.partnerID,
		})
		if err != nil {
			util.LogWarning("call %s: could not send end: %v", c.id, err)
		}
	}

	c.cleanupLocked()
	return nil
}

// cleanupLocked releases every resource the session may hold. No path may
// leave a device captured or a peer connection open.
func (c *Coordinator) cleanupLocked() {
	c.stopDurationLocked()
	if c.failTimer != nil {
		c.failTimer.Stop()
		c.failTimer = nil
	}

	c.media.release()

	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			util.LogWarning("call %s: closing peer transport: %v", c.id, err)
		}
		c.pc = nil
	}

	c.buffer.reset()
	c.pendingOffer = ""
	c.remoteSet = false
	c.remoteTracks = nil
	c.conversationID = ""
	c.partnerID = ""
	c.partnerName = ""
	c.role = RoleNone
	c.video = false
	c.muted = false
	c.videoDisabled = false
	c.state = StateIdle

	util.Stats.AddEnded()
	util.LogInfo("call %s: ended", c.id)
	c.statusLocked("Call ended")
	if fn := c.onEnded; fn != nil {
		c.emit(fn)
	}
}

func (c *Coordinator) startDurationLocked() {
	if c.durStop != nil {
		return
	}
	stop := make(chan struct{})
	c.durStop = stop
	started := time.Now()
	fn := c.onDuration

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if fn != nil {
					fn(time.Since(started).Truncate(time.Second))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (c *Coordinator) stopDurationLocked() {
	if c.durStop != nil {
		close(c.durStop)
		c.durStop = nil
	}
}

// handleScreenEnded reverts to the camera when the user stops sharing via
// the OS-level UI rather than through StopScreenShare.
func (c *Coordinator) handleScreenEnded() {
	_ = c.run(func() error {
		if !c.media.sharing {
			return nil
		}
		util.LogInfo("call %s: screen share ended by the system, reverting to camera", c.id)
		return c.media.stopScreenShare()
	})
}

// grace returns the failure grace window; tests shorten it.
func (c *Coordinator) grace() time.Duration {
	if c.failGrace > 0 {
		return c.failGrace
	}
	return failureGrace
}
