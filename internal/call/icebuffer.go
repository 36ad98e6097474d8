package call

import (
	"github.com/pion/webrtc/v4"

	"github.com/kota4976/buildup-call/internal/util"
)

// candidateBuffer queues remote ICE candidates that arrive before the peer
// connection's remote description is set. Candidates legitimately race the
// offer/answer through the relay, so buffering is normal operation, not an
// error path. The buffer is scoped to a single negotiation: drained exactly
// once after the remote description lands, and reset when the session tears
// down so nothing leaks into the next call.
type candidateBuffer struct {
	pending []webrtc.ICECandidateInit
}

// enqueue appends a candidate in arrival order.
func (b *candidateBuffer) enqueue(c webrtc.ICECandidateInit) {
	b.pending = append(b.pending, c)
	util.Stats.AddBuffered()
}

// drain applies every buffered candidate, in arrival order, then clears the
// buffer. A candidate that fails to apply is logged and skipped — same
// non-fatal handling as live candidates.
func (b *candidateBuffer) drain(pc PeerTransport) {
	if len(b.pending) == 0 {
		return
	}
	util.LogDebug("applying %d buffered ICE candidates", len(b.pending))
	for _, c := range b.pending {
		if err := pc.AddICECandidate(c); err != nil {
			util.LogWarning("dropping buffered ICE candidate: %v", err)
		}
	}
	b.pending = nil
}

// reset discards any buffered candidates.
func (b *candidateBuffer) reset() {
	b.pending = nil
}

func (b *candidateBuffer) len() int { return len(b.pending) }
