package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide call/signaling counter.
var Stats = &stats{}

type stats struct {
	CallsPlaced   atomic.Int64 // outgoing calls started since process start
	CallsAnswered atomic.Int64 // incoming calls accepted since process start
	CallsEnded    atomic.Int64 // calls torn down (any reason) since process start
	MsgsSent      atomic.Int64 // signaling messages written to the relay
	MsgsRecv      atomic.Int64 // signaling messages read from the relay
	Buffered      atomic.Int64 // ICE candidates queued before the peer existed
}

func (s *stats) AddPlaced()   { s.CallsPlaced.Add(1) }
func (s *stats) AddAnswered() { s.CallsAnswered.Add(1) }
func (s *stats) AddEnded()    { s.CallsEnded.Add(1) }
func (s *stats) AddSent()     { s.MsgsSent.Add(1) }
func (s *stats) AddRecv()     { s.MsgsRecv.Add(1) }
func (s *stats) AddBuffered() { s.Buffered.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs signaling statistics
// every 30 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.MsgsSent.Load()
				recv := Stats.MsgsRecv.Load()

				if sent != prevSent || recv != prevRecv {
					pterm.DefaultLogger.Info(formatStats(sent-prevSent, recv-prevRecv))
				}

				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(sent, recv int64) string {
	return fmt.Sprintf("Signaling: %3d↑ %3d↓ | Calls: %d placed, %d answered, %d ended",
		sent,
		recv,
		Stats.CallsPlaced.Load(),
		Stats.CallsAnswered.Load(),
		Stats.CallsEnded.Load(),
	)
}
