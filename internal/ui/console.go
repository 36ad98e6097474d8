// Package ui renders call state to the terminal. It is a pure side-effect
// surface for the coordinator's observer callbacks; the only path back in
// is the user's accept/reject decision on an incoming call.
package ui

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/kota4976/buildup-call/internal/call"
	"github.com/kota4976/buildup-call/internal/util"
)

// Console subscribes to a coordinator's events and renders them.
type Console struct {
	co *call.Coordinator
}

// Attach wires a Console to the coordinator's observer interface.
func Attach(co *call.Coordinator) *Console {
	c := &Console{co: co}
	co.OnStatusChange(c.showStatus)
	co.OnIncomingCall(c.promptIncoming)
	co.OnDuration(c.showDuration)
	co.OnEnded(c.clearDuration)
	co.OnRemoteTrack(func(t call.RemoteTrack) {
		util.LogInfo("receiving remote %s track", t.Kind())
	})
	return c
}

func (c *Console) showStatus(status string) {
	pterm.Info.Println(status)
}

func (c *Console) showDuration(d time.Duration) {
	pterm.Printo("  ⏱  " + FormatDuration(d))
}

func (c *Console) clearDuration() {
	pterm.Println()
}

// promptIncoming asks the user to pick up. Runs on its own goroutine so the
// signaling read loop is never blocked on a prompt — ICE candidates keep
// arriving while the phone rings.
func (c *Console) promptIncoming(partnerName string, video bool) {
	kind := "voice"
	if video {
		kind = "video"
	}
	go func() {
		accept, _ := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Incoming %s call from %s — accept?", kind, partnerName)).
			WithDefaultValue(true).
			Show()

		if accept {
			if err := c.co.Accept(); err != nil {
				util.LogError("could not accept call: %v", err)
			}
		} else {
			if err := c.co.Reject(); err != nil {
				util.LogError("could not reject call: %v", err)
			}
		}
	}()
}

// FormatDuration renders an elapsed call time as zero-padded MM:SS.
// Minutes keep counting past the hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
