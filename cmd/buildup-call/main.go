// Buildup-call — CLI entry point.
//
// A terminal client for the platform's 1:1 audio/video calls. It joins a
// conversation on the chat relay (which doubles as the signaling channel),
// then either places a call or waits for one. Media flows peer-to-peer
// once signaling completes.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-relay, -token, -conversation, -partner, ...). Relay URL and token
// may also come from the environment or a .env file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/kota4976/buildup-call/internal/call"
	"github.com/kota4976/buildup-call/internal/config"
	"github.com/kota4976/buildup-call/internal/rtc"
	"github.com/kota4976/buildup-call/internal/signaling"
	"github.com/kota4976/buildup-call/internal/ui"
	"github.com/kota4976/buildup-call/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.FromEnv()

	// CLI flags override the environment.
	relay := flag.String("relay", cfg.RelayURL, "Relay base URL, e.g. wss://api.example.com/ws")
	token := flag.String("token", cfg.Token, "Auth token for the relay")
	conversation := flag.String("conversation", cfg.ConversationID, "Conversation ID to join")
	partner := flag.String("partner", "", "Partner user ID (required to place a call)")
	partnerName := flag.String("partner-name", "", "Partner display name")
	video := flag.Bool("video", true, "Place a video call (false = audio only)")
	place := flag.Bool("call", false, "Place the call; default is to wait for one")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("buildup-call — v%s", version))
	pterm.Println()

	cfg.RelayURL = *relay
	cfg.Token = *token
	cfg.ConversationID = *conversation
	cfg.PartnerID = *partner
	cfg.PartnerName = *partnerName
	cfg.Video = *video
	cfg.Role = config.RoleCallee
	if *place {
		cfg.Role = config.RoleCaller
	}

	// Fall back to interactive prompts for anything still missing.
	if cfg.RelayURL == "" {
		cfg.RelayURL = askURL()
	}
	if cfg.ConversationID == "" {
		cfg.ConversationID = askText("Conversation ID")
	}
	if cfg.Role == config.RoleCaller && cfg.PartnerID == "" {
		cfg.PartnerID = askText("Partner user ID")
	}

	if err := runCall(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("session closed")
}

// runCall connects to the relay, wires up the coordinator, and blocks until
// the connection drops or the context is cancelled.
func runCall(ctx context.Context, cfg config.Config) error {
	wsURL, err := cfg.ChatURL()
	if err != nil {
		return err
	}

	ch, err := signaling.Connect(ctx, wsURL)
	if err != nil {
		return err
	}
	defer ch.Close()
	util.LogInfo("connected to relay: conversation %s", cfg.ConversationID)

	stack, err := rtc.NewStack()
	if err != nil {
		return fmt.Errorf("initializing media stack: %w", err)
	}

	co := call.NewCoordinator(ch, stack.Devices(), stack.NewPeer)
	ui.Attach(co)
	ch.OnSignal(co.HandleMessage)
	ch.OnChat(func(msg signaling.Message) {
		switch msg.Type {
		case signaling.MsgTypeChat:
			pterm.Println(pterm.Gray(fmt.Sprintf("[chat] %s: %s", msg.SenderName, msg.Body)))
		case signaling.MsgTypeError:
			util.LogWarning("relay error: %s", msg.ErrText)
		}
	})

	util.StartStatsReporter(ctx)
	startKeepalive(ctx, ch)

	// Read loop in a separate goroutine so we can also wait on ctx.
	errCh := make(chan error, 1)
	go func() {
		errCh <- ch.Listen(ctx)
	}()

	if cfg.Role == config.RoleCaller {
		name := cfg.PartnerName
		if name == "" {
			name = cfg.PartnerID
		}
		if err := co.Start(cfg.ConversationID, cfg.PartnerID, name, cfg.Video); err != nil {
			return fmt.Errorf("could not place call: %w", err)
		}
	} else {
		util.LogInfo("waiting for an incoming call (Ctrl+C to quit)")
	}

	go commandLoop(co)

	select {
	case <-ctx.Done():
		_ = co.End()
		return nil
	case err := <-errCh:
		_ = co.End()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// commandLoop reads single-letter commands from stdin while a call runs:
// m mute, v video, s screen share, e end.
func commandLoop(co *call.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "m":
			if muted, err := co.ToggleMute(); err == nil {
				util.LogInfo("microphone %s", onOff(!muted))
			}
		case "v":
			if disabled, err := co.ToggleVideo(); err == nil {
				util.LogInfo("camera %s", onOff(!disabled))
			}
		case "s":
			if co.ScreenSharing() {
				if err := co.StopScreenShare(); err != nil {
					util.LogError("stop screen share: %v", err)
				}
			} else if err := co.StartScreenShare(); err != nil {
				util.LogError("start screen share: %v", err)
			}
		case "e":
			_ = co.End()
		}
	}
}

// startKeepalive pings the relay periodically; it expects liveness probes
// and the pings keep NAT bindings warm.
func startKeepalive(ctx context.Context, ch *signaling.Channel) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ch.Ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askURL prompts the user for a valid relay URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay URL (e.g. wss://api.example.com/ws)").
			Show()

		normalized, err := config.NormalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return normalized
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askText prompts until a non-empty value is entered.
func askText(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		if v := strings.TrimSpace(raw); v != "" {
			pterm.Println()
			return v
		}
		util.LogWarning("value must not be empty")
	}
}
