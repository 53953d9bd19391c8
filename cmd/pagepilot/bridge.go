package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// BridgeCmd runs the extension CDP bridge until interrupted.
func BridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the extension CDP bridge",
		Long: `The bridge exposes a DevTools-compatible endpoint backed by the browser
extension, for browsers running without --remote-debugging-port. Point
PagePilot (or any CDP client) at the printed WebSocket URL.`,
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		r := resolveConfig()
		if r.Quiet && !verbose {
			logging.Disable()
		}

		probeCtx, probeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		occupied := browser.Reachable(probeCtx, fmt.Sprintf("http://127.0.0.1:%d", r.BridgePort))
		probeCancel()
		if occupied {
			fmt.Fprintf(os.Stderr, "Error: port %d already serves a DevTools endpoint; is another bridge running?\n", r.BridgePort)
			os.Exit(1)
		}

		b, err := browser.EnsureBridge(r.BridgePort, r.BridgeRequireAuth)
		if err != nil {
			fail(err)
		}

		fmt.Printf("Bridge listening on %s\n", b.WebSocketURL())
		if r.BridgeRequireAuth {
			fmt.Printf("Auth token: %s\n", b.AuthToken())
		}
		if b.ExtensionConnected() {
			fmt.Println("Extension: connected")
		} else {
			fmt.Println("Extension: waiting for connection...")
		}
		fmt.Println("Press Ctrl+C to stop.")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if cfgFile != "" {
			go watchBridgeConfig(ctx, r)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nStopping bridge...")
		if err := browser.StopBridge(r.BridgePort); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	return cmd
}

// watchBridgeConfig live-reloads the config file while the bridge runs.
// Only the logging switch applies immediately; port and auth changes need a
// restart, so they are announced instead.
func watchBridgeConfig(ctx context.Context, current config.Resolved) {
	onChange := func(nr config.Resolved) {
		if nr.BridgePort != current.BridgePort || nr.BridgeRequireAuth != current.BridgeRequireAuth {
			logging.Warnf("bridge port/auth changed in config; restart the bridge to apply")
		}
		if nr.Quiet && !verbose {
			logging.Disable()
		} else {
			logging.Enable()
		}
	}
	if err := config.Watch(ctx, cfgFile, onChange); err != nil && ctx.Err() == nil {
		logging.Warnf("config watch stopped: %v", err)
	}
}
