// Package browser holds the protocol plumbing: sessions attached to an
// already-open Chromium tab, target discovery, the extension CDP bridge, and
// the structured error family every operation reports through.
package browser

import "time"

const (
	// BridgeAuthHeader carries the bridge auth token on HTTP and WebSocket
	// requests from non-loopback callers.
	BridgeAuthHeader = "x-pagepilot-bridge-token"

	// BridgeTokenQueryParam is the query-string alternative to the header,
	// for clients that cannot set custom headers.
	BridgeTokenQueryParam = "token"
)

const (
	// DefaultEvaluateTimeout bounds a single page-script evaluation.
	DefaultEvaluateTimeout = 20 * time.Second

	// DefaultAttachTimeout bounds session attach to a target.
	DefaultAttachTimeout = 10 * time.Second

	// extensionPingInterval keeps the extension WebSocket alive.
	extensionPingInterval = 5 * time.Second

	// extensionCommandTimeout caps how long a forwarded command may wait for
	// the extension to answer.
	extensionCommandTimeout = 30 * time.Second
)
