// Package keyring stores the bridge auth token in the OS keychain so the
// token survives restarts without landing on disk in the clear.
package keyring

import (
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const (
	serviceName = "pagepilot"
	tokenName   = "bridge-token"
)

// GetBridgeToken retrieves the persisted bridge auth token.
func GetBridgeToken() (string, error) {
	token, err := zkr.Get(serviceName, tokenName)
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return token, nil
}

// SetBridgeToken persists the bridge auth token.
func SetBridgeToken(token string) error {
	return zkr.Set(serviceName, tokenName, token)
}

// DeleteBridgeToken removes the persisted token, forcing a fresh one on the
// next bridge start.
func DeleteBridgeToken() error {
	return zkr.Delete(serviceName, tokenName)
}

// Available reports whether the OS keychain is usable. Returns false when
// PAGEPILOT_KEYRING_DISABLED=1 (headless/CI/Docker), otherwise probes with a
// write/delete cycle.
func Available() bool {
	if os.Getenv("PAGEPILOT_KEYRING_DISABLED") == "1" {
		return false
	}
	if err := zkr.Set(serviceName+"-probe", "probe", "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(serviceName+"-probe", "probe")
	return true
}
