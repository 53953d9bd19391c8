package config

import (
	"os"
	"testing"
	"time"
)

func TestResolveDefaults(t *testing.T) {
	r, err := Config{}.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.EndpointURL != "http://127.0.0.1:9222" {
		t.Errorf("default endpoint = %q, want http://127.0.0.1:9222", r.EndpointURL)
	}
	if r.BridgePort != DefaultBridgePort {
		t.Errorf("bridge port = %d, want %d", r.BridgePort, DefaultBridgePort)
	}
	if r.SettleMin != 300*time.Millisecond || r.SettleMax != 600*time.Millisecond {
		t.Errorf("settle bounds = %v..%v, want 300ms..600ms", r.SettleMin, r.SettleMax)
	}
	if r.KeyDelay != 35*time.Millisecond {
		t.Errorf("key delay = %v, want 35ms", r.KeyDelay)
	}
}

func TestResolvePortShorthand(t *testing.T) {
	c := Config{}
	c.Endpoint.Port = 9400
	r, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.EndpointURL != "http://127.0.0.1:9400" {
		t.Errorf("endpoint = %q, want http://127.0.0.1:9400", r.EndpointURL)
	}
}

func TestResolveURLWinsOverPort(t *testing.T) {
	c := Config{}
	c.Endpoint.URL = "http://10.0.0.5:9222/"
	c.Endpoint.Port = 9400
	r, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.EndpointURL != "http://10.0.0.5:9222" {
		t.Errorf("endpoint = %q, want http://10.0.0.5:9222 (trailing slash trimmed)", r.EndpointURL)
	}
}

func TestResolveSettleMaxClampedToMin(t *testing.T) {
	c := Config{}
	c.Interact.SettleMinMS = 500
	c.Interact.SettleMaxMS = 100
	r, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.SettleMax != r.SettleMin {
		t.Errorf("settle max %v should clamp up to min %v", r.SettleMax, r.SettleMin)
	}
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	os.Setenv("PAGEPILOT_TEST_TARGET", "tab-abc")
	defer os.Unsetenv("PAGEPILOT_TEST_TARGET")

	c, err := LoadFromBytes([]byte("endpoint:\n  target: ${PAGEPILOT_TEST_TARGET}\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if c.Endpoint.Target != "tab-abc" {
		t.Errorf("target = %q, want tab-abc", c.Endpoint.Target)
	}
}

func TestPortFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"http://127.0.0.1:9222", 9222},
		{"http://localhost:9500", 9500},
		{"ws://127.0.0.1:9223", 9223},
		{"https://example.com", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := PortFromURL(tt.url); got != tt.want {
			t.Errorf("PortFromURL(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}
