package browser

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionErrorMessage(t *testing.T) {
	err := Errf(KindNoCandidates, "click", "no elements matched tag %q", "button").
		WithDescriptor(`button text="Submit"`).
		WithTiers("cached", "fresh")

	msg := err.Error()
	if !strings.Contains(msg, "click:") {
		t.Errorf("message missing op prefix: %s", msg)
	}
	if !strings.Contains(msg, `no elements matched tag "button"`) {
		t.Errorf("message missing detail: %s", msg)
	}
	if !strings.Contains(msg, `wanted button text="Submit"`) {
		t.Errorf("message missing descriptor: %s", msg)
	}
	if !strings.Contains(msg, "tiers tried: cached, fresh") {
		t.Errorf("message missing tiers: %s", msg)
	}
}

func TestActionErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := Errf(KindProtocol, "evaluate", "call failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if !strings.Contains(err.Error(), "socket closed") {
		t.Errorf("cause missing from message: %s", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(fmt.Errorf("plain")); got != KindProtocol {
		t.Errorf("KindOf(plain error) = %q, want %q", got, KindProtocol)
	}

	err := Errf(KindElementDisabled, "click", "element is disabled")
	if got := KindOf(err); got != KindElementDisabled {
		t.Errorf("KindOf = %q, want %q", got, KindElementDisabled)
	}

	wrapped := fmt.Errorf("op failed: %w", err)
	if got := KindOf(wrapped); got != KindElementDisabled {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindElementDisabled)
	}
}

func TestIsKind(t *testing.T) {
	err := Errf(KindStaleElement, "click", "node disappeared")
	if !IsKind(err, KindStaleElement) {
		t.Error("expected IsKind to match stale_element")
	}
	if IsKind(err, KindNoCandidates) {
		t.Error("IsKind matched the wrong kind")
	}
}

func TestHintAppendsGuidance(t *testing.T) {
	err := Errf(KindNoCandidates, "resolve", "nothing matched")
	out := Hint(err)
	if !strings.Contains(out, "nothing matched") {
		t.Errorf("hint lost the original message: %s", out)
	}
	if !strings.Contains(out, "Hint:") {
		t.Errorf("expected a hint line, got: %s", out)
	}

	// Kinds with no registered hint come back unchanged.
	plain := Errf(KindProtocol, "send", "boom")
	if got := Hint(plain); got != plain.Error() {
		t.Errorf("unexpected hint for protocol error: %s", got)
	}
}
