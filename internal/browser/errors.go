package browser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable failure classification shared by element
// resolution, interaction, and snapshot building.
type ErrorKind string

const (
	// KindNoCandidates: the candidate collection script found nothing.
	KindNoCandidates ErrorKind = "no_candidates"
	// KindNoScoredMatch: candidates existed but none survived filtering.
	// Callers treat this the same as KindNoCandidates.
	KindNoScoredMatch ErrorKind = "no_scored_match"
	// KindAmbiguousMatch: top two scores were too close. Diagnostic only;
	// resolution still returns the winner.
	KindAmbiguousMatch ErrorKind = "ambiguous_match"
	// KindElementDisabled: the target control is disabled; nothing was
	// dispatched.
	KindElementDisabled ErrorKind = "element_disabled"
	// KindFocusFailed: the element would not take focus.
	KindFocusFailed ErrorKind = "focus_failed"
	// KindClickFailed / KindTypeFailed / KindSelectFailed / KindToggleFailed /
	// KindSubmitFailed: the dispatch phase of the named interaction failed.
	KindClickFailed  ErrorKind = "click_failed"
	KindTypeFailed   ErrorKind = "type_failed"
	KindSelectFailed ErrorKind = "select_failed"
	KindToggleFailed ErrorKind = "toggle_failed"
	KindSubmitFailed ErrorKind = "submit_failed"
	// KindStaleElement: the node resolved but its geometry could not be
	// fetched afterwards; the page likely re-rendered underneath us.
	KindStaleElement ErrorKind = "stale_element"
	// KindNoNodesFound: the accessibility tree came back empty.
	KindNoNodesFound ErrorKind = "no_nodes_found"
	// KindProtocol: unclassified protocol-level failure.
	KindProtocol ErrorKind = "protocol_error"
)

// ActionError is the structured error every operation returns. Raw protocol
// payloads never appear here; causes are summarized before wrapping.
type ActionError struct {
	Kind       ErrorKind
	Op         string   // click, type, select, toggle, submit, resolve, snapshot
	Message    string   // human-readable summary
	Descriptor string   // summary of the descriptor that was being resolved
	Tiers      []string // resolution tiers attempted, in order
	Err        error    // sanitized cause
}

func (e *ActionError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Descriptor != "" {
		fmt.Fprintf(&b, " (wanted %s)", e.Descriptor)
	}
	if len(e.Tiers) > 0 {
		fmt.Fprintf(&b, " (tiers tried: %s)", strings.Join(e.Tiers, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ActionError) Unwrap() error { return e.Err }

// Errf builds an ActionError with a formatted message.
func Errf(kind ErrorKind, op, format string, args ...any) *ActionError {
	return &ActionError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WithDescriptor attaches the descriptor summary. Returns e for chaining.
func (e *ActionError) WithDescriptor(d string) *ActionError {
	e.Descriptor = d
	return e
}

// WithTiers records the resolution tiers attempted.
func (e *ActionError) WithTiers(tiers ...string) *ActionError {
	e.Tiers = tiers
	return e
}

// WithCause wraps a sanitized cause.
func (e *ActionError) WithCause(err error) *ActionError {
	e.Err = err
	return e
}

// KindOf extracts the ErrorKind from err, or KindProtocol for any other
// non-nil error. Returns "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindProtocol
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// errorHints maps failure kinds to guidance the agent can act on.
var errorHints = map[ErrorKind]string{
	KindNoCandidates:    "No elements matched the descriptor. The page may still be loading, or the element may live inside an iframe.",
	KindNoScoredMatch:   "Elements matched the tag but none passed the attribute filter. Loosen the descriptor or drop stale attribute values.",
	KindElementDisabled: "The control is disabled. Fill any required fields first, or wait for the page to enable it.",
	KindFocusFailed:     "The element refused focus. It may be covered by an overlay; try closing dialogs first.",
	KindStaleElement:    "The element left the DOM after it was resolved. The page re-rendered; resolve again and retry.",
	KindTypeFailed:      "Typing was interrupted partway. Check the field's current value before retrying; the text typed so far is included.",
	KindNoNodesFound:    "The accessibility tree is empty. The page may be mid-navigation; take the snapshot again after it settles.",
	KindSubmitFailed:    "No form could be located. Name a field inside the form, or click the submit button directly.",
}

// Hint appends actionable guidance to an error's message when we have some.
// This is the formatting used at the CLI boundary.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	if hint, ok := errorHints[KindOf(err)]; ok {
		return fmt.Sprintf("%v\n\nHint: %s", err, hint)
	}
	return err.Error()
}
