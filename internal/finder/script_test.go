package finder

import (
	"strings"
	"testing"
)

func TestCandidateScriptInjection(t *testing.T) {
	d := Descriptor{Tag: "button", Text: `He said "hi" </script>`}
	js := buildCandidateScript(d)

	if !strings.Contains(js, `const tag = "button";`) {
		t.Error("tag not injected as a JSON literal")
	}
	// Quotes and angle brackets must arrive escaped, never raw.
	if !strings.Contains(js, `\"hi\"`) {
		t.Errorf("descriptor text not JSON-escaped:\n%s", js)
	}
	if strings.Contains(js, `"hi" </script>`) {
		t.Error("raw descriptor text leaked into the script")
	}
}

func TestCandidateScriptShape(t *testing.T) {
	js := buildCandidateScript(Descriptor{Tag: "button", Text: "Save"})

	for _, want := range []string{
		"data-pilot-ref",          // marker stamped and cleared
		"removeAttribute(marker)", // stale markers from earlier runs cleared
		"setAttribute(marker",     // survivors stamped
		`[role=\"button\"], [role=\"link\"]`, // broadened fallback set, quotes escaped in the literal
		"aria-label",
		"placeholder",
		"getBoundingClientRect",
		"inModal",
		"modal|dialog|overlay|popup",
		"siblingIndex",
		"JSON.stringify(out)",
	} {
		if !strings.Contains(js, want) {
			t.Errorf("script missing %q", want)
		}
	}

	// Truncation and modal-walk bounds are baked in.
	if !strings.Contains(js, "const limit = 200;") {
		t.Error("text limit not 200")
	}
	if !strings.Contains(js, "const modalDepth = 10;") {
		t.Error("modal depth not 10")
	}
}

func TestCandidateScriptBroadensOnlyWithText(t *testing.T) {
	js := buildCandidateScript(Descriptor{Tag: "nav"})
	// Without text the broaden set still appears in source but is gated on
	// the needle; verify the gate is an emptiness check on both.
	if !strings.Contains(js, "els.length === 0 && needle") {
		t.Error("broadening is not gated on empty result plus text")
	}
}
