package finder

import (
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestAttrPartition(t *testing.T) {
	stable := []string{"id", "name", "type", "role", "placeholder", "href", "for", "data-testid", "aria-label"}
	for _, k := range stable {
		if !IsStableAttr(k) {
			t.Errorf("%s should be stable", k)
		}
	}
	dynamic := []string{"class", "style", "value", "checked", "disabled", "tabindex",
		"aria-expanded", "aria-selected", "aria-checked", "data-state", "data-active"}
	for _, k := range dynamic {
		if IsStableAttr(k) {
			t.Errorf("%s should be dynamic", k)
		}
	}
}

func TestScoreTagMatch(t *testing.T) {
	d := Descriptor{Tag: "button"}
	s, matched := Score(d, Candidate{Tag: "button"})
	if s != tagScore {
		t.Errorf("score = %d, want %d", s, tagScore)
	}
	if len(matched) != 1 || matched[0] != "tag" {
		t.Errorf("matchedBy = %v", matched)
	}

	s, _ = Score(d, Candidate{Tag: "div"})
	if s != 0 {
		t.Errorf("mismatched tag scored %d", s)
	}
}

func TestScoreStableAttrWeights(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"id", 20},
		{"data-testid", 15},
		{"aria-label", 12},
		{"name", 10},
		{"type", 10},
		{"role", 10},
		{"placeholder", 5},
	}
	for _, tt := range tests {
		d := Descriptor{Attrs: map[string]string{tt.key: "v"}}
		c := Candidate{Attrs: map[string]string{tt.key: "v"}}
		if s, _ := Score(d, c); s != tt.want {
			t.Errorf("%s exact match scored %d, want %d", tt.key, s, tt.want)
		}
	}

	// Substring overlap in either direction earns the reduced credit.
	d := Descriptor{Attrs: map[string]string{"id": "submit"}}
	c := Candidate{Attrs: map[string]string{"id": "submit-button"}}
	if s, _ := Score(d, c); s != stableSubstringScore {
		t.Errorf("substring id scored %d, want %d", s, stableSubstringScore)
	}
}

func TestScoreStableAttrCap(t *testing.T) {
	// Six exact stable attrs total 85 raw; the stable total caps at 60.
	d := Descriptor{Attrs: map[string]string{
		"id": "a", "data-x": "b", "data-y": "c", "data-z": "d", "name": "e", "type": "f",
	}}
	c := Candidate{Attrs: map[string]string{
		"id": "a", "data-x": "b", "data-y": "c", "data-z": "d", "name": "e", "type": "f",
	}}
	if s, _ := Score(d, c); s != stableAttrCap {
		t.Errorf("stacked stable attrs scored %d, want cap %d", s, stableAttrCap)
	}
}

func TestScoreDynamicAttrs(t *testing.T) {
	// Class token intersection: 1 per shared token, capped at 4.
	d := Descriptor{Attrs: map[string]string{"class": "btn primary large active rounded"}}
	c := Candidate{Attrs: map[string]string{"class": "btn primary large active rounded"}}
	if s, _ := Score(d, c); s != classTokenCap {
		t.Errorf("five shared classes scored %d, want %d", s, classTokenCap)
	}

	d = Descriptor{Attrs: map[string]string{"class": "btn primary"}}
	c = Candidate{Attrs: map[string]string{"class": "btn secondary"}}
	if s, _ := Score(d, c); s != 1 {
		t.Errorf("one shared class scored %d, want 1", s)
	}

	d = Descriptor{Attrs: map[string]string{"aria-expanded": "true"}}
	c = Candidate{Attrs: map[string]string{"aria-expanded": "true"}}
	if s, _ := Score(d, c); s != dynamicAriaScore {
		t.Errorf("dynamic aria scored %d, want %d", s, dynamicAriaScore)
	}

	d = Descriptor{Attrs: map[string]string{"data-state": "open"}}
	c = Candidate{Attrs: map[string]string{"data-state": "open"}}
	if s, _ := Score(d, c); s != dynamicDataScore {
		t.Errorf("dynamic data scored %d, want %d", s, dynamicDataScore)
	}

	d = Descriptor{Attrs: map[string]string{"checked": "true"}}
	c = Candidate{Attrs: map[string]string{"checked": "true"}}
	if s, _ := Score(d, c); s != dynamicMiscScore {
		t.Errorf("checked scored %d, want %d", s, dynamicMiscScore)
	}
}

func TestScoreText(t *testing.T) {
	base := Descriptor{Tag: "button", Text: "Submit Order"}

	// Exact after case/whitespace normalization. Tag also matches, so
	// subtract it to isolate the text factor.
	s, _ := Score(base, Candidate{Tag: "button", Text: "  submit   ORDER "})
	if got := s - tagScore; got != textExactScore {
		t.Errorf("normalized exact scored %d, want %d", got, textExactScore)
	}

	s, _ = Score(base, Candidate{Tag: "button", Text: "Submit Order Now"})
	if got := s - tagScore; got != textContainsScore {
		t.Errorf("contains scored %d, want %d", got, textContainsScore)
	}

	s, _ = Score(base, Candidate{Tag: "button", Text: "Submit"})
	if got := s - tagScore; got != textReverseScore {
		t.Errorf("reverse containment scored %d, want %d", got, textReverseScore)
	}

	d := Descriptor{Tag: "button", Text: "save the current draft order"}
	s, _ = Score(d, Candidate{Tag: "button", Text: "order draft listing"})
	if got := s - tagScore; got != 2*textWordScore {
		t.Errorf("two shared words scored %d, want %d", got, 2*textWordScore)
	}

	d = Descriptor{Tag: "button", Text: "a b c d e f"}
	s, _ = Score(d, Candidate{Tag: "button", Text: "f e d c b a x"})
	if got := s - tagScore; got != textWordCap {
		t.Errorf("word overlap scored %d, want cap %d", got, textWordCap)
	}
}

func TestScoreTextDominantClickTarget(t *testing.T) {
	// Text-only descriptor, exact match on a button: raised weight.
	d := Descriptor{Text: "Log in"}
	s, _ := Score(d, Candidate{Tag: "button", Text: "Log in"})
	if s != textExactDominantScore {
		t.Errorf("dominant exact on button scored %d, want %d", s, textExactDominantScore)
	}

	// Same descriptor against a plain div: standard weight.
	s, _ = Score(d, Candidate{Tag: "div", Text: "Log in"})
	if s != textExactScore {
		t.Errorf("dominant exact on div scored %d, want %d", s, textExactScore)
	}

	// role="button" counts as a click target.
	s, _ = Score(d, Candidate{Tag: "div", Text: "Log in", Attrs: map[string]string{"role": "button"}})
	if s != textExactDominantScore {
		t.Errorf("dominant exact on role=button scored %d, want %d", s, textExactDominantScore)
	}

	// An attribute in the descriptor makes text non-dominant.
	d = Descriptor{Text: "Log in", Attrs: map[string]string{"type": "submit"}}
	s, _ = Score(d, Candidate{Tag: "button", Text: "Log in"})
	if s != textExactScore {
		t.Errorf("non-dominant exact scored %d, want %d", s, textExactScore)
	}
}

func TestScoreBoxProximity(t *testing.T) {
	tests := []struct {
		dx, dy float64
		want   int
	}{
		{1, 2, 40},   // manhattan 3 < 5
		{10, 5, 30},  // 15 < 20
		{30, 15, 20}, // 45 < 50
		{60, 30, 10}, // 90 < 100
		{100, 80, 5}, // 180 < 200
		{200, 50, 0}, // 250, out of range
	}
	for _, tt := range tests {
		d := Descriptor{Box: &Rect{X: 100, Y: 100}}
		c := Candidate{Box: Rect{X: 100 + tt.dx, Y: 100 + tt.dy}}
		if s, _ := Score(d, c); s != tt.want {
			t.Errorf("offset (%v,%v) scored %d, want %d", tt.dx, tt.dy, s, tt.want)
		}
	}
}

func TestScoreVisibilityBonuses(t *testing.T) {
	d := Descriptor{Tag: "button"}
	c := Candidate{Tag: "button", Visible: true, InViewport: true, InModal: true}
	s, _ := Score(d, c)
	want := tagScore + visibleScore + viewportScore + modalScore
	if s != want {
		t.Errorf("score = %d, want %d", s, want)
	}
}

func TestScoreMonotonic(t *testing.T) {
	d := Descriptor{Tag: "input", Attrs: map[string]string{"name": "email", "type": "email"}}
	weak := Candidate{Tag: "input", Attrs: map[string]string{"name": "email"}}
	strong := Candidate{Tag: "input", Attrs: map[string]string{"name": "email", "type": "email"}}

	sw, _ := Score(d, weak)
	ss, _ := Score(d, strong)
	if ss < sw {
		t.Errorf("adding a matching attribute lowered the score: %d -> %d", sw, ss)
	}
}

func TestRankStableFilter(t *testing.T) {
	d := Descriptor{Tag: "input", Attrs: map[string]string{"name": "email"}}
	cands := []Candidate{
		{Ref: 0, Tag: "input", Attrs: map[string]string{"name": "search"}},
		{Ref: 1, Tag: "input", Attrs: map[string]string{"name": "email"}},
		{Ref: 2, Tag: "input", Attrs: map[string]string{}},
	}

	ranked, _ := Rank(d, cands)
	if len(ranked) != 1 {
		t.Fatalf("got %d survivors, want 1", len(ranked))
	}
	if ranked[0].Ref != 1 {
		t.Errorf("wrong survivor: ref=%d", ranked[0].Ref)
	}
}

func TestRankDynamicOnlySkipsFilter(t *testing.T) {
	// Only dynamic attributes supplied: nothing may be eliminated.
	d := Descriptor{Tag: "button", Attrs: map[string]string{"class": "primary", "aria-expanded": "true"}}
	cands := []Candidate{
		{Ref: 0, Tag: "button", Attrs: map[string]string{"class": "secondary"}},
		{Ref: 1, Tag: "button", Attrs: map[string]string{"class": "primary"}},
	}

	ranked, _ := Rank(d, cands)
	if len(ranked) != 2 {
		t.Fatalf("dynamic-only filter dropped candidates: %d left", len(ranked))
	}
	if ranked[0].Ref != 1 {
		t.Errorf("class match should rank first, got ref=%d", ranked[0].Ref)
	}
}

func TestRankStableWinImmuneToDynamicDrift(t *testing.T) {
	// The id match must win even when the other candidate matches all the
	// drifting dynamic state.
	d := Descriptor{Tag: "button", Attrs: map[string]string{
		"id":            "save-btn",
		"class":         "btn primary active",
		"aria-expanded": "true",
	}}
	cands := []Candidate{
		{Ref: 0, Tag: "button", Attrs: map[string]string{
			"id":            "save-btn",
			"class":         "totally different now",
			"aria-expanded": "false",
		}},
		{Ref: 1, Tag: "button", Attrs: map[string]string{
			"id":            "save-btn-secondary",
			"class":         "btn primary active",
			"aria-expanded": "true",
		}},
	}

	ranked, _ := Rank(d, cands)
	if ranked[0].Ref != 0 {
		t.Errorf("dynamic drift flipped a stable-attr winner: ref=%d won", ranked[0].Ref)
	}
}

func TestRankTwoSubmitButtons(t *testing.T) {
	// Exact text (tag 20 + type 10 + text 30) beats partial text
	// (tag 20 + type 10 + text 20).
	d := Descriptor{Tag: "button", Text: "Submit", Attrs: map[string]string{"type": "submit"}}
	cands := []Candidate{
		{Ref: 0, Tag: "button", Text: "Submit and continue", Attrs: map[string]string{"type": "submit"}},
		{Ref: 1, Tag: "button", Text: "Submit", Attrs: map[string]string{"type": "submit"}},
	}

	ranked, _ := Rank(d, cands)
	if ranked[0].Ref != 1 {
		t.Fatalf("exact-text button lost: ref=%d won", ranked[0].Ref)
	}
	if ranked[0].Score != 60 || ranked[1].Score != 50 {
		t.Errorf("scores = %d/%d, want 60/50", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankSiblingIndexBreaksNearTies(t *testing.T) {
	d := Descriptor{Tag: "button", Text: "Delete", SiblingIndex: intPtr(2)}
	cands := []Candidate{
		{Ref: 0, Tag: "button", Text: "Delete", SiblingIndex: 0},
		{Ref: 1, Tag: "button", Text: "Delete", SiblingIndex: 2},
	}

	ranked, _ := Rank(d, cands)
	if ranked[0].Ref != 1 {
		t.Errorf("sibling index did not break the tie: ref=%d won", ranked[0].Ref)
	}
	if !containsFactor(ranked[0].MatchedBy, "sibling") {
		t.Errorf("winner missing sibling factor: %v", ranked[0].MatchedBy)
	}
}

func TestRankSiblingIndexCannotDisplaceClearWinner(t *testing.T) {
	// 15+ point gap: the index must not reorder.
	d := Descriptor{Tag: "button", Text: "Delete", SiblingIndex: intPtr(5)}
	cands := []Candidate{
		{Ref: 0, Tag: "button", Text: "Delete", Visible: true, InViewport: true, SiblingIndex: 0},
		{Ref: 1, Tag: "button", Text: "Remove item", SiblingIndex: 5},
	}

	ranked, _ := Rank(d, cands)
	if ranked[0].Ref != 0 {
		t.Errorf("clear winner displaced by sibling index: ref=%d won", ranked[0].Ref)
	}
}

func TestRankAmbiguityFlag(t *testing.T) {
	d := Descriptor{Tag: "button"}
	cands := []Candidate{
		{Ref: 0, Tag: "button"},
		{Ref: 1, Tag: "button"},
	}
	_, ambiguous := Rank(d, cands)
	if !ambiguous {
		t.Error("identical candidates should flag ambiguity")
	}

	cands[0].Visible = true
	cands[0].InViewport = true
	_, ambiguous = Rank(d, cands)
	if ambiguous {
		t.Error("15-point gap should not flag ambiguity")
	}
}

func TestDescriptorSummary(t *testing.T) {
	idx := 3
	d := Descriptor{
		Tag:          "button",
		Text:         "Save",
		Attrs:        map[string]string{"type": "submit"},
		Box:          &Rect{X: 10, Y: 20},
		SiblingIndex: &idx,
	}
	s := d.Summary()
	for _, want := range []string{"tag=button", `text="Save"`, `type="submit"`, "box=(10,20)", "index=3"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary %q missing %q", s, want)
		}
	}

	if (Descriptor{}).Summary() != "(empty)" {
		t.Errorf("empty summary = %q", (Descriptor{}).Summary())
	}
}

func containsFactor(factors []string, want string) bool {
	for _, f := range factors {
		if f == want {
			return true
		}
	}
	return false
}
