package finder

import (
	"math"
	"sort"
	"strings"
)

// Scoring is purely additive: every factor can only raise a candidate's
// total. Structural signals (tag, stable attributes) dominate because they
// survive re-renders; position is weighted lower because responsive layouts
// shift coordinates.
const (
	tagScore = 20

	stableAttrCap        = 60
	stableIDScore        = 20
	stableDataScore      = 15
	stableAriaScore      = 12
	stableCoreScore      = 10 // name, type, role
	stableOtherScore     = 5
	stableSubstringScore = 3

	classTokenScore  = 1
	classTokenCap    = 4
	styleScore       = 1
	dynamicAriaScore = 3
	dynamicDataScore = 2
	dynamicMiscScore = 2

	textExactScore         = 30
	textExactDominantScore = 50
	textContainsScore      = 20
	textReverseScore       = 15
	textWordScore          = 3
	textWordCap            = 10

	visibleScore  = 10
	viewportScore = 5
	modalScore    = 20

	siblingBonus  = 50
	nearTieWindow = 15
	ambiguityGap  = 10
)

// Score computes the candidate's total for the descriptor, plus the list of
// factors that contributed.
func Score(d Descriptor, c Candidate) (int, []string) {
	var total int
	var matched []string

	if d.Tag != "" && strings.EqualFold(d.Tag, c.Tag) {
		total += tagScore
		matched = append(matched, "tag")
	}

	s, m := scoreAttrs(d, c)
	total += s
	matched = append(matched, m...)

	if d.Text != "" {
		s, label := scoreText(d, c)
		total += s
		if label != "" {
			matched = append(matched, label)
		}
	}

	if d.Box != nil {
		s, label := scoreBox(*d.Box, c.Box)
		total += s
		if label != "" {
			matched = append(matched, label)
		}
	}

	if c.Visible {
		total += visibleScore
		matched = append(matched, "visible")
	}
	if c.InViewport {
		total += viewportScore
		matched = append(matched, "viewport")
	}
	if c.InModal {
		total += modalScore
		matched = append(matched, "modal")
	}

	return total, matched
}

func scoreAttrs(d Descriptor, c Candidate) (int, []string) {
	var stableTotal, dynamicTotal int
	var matched []string

	for k, want := range d.Attrs {
		key := strings.ToLower(k)
		got, ok := c.Attrs[key]
		if !ok {
			continue
		}

		if IsStableAttr(key) {
			if got == want {
				stableTotal += stableExactScore(key)
				matched = append(matched, "attr:"+key)
			} else if containsEither(got, want) {
				stableTotal += stableSubstringScore
				matched = append(matched, "attr~:"+key)
			}
			continue
		}

		switch {
		case key == "class":
			shared := sharedTokens(want, got)
			if shared > 0 {
				if shared > classTokenCap {
					shared = classTokenCap
				}
				dynamicTotal += shared * classTokenScore
				matched = append(matched, "class")
			}
		case key == "style":
			if containsEither(got, want) {
				dynamicTotal += styleScore
				matched = append(matched, "style")
			}
		case strings.HasPrefix(key, "aria-"):
			if got == want {
				dynamicTotal += dynamicAriaScore
				matched = append(matched, "attr:"+key)
			}
		case strings.HasPrefix(key, "data-"):
			if got == want {
				dynamicTotal += dynamicDataScore
				matched = append(matched, "attr:"+key)
			}
		default:
			if got == want {
				dynamicTotal += dynamicMiscScore
				matched = append(matched, "attr:"+key)
			}
		}
	}

	if stableTotal > stableAttrCap {
		stableTotal = stableAttrCap
	}
	return stableTotal + dynamicTotal, matched
}

func stableExactScore(key string) int {
	switch {
	case key == "id":
		return stableIDScore
	case strings.HasPrefix(key, "data-"):
		return stableDataScore
	case strings.HasPrefix(key, "aria-"):
		return stableAriaScore
	case key == "name" || key == "type" || key == "role":
		return stableCoreScore
	default:
		return stableOtherScore
	}
}

func scoreText(d Descriptor, c Candidate) (int, string) {
	want := normalizeText(d.Text)
	got := normalizeText(c.Text)
	if want == "" {
		return 0, ""
	}

	if got == want {
		if textDominant(d) && clickTarget(c) {
			return textExactDominantScore, "text:exact"
		}
		return textExactScore, "text:exact"
	}
	if got != "" && strings.Contains(got, want) {
		return textContainsScore, "text:contains"
	}
	if got != "" && strings.Contains(want, got) {
		return textReverseScore, "text:reverse"
	}

	shared := sharedTokens(want, got)
	if shared == 0 {
		return 0, ""
	}
	s := shared * textWordScore
	if s > textWordCap {
		s = textWordCap
	}
	return s, "text:words"
}

// textDominant reports whether text is the descriptor's only meaningful
// signal, which justifies the raised exact-match weight on click targets.
func textDominant(d Descriptor) bool {
	return d.Text != "" && len(d.Attrs) == 0 && d.Box == nil
}

func clickTarget(c Candidate) bool {
	if c.Tag == "button" || c.Tag == "a" {
		return true
	}
	role := c.Attrs["role"]
	return role == "button" || role == "link"
}

func scoreBox(want, got Rect) (int, string) {
	dist := math.Abs(want.X-got.X) + math.Abs(want.Y-got.Y)
	switch {
	case dist < 5:
		return 40, "box:<5"
	case dist < 20:
		return 30, "box:<20"
	case dist < 50:
		return 20, "box:<50"
	case dist < 100:
		return 10, "box:<100"
	case dist < 200:
		return 5, "box:<200"
	default:
		return 0, ""
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sharedTokens(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	set := make(map[string]bool)
	for _, tok := range strings.Fields(a) {
		set[tok] = true
	}
	var n int
	for _, tok := range strings.Fields(b) {
		if set[tok] {
			n++
			delete(set, tok) // count each shared token once
		}
	}
	return n
}

// Rank filters, scores, and orders candidates for the descriptor. The
// returned slice is sorted best-first; the bool reports whether the top two
// scores are close enough to be ambiguous.
func Rank(d Descriptor, cands []Candidate) ([]Scored, bool) {
	stable := d.stableAttrs()
	kept := cands
	if len(stable) > 0 {
		kept = kept[:0:0]
		for _, c := range cands {
			if matchesAnyStable(stable, c) {
				kept = append(kept, c)
			}
		}
	}

	scored := make([]Scored, 0, len(kept))
	for _, c := range kept {
		s, matched := Score(d, c)
		scored = append(scored, Scored{Candidate: c, Score: s, MatchedBy: matched})
	}
	sortByScore(scored)

	// Sibling index only breaks near-ties. A clear winner stays the winner
	// even when its index disagrees.
	if d.SiblingIndex != nil && len(scored) > 1 {
		top := scored[0].Score
		bumped := false
		for i := range scored {
			if top-scored[i].Score < nearTieWindow && scored[i].SiblingIndex == *d.SiblingIndex {
				scored[i].Score += siblingBonus
				scored[i].MatchedBy = append(scored[i].MatchedBy, "sibling")
				bumped = true
			}
		}
		if bumped {
			sortByScore(scored)
		}
	}

	ambiguous := len(scored) > 1 && scored[0].Score-scored[1].Score < ambiguityGap
	return scored, ambiguous
}

func matchesAnyStable(stable map[string]string, c Candidate) bool {
	for k, want := range stable {
		key := strings.ToLower(k)
		got, ok := c.Attrs[key]
		if !ok {
			continue
		}
		if got == want || containsEither(got, want) {
			return true
		}
	}
	return false
}

// sortByScore orders best-first, keeping document order among equals so
// resolution is deterministic.
func sortByScore(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}
