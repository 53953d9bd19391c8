package finder

import (
	"fmt"
	"sort"
	"strings"
)

// Rect is a bounding box in page coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Descriptor is the caller's fuzzy description of the element it wants.
// Every field is optional, though a tag or text is needed to find anything.
type Descriptor struct {
	Tag          string
	Text         string
	Attrs        map[string]string
	Box          *Rect
	SiblingIndex *int
}

// Empty reports whether the descriptor carries no signal at all.
func (d Descriptor) Empty() bool {
	return d.Tag == "" && d.Text == "" && len(d.Attrs) == 0 &&
		d.Box == nil && d.SiblingIndex == nil
}

// Summary renders the descriptor for logs and error messages.
func (d Descriptor) Summary() string {
	var parts []string
	if d.Tag != "" {
		parts = append(parts, "tag="+d.Tag)
	}
	if d.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", d.Text))
	}
	if len(d.Attrs) > 0 {
		keys := make([]string, 0, len(d.Attrs))
		for k := range d.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%q", k, d.Attrs[k]))
		}
	}
	if d.Box != nil {
		parts = append(parts, fmt.Sprintf("box=(%.0f,%.0f)", d.Box.X, d.Box.Y))
	}
	if d.SiblingIndex != nil {
		parts = append(parts, fmt.Sprintf("index=%d", *d.SiblingIndex))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " ")
}

// dynamicAttrs reflect transient UI state a framework may have changed since
// the caller observed the page. They score but never filter. Everything not
// listed here is treated as stable.
var dynamicAttrs = map[string]bool{
	"class":         true,
	"style":         true,
	"value":         true,
	"checked":       true,
	"selected":      true,
	"disabled":      true,
	"readonly":      true,
	"tabindex":      true,
	"aria-expanded": true,
	"aria-selected": true,
	"aria-checked":  true,
	"aria-pressed":  true,
	"aria-hidden":   true,
	"aria-current":  true,
	"data-state":    true,
	"data-active":   true,
	"data-selected": true,
	"data-focus":    true,
	"data-hover":    true,
}

// IsStableAttr reports whether the attribute is expected to survive
// re-renders (id, name, role, most data-*/aria-*, ...).
func IsStableAttr(name string) bool {
	return !dynamicAttrs[strings.ToLower(name)]
}

// stableAttrs returns the subset of the descriptor's attributes that are
// stable, used for the elimination filter.
func (d Descriptor) stableAttrs() map[string]string {
	out := make(map[string]string)
	for k, v := range d.Attrs {
		if IsStableAttr(k) {
			out[k] = v
		}
	}
	return out
}

// Candidate is one page element as captured by the collection script. It is
// produced fresh on every resolution call and discarded after scoring; the
// DOM may mutate at any time, so candidates are never cached.
type Candidate struct {
	Ref          int               `json:"ref"`
	Tag          string            `json:"tag"`
	Text         string            `json:"text"`
	Attrs        map[string]string `json:"attrs"`
	Box          Rect              `json:"box"`
	Visible      bool              `json:"visible"`
	InViewport   bool              `json:"inViewport"`
	InModal      bool              `json:"inModal"`
	SiblingIndex int               `json:"siblingIndex"`
}

// Summary renders the candidate for logs and diagnostics.
func (c Candidate) Summary() string {
	text := c.Text
	if r := []rune(text); len(r) > 40 {
		text = string(r[:40]) + "…"
	}
	return fmt.Sprintf("%s %q ref=%d", c.Tag, text, c.Ref)
}

// Scored pairs a candidate with its score and the factors that earned it.
type Scored struct {
	Candidate
	Score     int
	MatchedBy []string
}
