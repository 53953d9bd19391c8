package axtree

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
)

// maxFieldLen caps names and values in rendered lines.
const maxFieldLen = 120

// Roles that act as controls; always worth a line even unnamed.
var interactiveRoles = map[string]bool{
	"button":     true,
	"link":       true,
	"textbox":    true,
	"searchbox":  true,
	"combobox":   true,
	"checkbox":   true,
	"radio":      true,
	"switch":     true,
	"tab":        true,
	"menuitem":   true,
	"option":     true,
	"slider":     true,
	"spinbutton": true,
}

// Roles kept on box-model failure: a control that has not rendered yet may
// still be the one action the agent needs.
var coreInteractive = map[string]bool{
	"button":    true,
	"link":      true,
	"textbox":   true,
	"searchbox": true,
	"combobox":  true,
}

// Pure layout noise; suppressed but transparent, children render through.
var noiseRoles = map[string]bool{
	"none":            true,
	"InlineTextBox":   true,
	"StaticText":      true,
	"LineBreak":       true,
	"LayoutTable":     true,
	"LayoutTableRow":  true,
	"LayoutTableCell": true,
}

// render walks the kept tree from rootID and emits one line per meaningful
// node. Suppressed nodes pass their children through at the same depth, so
// indentation reflects emitted structure only.
func render(nodes []*accessibility.Node, rootID accessibility.NodeID, keep map[accessibility.NodeID]bool, header []string) string {
	byID := indexNodes(nodes)
	var out strings.Builder
	for _, h := range header {
		out.WriteString(h)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')

	var walk func(id accessibility.NodeID, depth int)
	walk = func(id accessibility.NodeID, depth int) {
		n := byID[id]
		if n == nil || !keep[id] {
			return
		}
		childDepth := depth
		if line, ok := formatNode(n); ok {
			out.WriteString(strings.Repeat("  ", depth))
			out.WriteString(line)
			out.WriteByte('\n')
			childDepth = depth + 1
		}
		for _, child := range n.ChildIDs {
			walk(child, childDepth)
		}
	}
	walk(rootID, 0)
	return out.String()
}

// formatNode decides whether a node earns a line and builds it.
func formatNode(n *accessibility.Node) (string, bool) {
	if n.Ignored {
		return "", false
	}
	role := axString(n.Role)
	name := axString(n.Name)

	if noiseRoles[role] {
		return "", false
	}
	if role == "generic" && !propTrue(n, "focusable") && prop(n, "editable") == "" {
		return "", false
	}
	// A generic reaching this point is focusable or editable and renders
	// even unnamed, same as the interactive roles.
	if name == "" && !interactiveRoles[role] && role != "generic" {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(role)
	sb.WriteString("]")
	if name != "" {
		fmt.Fprintf(&sb, " %q", truncate(name, maxFieldLen))
	}
	if v := axString(n.Value); v != "" {
		fmt.Fprintf(&sb, " value=%q", truncate(v, maxFieldLen))
	}
	if c := prop(n, "checked"); c != "" {
		fmt.Fprintf(&sb, " checked=%s", c)
	}
	if propTrue(n, "disabled") {
		sb.WriteString(" disabled")
	}
	if e := prop(n, "expanded"); e != "" {
		fmt.Fprintf(&sb, " expanded=%s", e)
	}
	if propTrue(n, "focused") {
		sb.WriteString(" focused")
	}
	return sb.String(), true
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
