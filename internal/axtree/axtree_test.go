package axtree

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"

	"github.com/pagepilot/pagepilot/internal/logging"
)

func axv(raw string) *accessibility.AXValue {
	return &accessibility.AXValue{Value: []byte(raw)}
}

func axs(s string) *accessibility.AXValue {
	return axv(strconv.Quote(s))
}

func testNode(id, parent, role, name string, backend int64, children ...string) *accessibility.Node {
	n := &accessibility.Node{
		NodeID:           accessibility.NodeID(id),
		ParentID:         accessibility.NodeID(parent),
		BackendDOMNodeID: cdp.BackendNodeID(backend),
	}
	if role != "" {
		n.Role = axs(role)
	}
	if name != "" {
		n.Name = axs(name)
	}
	for _, c := range children {
		n.ChildIDs = append(n.ChildIDs, accessibility.NodeID(c))
	}
	return n
}

func withProp(n *accessibility.Node, name, raw string) *accessibility.Node {
	n.Properties = append(n.Properties, &accessibility.AXProperty{
		Name:  accessibility.AXPropertyName(name),
		Value: axv(raw),
	})
	return n
}

func testBuilder(boxes map[cdp.BackendNodeID]rect, zs map[cdp.BackendNodeID]int) *Builder {
	b := &Builder{log: logging.For("axtree")}
	b.box = func(_ context.Context, id cdp.BackendNodeID) (rect, bool) {
		r, ok := boxes[id]
		return r, ok
	}
	b.z = func(_ context.Context, id cdp.BackendNodeID) int {
		return zs[id]
	}
	return b
}

func keepAll(nodes []*accessibility.Node) map[accessibility.NodeID]bool {
	keep := make(map[accessibility.NodeID]bool, len(nodes))
	for _, n := range nodes {
		keep[n.NodeID] = true
	}
	return keep
}

func TestAXStringDecoding(t *testing.T) {
	if got := axString(axs("button")); got != "button" {
		t.Fatalf("quoted string: got %q", got)
	}
	if got := axString(axv("true")); got != "true" {
		t.Fatalf("bare bool: got %q", got)
	}
	if got := axString(nil); got != "" {
		t.Fatalf("nil value: got %q", got)
	}
	if got := axString(&accessibility.AXValue{}); got != "" {
		t.Fatalf("empty value: got %q", got)
	}
}

func TestRenderHeadersAndStructure(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Dashboard", 1, "2", "5"),
		testNode("2", "1", "navigation", "", 2, "3"),
		testNode("3", "2", "link", "Home", 3),
		testNode("5", "1", "main", "", 5, "6", "7", "9"),
		testNode("6", "5", "heading", "Results", 6),
		testNode("7", "5", "StaticText", "filler text", 7, "8"),
		testNode("8", "7", "InlineTextBox", "filler text", 8),
		testNode("9", "5", "button", "Refresh", 9),
	}
	out := render(nodes, "1", keepAll(nodes), []string{"URL: https://app.test/dash", "Title: Dashboard"})

	want := "URL: https://app.test/dash\n" +
		"Title: Dashboard\n" +
		"\n" +
		"[RootWebArea] \"Dashboard\"\n" +
		"  [link] \"Home\"\n" +
		"  [heading] \"Results\"\n" +
		"  [button] \"Refresh\"\n"
	if out != want {
		t.Fatalf("render mismatch:\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestRenderSuppressedContainersKeepChildDepth(t *testing.T) {
	// Three nested unnamed containers around one button: the button should
	// sit directly under the root, not four levels deep.
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "generic", "", 2, "3"),
		testNode("3", "2", "none", "", 3, "4"),
		testNode("4", "3", "LayoutTable", "", 4, "5"),
		testNode("5", "4", "button", "Go", 5),
	}
	out := render(nodes, "1", keepAll(nodes), nil)
	if !strings.Contains(out, "\n  [button] \"Go\"\n") {
		t.Fatalf("button should render at depth 1:\n%s", out)
	}
}

func TestRenderIgnoredNodesAreTransparent(t *testing.T) {
	ignored := testNode("2", "1", "dialog", "hidden shell", 2, "3")
	ignored.Ignored = true
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		ignored,
		testNode("3", "2", "button", "Inside", 3),
	}
	out := render(nodes, "1", keepAll(nodes), nil)
	if strings.Contains(out, "hidden shell") {
		t.Fatalf("ignored node should not render:\n%s", out)
	}
	if !strings.Contains(out, "[button] \"Inside\"") {
		t.Fatalf("children of ignored node should render:\n%s", out)
	}
}

func TestRenderPrunesOutsideKeepSet(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2", "3"),
		testNode("2", "1", "button", "Kept", 2),
		testNode("3", "1", "button", "Dropped", 3),
	}
	keep := map[accessibility.NodeID]bool{"1": true, "2": true}
	out := render(nodes, "1", keep, nil)
	if !strings.Contains(out, "Kept") {
		t.Fatalf("kept branch missing:\n%s", out)
	}
	if strings.Contains(out, "Dropped") {
		t.Fatalf("pruned branch rendered:\n%s", out)
	}
}

func TestFormatNodeProperties(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Form", 1, "2", "3", "4", "5", "6"),
		withProp(testNode("2", "1", "checkbox", "Accept terms", 2), "checked", `"true"`),
		withProp(testNode("3", "1", "button", "Save", 3), "disabled", "true"),
		withProp(testNode("4", "1", "combobox", "Country", 4), "expanded", "false"),
		withProp(testNode("5", "1", "textbox", "Email", 5), "focused", "true"),
		withProp(testNode("6", "1", "generic", "", 6), "focusable", "true"),
	}
	nodes[4].Value = axs("ada@example.com")

	out := render(nodes, "1", keepAll(nodes), nil)
	for _, want := range []string{
		"[checkbox] \"Accept terms\" checked=true",
		"[button] \"Save\" disabled",
		"[combobox] \"Country\" expanded=false",
		"[textbox] \"Email\" value=\"ada@example.com\" focused",
		"\n  [generic]\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderSuppressesUnfocusableGeneric(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "generic", "wrapper", 2),
	}
	out := render(nodes, "1", keepAll(nodes), nil)
	if strings.Contains(out, "wrapper") {
		t.Fatalf("plain generic should be suppressed:\n%s", out)
	}
}

func TestRenderTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("x", 130)
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "button", long, 2),
	}
	out := render(nodes, "1", keepAll(nodes), nil)
	if !strings.Contains(out, strings.Repeat("x", 120)+"…") {
		t.Fatalf("name not truncated with ellipsis:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 121)) {
		t.Fatalf("name exceeds limit:\n%s", out)
	}
}

func TestHiddenSetCoversSubtrees(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2", "4"),
		withProp(testNode("2", "1", "generic", "", 2, "3"), "hidden", "true"),
		testNode("3", "2", "button", "Buried", 3),
		testNode("4", "1", "button", "Visible", 4),
	}
	hidden := hiddenSet(nodes)
	for _, id := range []string{"2", "3"} {
		if !hidden[accessibility.NodeID(id)] {
			t.Errorf("node %s should be hidden", id)
		}
	}
	for _, id := range []string{"1", "4"} {
		if hidden[accessibility.NodeID(id)] {
			t.Errorf("node %s should not be hidden", id)
		}
	}
}

func TestKeepForViewportBuffer(t *testing.T) {
	// Viewport is 1200x800 at the document origin; the decision boundary
	// sits 200px outside it.
	vp := rect{x: 0, y: 0, w: 1200, h: 800}
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2", "3", "4"),
		testNode("2", "1", "button", "Near", 2),
		testNode("3", "1", "button", "Far", 3),
		testNode("4", "1", "button", "Below", 4),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1: {x: 0, y: 0, w: 1200, h: 6000},
		2: {x: 100, y: -170, w: 120, h: 40}, // bottom edge 150px above the viewport
		3: {x: 100, y: -290, w: 120, h: 40}, // bottom edge 250px above: outside the buffer
		4: {x: 100, y: 5000, w: 120, h: 40},
	}
	b := testBuilder(boxes, nil)
	keep := b.keepForViewport(context.Background(), nodes, nil, vp)

	if !keep["2"] {
		t.Error("element just above the viewport should be kept")
	}
	if keep["3"] {
		t.Error("element beyond the buffer should be excluded")
	}
	if keep["4"] {
		t.Error("element far below should be excluded")
	}
	if !keep["1"] {
		t.Error("root intersects the viewport and should be kept")
	}
}

func TestKeepForViewportBoxFailures(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2", "3"),
		testNode("2", "1", "button", "Ghost", 2),
		testNode("3", "1", "generic", "", 3),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1: {x: 0, y: 0, w: 1200, h: 800},
		// 2 and 3 have no fetchable box.
	}
	b := testBuilder(boxes, nil)
	keep := b.keepForViewport(context.Background(), nodes, nil, rect{w: 1200, h: 800})

	if !keep["2"] {
		t.Error("unboxed button should survive as a core interactive role")
	}
	if keep["3"] {
		t.Error("unboxed generic should be dropped")
	}
}

func TestKeepForViewportAncestorClosure(t *testing.T) {
	// The section's own box is far offscreen but it contains a visible
	// textbox, so it must be kept to preserve structure.
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "Section", "", 2, "3"),
		testNode("3", "2", "textbox", "Email", 3),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1: {x: 0, y: 0, w: 1200, h: 6000},
		2: {x: 0, y: 4000, w: 1200, h: 500},
		3: {x: 10, y: 100, w: 200, h: 30},
	}
	b := testBuilder(boxes, nil)
	keep := b.keepForViewport(context.Background(), nodes, nil, rect{w: 1200, h: 800})

	if !keep["3"] {
		t.Fatal("visible textbox should be kept")
	}
	if !keep["2"] {
		t.Fatal("offscreen ancestor of a kept node should be kept")
	}
}

func TestKeepForViewportSkipsHidden(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "button", "Covered", 2),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1: {x: 0, y: 0, w: 1200, h: 800},
		2: {x: 100, y: 100, w: 120, h: 40},
	}
	hidden := map[accessibility.NodeID]bool{"2": true}
	b := testBuilder(boxes, nil)
	keep := b.keepForViewport(context.Background(), nodes, hidden, rect{w: 1200, h: 800})
	if keep["2"] {
		t.Fatal("hidden node should never be kept, even inside the viewport")
	}
}

func modalFixture() ([]*accessibility.Node, map[cdp.BackendNodeID]rect, map[cdp.BackendNodeID]int) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2", "10", "20", "30"),
		testNode("2", "1", "button", "Behind", 2),
		testNode("10", "1", "dialog", "Low", 10, "11"),
		testNode("11", "10", "button", "Low OK", 11),
		testNode("20", "1", "dialog", "High", 20, "21"),
		testNode("21", "20", "button", "High OK", 21),
		testNode("30", "1", "menu", "Tied", 30, "31"),
		testNode("31", "30", "menuitem", "Pick me", 31),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1:  {w: 1200, h: 800},
		2:  {x: 10, y: 10, w: 100, h: 40},
		10: {x: 300, y: 200, w: 400, h: 300},
		11: {x: 320, y: 420, w: 80, h: 30},
		20: {x: 350, y: 250, w: 400, h: 300},
		21: {x: 370, y: 470, w: 80, h: 30},
		30: {x: 400, y: 300, w: 200, h: 250},
		31: {x: 410, y: 320, w: 180, h: 30},
	}
	zs := map[cdp.BackendNodeID]int{10: 100, 20: 200, 30: 200}
	return nodes, boxes, zs
}

func TestFindModalPicksTopmost(t *testing.T) {
	nodes, boxes, zs := modalFixture()
	b := testBuilder(boxes, zs)
	m := b.findModal(context.Background(), nodes, nil)
	if m == nil {
		t.Fatal("expected a modal")
	}
	// The menu ties the high dialog on z-index but comes later in
	// document order, so it wins.
	if m.rootID != "30" {
		t.Fatalf("expected menu 30 to win, got %s", m.rootID)
	}
	if !m.subtree["30"] || !m.subtree["31"] {
		t.Fatalf("subtree incomplete: %v", m.subtree)
	}
	if m.subtree["2"] || m.subtree["20"] {
		t.Fatalf("subtree leaked outside the modal: %v", m.subtree)
	}
}

func TestFindModalIgnoresTinyContainers(t *testing.T) {
	nodes := []*accessibility.Node{
		testNode("1", "", "RootWebArea", "Page", 1, "2"),
		testNode("2", "1", "dialog", "Tooltip shell", 2),
	}
	boxes := map[cdp.BackendNodeID]rect{
		1: {w: 1200, h: 800},
		2: {x: 10, y: 10, w: 40, h: 40},
	}
	b := testBuilder(boxes, map[cdp.BackendNodeID]int{2: 999})
	if m := b.findModal(context.Background(), nodes, nil); m != nil {
		t.Fatalf("undersized dialog should not count as a modal: %v", m.rootID)
	}
}

func TestFindModalSkipsHiddenDialogs(t *testing.T) {
	nodes, boxes, zs := modalFixture()
	hidden := map[accessibility.NodeID]bool{"30": true, "31": true}
	b := testBuilder(boxes, zs)
	m := b.findModal(context.Background(), nodes, hidden)
	if m == nil {
		t.Fatal("expected the high dialog once the menu is hidden")
	}
	if m.rootID != "20" {
		t.Fatalf("expected dialog 20, got %s", m.rootID)
	}
}

func TestModalRenderShowsOnlyModalContent(t *testing.T) {
	nodes, boxes, zs := modalFixture()
	b := testBuilder(boxes, zs)
	m := b.findModal(context.Background(), nodes, nil)
	if m == nil {
		t.Fatal("expected a modal")
	}
	out := render(nodes, m.rootID, m.subtree, []string{"URL: https://x", "Title: t"})
	if !strings.Contains(out, "[menu] \"Tied\"") || !strings.Contains(out, "[menuitem] \"Pick me\"") {
		t.Fatalf("modal content missing:\n%s", out)
	}
	for _, leaked := range []string{"Behind", "Low OK", "High OK", "RootWebArea"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("content outside the modal leaked (%s):\n%s", leaked, out)
		}
	}
}

func TestRectIntersects(t *testing.T) {
	vp := rect{x: 0, y: 0, w: 100, h: 100}
	cases := []struct {
		name string
		r    rect
		want bool
	}{
		{"inside", rect{x: 10, y: 10, w: 10, h: 10}, true},
		{"overlapping edge", rect{x: 90, y: 90, w: 50, h: 50}, true},
		{"touching is not overlap", rect{x: 100, y: 0, w: 50, h: 50}, false},
		{"disjoint", rect{x: 200, y: 200, w: 10, h: 10}, false},
		{"containing", rect{x: -50, y: -50, w: 300, h: 300}, true},
	}
	for _, c := range cases {
		if got := c.r.intersects(vp); got != c.want {
			t.Errorf("%s: got %v want %v", c.name, got, c.want)
		}
	}
	if got := (rect{x: -10, y: -10, w: 5, h: 5}).intersects(vp.expand(200)); !got {
		t.Error("expand should widen the acceptance region")
	}
}
