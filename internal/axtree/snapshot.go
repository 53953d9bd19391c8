// Package axtree renders the page's accessibility tree as an indented text
// snapshot: the agent's eyes. Extraction filters to what a sighted user
// could currently attend to, including the focus-trap semantics of an
// active modal.
package axtree

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// viewportBuffer expands the visible rectangle on all sides when deciding
// what is "on screen": near-offscreen content the user could scroll to in
// one flick still counts.
const viewportBuffer = 200

// Fallback viewport when the page script cannot run.
const (
	fallbackViewportW = 1920
	fallbackViewportH = 1080
)

type rect struct {
	x, y, w, h float64
}

func (r rect) expand(by float64) rect {
	return rect{x: r.x - by, y: r.y - by, w: r.w + 2*by, h: r.h + 2*by}
}

func (r rect) intersects(o rect) bool {
	return r.x < o.x+o.w && o.x < r.x+r.w && r.y < o.y+o.h && o.y < r.y+r.h
}

// boxFunc fetches a node's page-coordinate box; a false ok means the box
// model is unavailable (detached or unrendered node).
type boxFunc func(ctx context.Context, id cdp.BackendNodeID) (rect, bool)

// zFunc computes the max z-index along a node's DOM ancestor chain.
type zFunc func(ctx context.Context, id cdp.BackendNodeID) int

// Builder extracts accessibility snapshots from one attached tab.
type Builder struct {
	hctx browser.HandlerContext
	log  logging.Logger

	// Overridable for tests; bound to the protocol in New.
	box boxFunc
	z   zFunc
}

func New(hctx browser.HandlerContext) *Builder {
	b := &Builder{hctx: hctx, log: logging.For("axtree")}
	b.box = b.protocolBox
	b.z = b.protocolZ
	return b
}

// Extract produces the rendered snapshot. The accessibility domain is
// enabled only for the duration of the call; the deferred disable runs on
// every exit path so no instrumentation leaks onto future calls.
func (b *Builder) Extract(ctx context.Context) (string, error) {
	sess := b.hctx.Session

	if err := sess.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return accessibility.Enable().Do(c)
	})); err != nil {
		return "", browser.Errf(browser.KindProtocol, "snapshot",
			"accessibility domain unavailable").WithCause(err)
	}
	defer func() {
		err := sess.Run(context.Background(), chromedp.ActionFunc(func(c context.Context) error {
			return accessibility.Disable().Do(c)
		}))
		if err != nil {
			b.log.Warnf("accessibility disable failed: %v", err)
		}
	}()

	var nodes []*accessibility.Node
	err := sess.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		nodes, err = accessibility.GetFullAXTree().Do(c)
		return err
	}))
	if err != nil {
		return "", browser.Errf(browser.KindProtocol, "snapshot",
			"tree fetch failed").WithCause(err)
	}
	if len(nodes) == 0 {
		return "", browser.Errf(browser.KindNoNodesFound, "snapshot",
			"accessibility tree is empty")
	}

	vp := b.viewport(ctx)
	hidden := hiddenSet(nodes)
	modal := b.findModal(ctx, nodes, hidden)

	var keep map[accessibility.NodeID]bool
	var rootID accessibility.NodeID
	if modal != nil {
		keep = modal.subtree
		rootID = modal.rootID
	} else {
		keep = b.keepForViewport(ctx, nodes, hidden, vp)
		rootID = treeRoot(nodes)
	}

	header := b.pageHeader(ctx)
	return render(nodes, rootID, keep, header), nil
}

// viewport reads scroll offsets and the inner size; box models are in page
// coordinates, so the visible rectangle starts at the scroll position.
func (b *Builder) viewport(ctx context.Context) rect {
	var raw string
	err := b.hctx.Session.Evaluate(ctx,
		`(() => JSON.stringify({x: window.scrollX, y: window.scrollY, w: window.innerWidth, h: window.innerHeight}))()`,
		&raw)
	if err == nil {
		var v struct{ X, Y, W, H float64 }
		if json.Unmarshal([]byte(raw), &v) == nil && v.W > 0 && v.H > 0 {
			return rect{x: v.X, y: v.Y, w: v.W, h: v.H}
		}
	}
	b.log.Warnf("viewport script failed, assuming %dx%d", fallbackViewportW, fallbackViewportH)
	return rect{w: fallbackViewportW, h: fallbackViewportH}
}

func (b *Builder) pageHeader(ctx context.Context) []string {
	var raw string
	err := b.hctx.Session.Evaluate(ctx,
		`(() => JSON.stringify({url: location.href, title: document.title}))()`, &raw)
	var page struct{ URL, Title string }
	if err == nil {
		json.Unmarshal([]byte(raw), &page)
	}
	return []string{"URL: " + page.URL, "Title: " + page.Title}
}

// keepForViewport keeps non-hidden nodes whose box intersects the buffered
// viewport, plus every ancestor of a kept node so leaves keep their
// structural context. Nodes without a fetchable box survive only when their
// role is a core interactive one.
func (b *Builder) keepForViewport(ctx context.Context, nodes []*accessibility.Node, hidden map[accessibility.NodeID]bool, vp rect) map[accessibility.NodeID]bool {
	buffered := vp.expand(viewportBuffer)
	keep := make(map[accessibility.NodeID]bool)

	for _, n := range nodes {
		if hidden[n.NodeID] {
			continue
		}
		if n.BackendDOMNodeID == 0 {
			if coreInteractive[axString(n.Role)] {
				keep[n.NodeID] = true
			}
			continue
		}
		box, ok := b.box(ctx, n.BackendDOMNodeID)
		if !ok {
			if coreInteractive[axString(n.Role)] {
				keep[n.NodeID] = true
			}
			continue
		}
		if box.intersects(buffered) {
			keep[n.NodeID] = true
		}
	}

	// Ancestor closure.
	byID := indexNodes(nodes)
	for id := range keep {
		for n := byID[id]; n != nil && n.ParentID != ""; {
			parent := byID[n.ParentID]
			if parent == nil || keep[parent.NodeID] {
				break
			}
			keep[parent.NodeID] = true
			n = parent
		}
	}
	return keep
}

// hiddenSet collects nodes whose hidden property is explicitly true, plus
// their entire subtrees.
func hiddenSet(nodes []*accessibility.Node) map[accessibility.NodeID]bool {
	hidden := make(map[accessibility.NodeID]bool)
	byID := indexNodes(nodes)

	var markSubtree func(id accessibility.NodeID)
	markSubtree = func(id accessibility.NodeID) {
		if hidden[id] {
			return
		}
		hidden[id] = true
		if n := byID[id]; n != nil {
			for _, child := range n.ChildIDs {
				markSubtree(child)
			}
		}
	}

	for _, n := range nodes {
		if propTrue(n, "hidden") {
			markSubtree(n.NodeID)
		}
	}
	return hidden
}

func indexNodes(nodes []*accessibility.Node) map[accessibility.NodeID]*accessibility.Node {
	m := make(map[accessibility.NodeID]*accessibility.Node, len(nodes))
	for _, n := range nodes {
		m[n.NodeID] = n
	}
	return m
}

// treeRoot is the first node without a parent, else the first node.
func treeRoot(nodes []*accessibility.Node) accessibility.NodeID {
	for _, n := range nodes {
		if n.ParentID == "" {
			return n.NodeID
		}
	}
	return nodes[0].NodeID
}

// protocolBox fetches the content-quad bounding rect in page coordinates.
func (b *Builder) protocolBox(ctx context.Context, id cdp.BackendNodeID) (rect, bool) {
	var r rect
	ok := false
	err := b.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		box, err := dom.GetBoxModel().WithBackendNodeID(id).Do(c)
		if err != nil || box == nil || len(box.Content) < 8 {
			return nil // box unavailable is not a protocol failure
		}
		minX, minY := box.Content[0], box.Content[1]
		maxX, maxY := minX, minY
		for i := 0; i < 8; i += 2 {
			x, y := box.Content[i], box.Content[i+1]
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		r = rect{x: minX, y: minY, w: maxX - minX, h: maxY - minY}
		ok = true
		return nil
	}))
	if err != nil {
		return rect{}, false
	}
	return r, ok
}

// protocolZ resolves the node and walks its ancestor chain for the highest
// computed z-index.
func (b *Builder) protocolZ(ctx context.Context, id cdp.BackendNodeID) int {
	const maxZJS = `function() {
  let z = 0;
  for (let n = this; n && n !== document.documentElement; n = n.parentElement) {
    const v = parseInt(getComputedStyle(n).zIndex, 10);
    if (!isNaN(v) && v > z) z = v;
  }
  return z;
}`
	var z int
	err := b.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(id).Do(c)
		if err != nil || obj == nil || obj.ObjectID == "" {
			return nil
		}
		res, exc, err := runtime.CallFunctionOn(maxZJS).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil || exc != nil || res == nil || res.Value == nil {
			return nil
		}
		json.Unmarshal(res.Value, &z)
		return nil
	}))
	if err != nil {
		return 0
	}
	return z
}

// axString decodes an AXValue: quoted strings unwrap, other scalars render
// as their raw JSON text.
func axString(v *accessibility.AXValue) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v.Value))
}

// prop returns the named property's decoded value, or "".
func prop(n *accessibility.Node, name string) string {
	for _, p := range n.Properties {
		if p != nil && p.Name.String() == name {
			return axString(p.Value)
		}
	}
	return ""
}

func propTrue(n *accessibility.Node, name string) bool {
	return prop(n, name) == "true"
}
