package axtree

import (
	"context"

	"github.com/chromedp/cdproto/accessibility"
)

// Roles whose presence can trap focus and block the page behind them.
var modalRoles = map[string]bool{
	"dialog":      true,
	"alertdialog": true,
	"menu":        true,
	"listbox":     true,
}

// Decorative or collapsed containers carry modal roles too; require a
// meaningful footprint before treating one as the active layer.
const minModalSize = 50

type activeModal struct {
	rootID  accessibility.NodeID
	subtree map[accessibility.NodeID]bool
}

// findModal locates the topmost rendered modal container, if any. Ranking
// is by max ancestor-chain z-index; on ties the later node in document
// order wins, since later siblings stack on top at equal z.
func (b *Builder) findModal(ctx context.Context, nodes []*accessibility.Node, hidden map[accessibility.NodeID]bool) *activeModal {
	bestZ := -1
	var best *accessibility.Node

	for _, n := range nodes {
		if hidden[n.NodeID] || n.BackendDOMNodeID == 0 {
			continue
		}
		if !modalRoles[axString(n.Role)] {
			continue
		}
		box, ok := b.box(ctx, n.BackendDOMNodeID)
		if !ok || box.w <= minModalSize || box.h <= minModalSize {
			continue
		}
		z := b.z(ctx, n.BackendDOMNodeID)
		if z >= bestZ {
			bestZ = z
			best = n
		}
	}
	if best == nil {
		return nil
	}

	m := &activeModal{rootID: best.NodeID, subtree: make(map[accessibility.NodeID]bool)}
	byID := indexNodes(nodes)
	var walk func(id accessibility.NodeID)
	walk = func(id accessibility.NodeID) {
		if m.subtree[id] || hidden[id] {
			return
		}
		m.subtree[id] = true
		if n := byID[id]; n != nil {
			for _, child := range n.ChildIDs {
				walk(child)
			}
		}
	}
	walk(best.NodeID)
	b.log.Infof("modal active: %s %q (z=%d, %d nodes)",
		axString(best.Role), axString(best.Name), bestZ, len(m.subtree))
	return m
}
