// Package finder turns fuzzy element descriptions into concrete DOM nodes.
// One in-page script collects and marks every candidate, additive scoring
// ranks them, and the winner is resolved to a protocol node handle with
// fresh geometry.
package finder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// Match is the winning candidate with its protocol handle and the center
// point of its content quad, read fresh during acquisition.
type Match struct {
	Scored
	BackendNodeID cdp.BackendNodeID
	CenterX       float64
	CenterY       float64
}

// Result is everything one resolution call produced. Ranked is best-first
// and includes the winner; CandidateCount is the pre-filter total for
// ambiguity diagnostics.
type Result struct {
	Match          *Match
	Ranked         []Scored
	CandidateCount int
	Ambiguous      bool
}

// Finder resolves descriptors against one attached tab.
type Finder struct {
	hctx browser.HandlerContext
	log  logging.Logger
}

func New(hctx browser.HandlerContext) *Finder {
	return &Finder{hctx: hctx, log: logging.For("finder")}
}

// Resolve runs the full pipeline: collect, filter, score, select, acquire.
// Ambiguity (top two scores within 10 points) is logged but never fails the
// call; the top-scored node is still returned.
func (f *Finder) Resolve(ctx context.Context, d Descriptor) (*Result, error) {
	cands, err := f.Collect(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, browser.Errf(browser.KindNoCandidates, "resolve",
			"no elements matched").WithDescriptor(d.Summary())
	}

	ranked, ambiguous := Rank(d, cands)
	if len(ranked) == 0 {
		return nil, browser.Errf(browser.KindNoScoredMatch, "resolve",
			"%d candidates, none passed the attribute filter", len(cands)).
			WithDescriptor(d.Summary())
	}

	if ambiguous {
		f.log.Warnf("ambiguous match for %s: %s (score %d) vs %s (score %d)",
			d.Summary(),
			ranked[0].Summary(), ranked[0].Score,
			ranked[1].Summary(), ranked[1].Score)
	}

	winner := ranked[0]
	backendID, cx, cy, err := f.acquire(ctx, winner.Ref)
	if err != nil {
		return nil, err
	}

	return &Result{
		Match: &Match{
			Scored:        winner,
			BackendNodeID: backendID,
			CenterX:       cx,
			CenterY:       cy,
		},
		Ranked:         ranked,
		CandidateCount: len(cands),
		Ambiguous:      ambiguous,
	}, nil
}

// Collect runs the candidate script. Exactly one page call regardless of how
// many elements match.
func (f *Finder) Collect(ctx context.Context, d Descriptor) ([]Candidate, error) {
	if d.Empty() {
		return nil, browser.Errf(browser.KindNoCandidates, "resolve", "empty descriptor")
	}

	var raw string
	if err := f.hctx.Session.Evaluate(ctx, buildCandidateScript(d), &raw); err != nil {
		return nil, browser.Errf(browser.KindProtocol, "resolve",
			"candidate script failed").WithDescriptor(d.Summary()).WithCause(err)
	}

	var cands []Candidate
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		return nil, browser.Errf(browser.KindProtocol, "resolve",
			"candidate payload unreadable").WithCause(err)
	}
	return cands, nil
}

// acquire turns the winner's marker ref into a backend node id and a fresh
// content-quad center. Geometry failure after a successful selector hit
// means the DOM changed underneath us.
func (f *Finder) acquire(ctx context.Context, ref int) (cdp.BackendNodeID, float64, float64, error) {
	var backendID cdp.BackendNodeID
	var cx, cy float64

	err := f.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		root, err := dom.GetDocument().Do(c)
		if err != nil {
			return browser.Errf(browser.KindProtocol, "resolve", "document unavailable").WithCause(err)
		}

		sel := fmt.Sprintf("[%s=%q]", MarkerAttr, strconv.Itoa(ref))
		nodeID, err := dom.QuerySelector(root.NodeID, sel).Do(c)
		if err != nil || nodeID == 0 {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"marked winner vanished before acquisition").WithCause(err)
		}

		node, err := dom.DescribeNode().WithNodeID(nodeID).Do(c)
		if err != nil || node == nil {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"node description failed").WithCause(err)
		}
		backendID = node.BackendNodeID

		box, err := dom.GetBoxModel().WithNodeID(nodeID).Do(c)
		if err != nil || box == nil || len(box.Content) < 8 {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"geometry unavailable for resolved node").WithCause(err)
		}
		cx = (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4
		cy = (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4
		return nil
	}))
	if err != nil {
		var ae *browser.ActionError
		if errors.As(err, &ae) {
			return 0, 0, 0, err
		}
		return 0, 0, 0, browser.Errf(browser.KindProtocol, "resolve",
			"acquisition failed").WithCause(err)
	}
	return backendID, cx, cy, nil
}
