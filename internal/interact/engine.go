// Package interact executes click, type, select, checkbox, and submit
// pipelines against a resolved element. All kinds share one skeleton
// (resolve, scroll, focus, dispatch, settle) and one three-tier fallback
// ladder for target acquisition; each kind supplies only its dispatch phase.
package interact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/finder"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// Tier names, in ladder order.
const (
	TierCached = "cached"
	TierFresh  = "fresh"
	TierCoords = "coords"
)

// Point is a raw screen coordinate, the ladder's last resort.
type Point struct {
	X float64
	Y float64
}

// Request names the target for one interaction. The three fields map to the
// ladder tiers: a cached backend node id from an earlier resolution, a fuzzy
// descriptor for fresh resolution, and raw coordinates. At least one must be
// set; each tier is attempted only when the previous is absent or fails.
type Request struct {
	Cached     cdp.BackendNodeID
	Descriptor finder.Descriptor
	Coords     *Point
}

func (r Request) summary() string {
	if !r.Descriptor.Empty() {
		return r.Descriptor.Summary()
	}
	if r.Cached != 0 {
		return fmt.Sprintf("node=%d", r.Cached)
	}
	if r.Coords != nil {
		return fmt.Sprintf("coords=(%.0f,%.0f)", r.Coords.X, r.Coords.Y)
	}
	return "(empty)"
}

// ActionResult reports one completed interaction. Optional fields are set
// per kind: TypedText for type, SelectedValue/Label for select, Checked for
// checkbox toggles.
type ActionResult struct {
	Op            string
	Tier          string
	Target        string
	Score         int
	Duration      time.Duration
	TypedText     string
	SelectedValue string
	SelectedLabel string
	Checked       *bool
}

// Config carries the pacing knobs. Zero values fall back to the defaults.
type Config struct {
	SettleMinMS int
	SettleMaxMS int
	KeyDelayMS  int
}

func (c Config) settleMin() int {
	if c.SettleMinMS > 0 {
		return c.SettleMinMS
	}
	return 300
}

func (c Config) settleMax() int {
	if max := c.SettleMaxMS; max >= c.settleMin() {
		return max
	}
	return c.settleMin() + 300
}

func (c Config) keyDelay() int {
	if c.KeyDelayMS > 0 {
		return c.KeyDelayMS
	}
	return 35
}

// Engine runs interactions against one attached tab. Calls are sequential
// pipelines of protocol round-trips; the caller serializes per tab and wraps
// each call in its own timeout.
type Engine struct {
	hctx browser.HandlerContext
	find *finder.Finder
	cfg  Config
	log  logging.Logger
}

func NewEngine(hctx browser.HandlerContext, cfg Config) *Engine {
	return &Engine{
		hctx: hctx,
		find: finder.New(hctx),
		cfg:  cfg,
		log:  logging.For("interact"),
	}
}

// acquired is a ladder-resolved target. Tiers 1 and 2 carry both protocol
// handles; the coordinate tier carries only a position.
type acquired struct {
	tier      string
	backendID cdp.BackendNodeID
	objectID  runtime.RemoteObjectID
	cx, cy    float64
	summary   string
	score     int
}

func (a *acquired) hasNode() bool { return a.objectID != "" }

// resolveTarget walks the ladder. Exactly one internal retry exists per
// interaction: falling through to the next tier. There is no retry within a
// tier.
func (e *Engine) resolveTarget(ctx context.Context, op string, req Request) (*acquired, []string, error) {
	var tried []string
	var lastErr error

	if req.Cached != 0 {
		tried = append(tried, TierCached)
		a, err := e.acquireCached(ctx, req.Cached)
		if err == nil {
			return a, tried, nil
		}
		lastErr = err
		e.log.Warnf("%s: cached node %d stale, falling through: %v", op, req.Cached, err)
	}

	if !req.Descriptor.Empty() {
		tried = append(tried, TierFresh)
		a, err := e.acquireFresh(ctx, req.Descriptor)
		if err == nil {
			return a, tried, nil
		}
		lastErr = err
		e.log.Warnf("%s: fresh resolution failed, falling through: %v", op, err)
	}

	if req.Coords != nil {
		tried = append(tried, TierCoords)
		return &acquired{
			tier:    TierCoords,
			cx:      req.Coords.X,
			cy:      req.Coords.Y,
			summary: fmt.Sprintf("coords=(%.0f,%.0f)", req.Coords.X, req.Coords.Y),
		}, tried, nil
	}

	if lastErr == nil {
		lastErr = browser.Errf(browser.KindNoCandidates, op, "request names no target")
	}
	var ae *browser.ActionError
	if errors.As(lastErr, &ae) {
		return nil, tried, ae.WithTiers(tried...)
	}
	return nil, tried, browser.Errf(browser.KindProtocol, op, "no tier produced a target").
		WithTiers(tried...).WithCause(lastErr)
}

// acquireCached verifies a previously returned node handle still resolves
// and has geometry.
func (e *Engine) acquireCached(ctx context.Context, id cdp.BackendNodeID) (*acquired, error) {
	a := &acquired{tier: TierCached, backendID: id, summary: fmt.Sprintf("node=%d", id)}

	err := e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(id).Do(c)
		if err != nil || obj == nil || obj.ObjectID == "" {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"cached node no longer resolves").WithCause(err)
		}
		a.objectID = obj.ObjectID

		box, err := dom.GetBoxModel().WithBackendNodeID(id).Do(c)
		if err != nil || box == nil || len(box.Content) < 8 {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"cached node has no geometry").WithCause(err)
		}
		a.cx = (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4
		a.cy = (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// acquireFresh resolves the descriptor through the finder, then binds the
// winner to a script object for synthetic dispatch.
func (e *Engine) acquireFresh(ctx context.Context, d finder.Descriptor) (*acquired, error) {
	res, err := e.find.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	m := res.Match

	a := &acquired{
		tier:      TierFresh,
		backendID: m.BackendNodeID,
		cx:        m.CenterX,
		cy:        m.CenterY,
		summary:   m.Summary(),
		score:     m.Score,
	}
	err = e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(m.BackendNodeID).Do(c)
		if err != nil || obj == nil || obj.ObjectID == "" {
			return browser.Errf(browser.KindStaleElement, "resolve",
				"resolved node would not bind to a script object").WithCause(err)
		}
		a.objectID = obj.ObjectID
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// callOnNode invokes a function expression with the acquired node as `this`
// and unmarshals the by-value result into out (out may be nil). Promise
// results are awaited when await is set.
func (e *Engine) callOnNode(ctx context.Context, objectID runtime.RemoteObjectID, fn string, out any, await bool) error {
	e.hctx.Session.AuditCommand("Runtime.callFunctionOn")

	var value []byte
	err := e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		call := runtime.CallFunctionOn(fn).
			WithObjectID(objectID).
			WithReturnByValue(true)
		if await {
			call = call.WithAwaitPromise(true)
		}
		res, exc, err := call.Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil && res.Value != nil {
			value = res.Value
		}
		return nil
	}))
	if err != nil {
		var ae *browser.ActionError
		if errors.As(err, &ae) {
			return err
		}
		return browser.Errf(browser.KindProtocol, "dispatch", "node call failed").WithCause(err)
	}
	if out != nil && value != nil {
		if err := json.Unmarshal(value, out); err != nil {
			return browser.Errf(browser.KindProtocol, "dispatch", "node call result unreadable").WithCause(err)
		}
	}
	return nil
}

// scrollIntoView centers the node, then waits for layout to settle before
// geometry is trusted again.
func (e *Engine) scrollIntoView(ctx context.Context, a *acquired) error {
	err := e.callOnNode(ctx, a.objectID,
		`function() { this.scrollIntoView({ block: "center", inline: "nearest" }); }`, nil, false)
	if err != nil {
		return err
	}
	e.settle()
	return e.refreshGeometry(ctx, a)
}

// refreshGeometry re-reads the box model; coordinates may have shifted
// during scrolling or settling.
func (e *Engine) refreshGeometry(ctx context.Context, a *acquired) error {
	err := e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		box, err := dom.GetBoxModel().WithBackendNodeID(a.backendID).Do(c)
		if err != nil || box == nil || len(box.Content) < 8 {
			return browser.Errf(browser.KindStaleElement, "dispatch",
				"geometry lost after scroll").WithCause(err)
		}
		a.cx = (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4
		a.cy = (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4
		return nil
	}))
	return err
}

// checkEnabled fails fast on disabled controls so no events are dispatched
// that the page would silently ignore.
func (e *Engine) checkEnabled(ctx context.Context, a *acquired, op string) error {
	var disabled bool
	err := e.callOnNode(ctx, a.objectID,
		`function() { return this.disabled === true || this.getAttribute("aria-disabled") === "true"; }`,
		&disabled, false)
	if err != nil {
		return err
	}
	if disabled {
		return browser.Errf(browser.KindElementDisabled, op,
			"element is disabled; no events dispatched").WithDescriptor(a.summary)
	}
	return nil
}

// settle waits the configured randomized window, emulating human pacing and
// giving frameworks time to process mutations before the next read.
func (e *Engine) settle() {
	min, max := e.cfg.settleMin(), e.cfg.settleMax()
	sleepMS(min, max)
}

// phasePause is the short gap between event phases.
func (e *Engine) phasePause() {
	sleepMS(20, 60)
}

func sleepMS(min, max int) {
	d := min
	if max > min {
		d = min + rand.Intn(max-min+1)
	}
	time.Sleep(time.Duration(d) * time.Millisecond)
}

// jsString renders s as a JS string literal; every dynamic value entering a
// dispatch script goes through it.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func (e *Engine) result(op string, a *acquired, started time.Time) *ActionResult {
	return &ActionResult{
		Op:       op,
		Tier:     a.tier,
		Target:   a.summary,
		Score:    a.score,
		Duration: time.Since(started),
	}
}

// failed tags an error with the tiers that were tried so the caller can
// decide whether to retry with different parameters.
func failed(err error, req Request, tried []string) error {
	var ae *browser.ActionError
	if errors.As(err, &ae) {
		if len(ae.Tiers) == 0 {
			ae = ae.WithTiers(tried...)
		}
		if ae.Descriptor == "" {
			ae = ae.WithDescriptor(req.summary())
		}
		return ae
	}
	return err
}
