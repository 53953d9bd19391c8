package interact

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// TypeOptions controls the type pipeline. The zero value is NOT the
// default: clearing is on unless explicitly disabled.
type TypeOptions struct {
	ClearFirst bool
	PressEnter bool
}

func DefaultTypeOptions() TypeOptions {
	return TypeOptions{ClearFirst: true}
}

// Type focuses the target and enters text one keystroke at a time. With a
// node target the element is focused natively; with raw coordinates a
// protocol click at the point acquires focus first. Existing content is
// cleared by selection plus Delete, never by assigning a value property.
func (e *Engine) Type(ctx context.Context, req Request, text string, opts TypeOptions) (*ActionResult, error) {
	started := time.Now()

	a, tried, err := e.resolveTarget(ctx, "type", req)
	if err != nil {
		return nil, failed(err, req, tried)
	}

	if a.hasNode() {
		if err := e.scrollIntoView(ctx, a); err != nil {
			return nil, failed(err, req, tried)
		}
		if err := e.focusNode(ctx, a); err != nil {
			return nil, failed(err, req, tried)
		}
	} else {
		// Click-to-focus at the supplied point.
		if err := e.nativeClick(ctx, a.cx, a.cy); err != nil {
			return nil, failed(browser.Errf(browser.KindFocusFailed, "type",
				"click-to-focus failed").WithCause(err), req, tried)
		}
		e.phasePause()
	}

	if opts.ClearFirst {
		if err := e.clearTarget(ctx, a); err != nil {
			return nil, failed(err, req, tried)
		}
	}

	typed, err := e.typeRunes(ctx, text)
	if err != nil {
		return nil, failed(err, req, tried)
	}

	if opts.PressEnter {
		e.phasePause()
		if err := e.pressKey(ctx, keyEnter); err != nil {
			return nil, failed(browser.Errf(browser.KindTypeFailed, "type",
				"enter press failed, typed %q", typed).WithCause(err), req, tried)
		}
	}

	e.settle()
	res := e.result("type", a, started)
	res.TypedText = typed
	return res, nil
}

// focusNode focuses through the protocol and verifies the element took it.
func (e *Engine) focusNode(ctx context.Context, a *acquired) error {
	err := e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return dom.Focus().WithBackendNodeID(a.backendID).Do(c)
	}))
	if err != nil {
		return browser.Errf(browser.KindFocusFailed, "type",
			"element would not take focus").WithDescriptor(a.summary).WithCause(err)
	}

	var focused bool
	err = e.callOnNode(ctx, a.objectID,
		`function() { return document.activeElement === this || this.contains(document.activeElement); }`,
		&focused, false)
	if err != nil {
		return err
	}
	if !focused {
		return browser.Errf(browser.KindFocusFailed, "type",
			"focus did not stick").WithDescriptor(a.summary)
	}
	return nil
}

// clearTarget empties the focused control. Content-editable elements get the
// platform select-all chord; standard inputs select their own content. Both
// finish with Delete.
func (e *Engine) clearTarget(ctx context.Context, a *acquired) error {
	editable := false
	if a.hasNode() {
		if err := e.callOnNode(ctx, a.objectID,
			`function() { return this.isContentEditable === true; }`, &editable, false); err != nil {
			return err
		}
	}

	if editable || !a.hasNode() {
		if err := e.pressKey(ctx, "a", selectAllModifier()); err != nil {
			return browser.Errf(browser.KindTypeFailed, "type", "select-all failed").WithCause(err)
		}
	} else {
		if err := e.callOnNode(ctx, a.objectID,
			`function() { if (typeof this.select === "function") this.select(); }`, nil, false); err != nil {
			return err
		}
	}

	e.phasePause()
	if err := e.pressKey(ctx, keyDelete); err != nil {
		return browser.Errf(browser.KindTypeFailed, "type", "clearing delete failed").WithCause(err)
	}
	e.phasePause()
	return nil
}
