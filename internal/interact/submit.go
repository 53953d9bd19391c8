package interact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// submitDispatchJS submits the form containing `this` (or `this` itself when
// it is a form). requestSubmit is preferred so HTML5 validation still runs;
// submit() is the fallback for engines without it.
const submitDispatchJS = `function() {
  const el = this;
  const form = el.tagName === "FORM" ? el : el.closest("form");
  if (!form) return { error: "no_form" };
  if (typeof form.requestSubmit === "function") form.requestSubmit();
  else form.submit();
  return { submitted: true };
}`

// firstFormJS submits the page's first form when no descriptor was given.
const firstFormJS = `(() => {
  const form = document.querySelector("form");
  if (!form) return JSON.stringify({ error: "no_form" });
  if (typeof form.requestSubmit === "function") form.requestSubmit();
  else form.submit();
  return JSON.stringify({ submitted: true });
})()`

// SubmitOptions: Button marks the request as naming a submit button, which
// delegates to the full click pipeline instead of a form submit.
type SubmitOptions struct {
	Button bool
}

type submitOutcome struct {
	Error     string `json:"error"`
	Submitted bool   `json:"submitted"`
}

// Submit sends a form. With Button set the request is clicked like any other
// click target (full ladder). Otherwise the request locates the form: a form
// descriptor directly, any member element via its ancestor form, or the
// page's first form when the request is empty.
func (e *Engine) Submit(ctx context.Context, req Request, opts SubmitOptions) (*ActionResult, error) {
	if opts.Button {
		res, err := e.Click(ctx, req)
		if err != nil {
			return nil, recast(err, "submit")
		}
		res.Op = "submit"
		return res, nil
	}

	started := time.Now()

	if req.Cached == 0 && req.Descriptor.Empty() && req.Coords == nil {
		return e.submitFirstForm(ctx, started)
	}

	a, tried, err := e.resolveTarget(ctx, "submit", req)
	if err != nil {
		return nil, failed(err, req, tried)
	}
	if !a.hasNode() {
		return nil, failed(browser.Errf(browser.KindSubmitFailed, "submit",
			"a coordinate target cannot locate a form"), req, tried)
	}

	var out submitOutcome
	call := fmt.Sprintf(`function() { return (%s).call(this); }`, submitDispatchJS)
	if err := e.callOnNode(ctx, a.objectID, call, &out, false); err != nil {
		return nil, failed(err, req, tried)
	}
	if out.Error != "" || !out.Submitted {
		return nil, failed(browser.Errf(browser.KindSubmitFailed, "submit",
			"no form encloses the resolved element").WithDescriptor(a.summary), req, tried)
	}

	e.settle()
	return e.result("submit", a, started), nil
}

func (e *Engine) submitFirstForm(ctx context.Context, started time.Time) (*ActionResult, error) {
	var raw string
	if err := e.hctx.Session.Evaluate(ctx, firstFormJS, &raw); err != nil {
		return nil, browser.Errf(browser.KindSubmitFailed, "submit",
			"form lookup failed").WithCause(err)
	}
	var out submitOutcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, browser.Errf(browser.KindProtocol, "submit",
			"form lookup result unreadable").WithCause(err)
	}
	if out.Error != "" || !out.Submitted {
		return nil, browser.Errf(browser.KindSubmitFailed, "submit", "page has no form")
	}

	e.settle()
	return &ActionResult{
		Op:       "submit",
		Tier:     TierFresh,
		Target:   "form (first on page)",
		Duration: time.Since(started),
	}, nil
}

// recast relabels a delegated click failure as a submit failure while
// keeping the original kind and cause visible.
func recast(err error, op string) error {
	var ae *browser.ActionError
	if !errors.As(err, &ae) {
		return err
	}
	ae.Op = op
	return ae
}
