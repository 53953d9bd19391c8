package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// toggleDispatchJS brings the checkbox to the wanted state. When the state
// already matches, nothing fires: toggling is idempotent. Otherwise the
// native click activation performs the flip (one click/input/change
// sequence); custom role=checkbox widgets that ignore it get the state set
// and the events dispatched directly.
const toggleDispatchJS = `function(want) {
  const el = this;
  const current = el.checked === true;
  if (current === want) return { changed: false, checked: current };

  if (typeof el.click === "function") el.click();
  if (el.checked !== want) {
    el.checked = want;
    el.dispatchEvent(new MouseEvent("click", { bubbles: true, cancelable: true }));
    el.dispatchEvent(new Event("change", { bubbles: true }));
    el.dispatchEvent(new Event("input", { bubbles: true }));
  }
  return { changed: true, checked: el.checked === true };
}`

type toggleOutcome struct {
	Changed bool `json:"changed"`
	Checked bool `json:"checked"`
}

// Toggle drives the checkbox to the desired state.
func (e *Engine) Toggle(ctx context.Context, req Request, desired bool) (*ActionResult, error) {
	started := time.Now()

	a, tried, err := e.resolveTarget(ctx, "toggle", req)
	if err != nil {
		return nil, failed(err, req, tried)
	}
	if !a.hasNode() {
		// A raw point cannot be read for current state; an unconditional
		// click would break idempotence.
		return nil, failed(browser.Errf(browser.KindToggleFailed, "toggle",
			"a coordinate target cannot be toggled"), req, tried)
	}

	if err := e.scrollIntoView(ctx, a); err != nil {
		return nil, failed(err, req, tried)
	}
	if err := e.checkEnabled(ctx, a, "toggle"); err != nil {
		return nil, failed(err, req, tried)
	}

	call := fmt.Sprintf(`function() { return (%s).call(this, %t); }`, toggleDispatchJS, desired)
	var out toggleOutcome
	if err := e.callOnNode(ctx, a.objectID, call, &out, false); err != nil {
		return nil, failed(err, req, tried)
	}
	if out.Checked != desired {
		return nil, failed(browser.Errf(browser.KindToggleFailed, "toggle",
			"state did not take").WithDescriptor(a.summary), req, tried)
	}

	if out.Changed {
		e.settle()
	}
	res := e.result("toggle", a, started)
	res.Checked = &out.Checked
	return res, nil
}
