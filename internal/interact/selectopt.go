package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// selectDispatchJS matches the wanted option by exact value, exact label,
// label substring, then numeric index, stopping at the first hit. Setting
// selectedIndex does not notify framework listeners, so change and input
// fire explicitly afterward.
const selectDispatchJS = `function(want) {
  const el = this;
  if (!el.options) return { error: "not_select" };
  const opts = Array.from(el.options);

  let idx = opts.findIndex((o) => o.value === want);
  if (idx < 0) idx = opts.findIndex((o) => o.label.trim() === want.trim());
  if (idx < 0) {
    const lw = want.trim().toLowerCase();
    if (lw) idx = opts.findIndex((o) => o.label.toLowerCase().includes(lw));
  }
  if (idx < 0 && /^[0-9]+$/.test(want.trim())) {
    const n = parseInt(want.trim(), 10);
    if (n >= 0 && n < opts.length) idx = n;
  }
  if (idx < 0) return { error: "no_option" };

  el.selectedIndex = idx;
  el.dispatchEvent(new Event("change", { bubbles: true }));
  el.dispatchEvent(new Event("input", { bubbles: true }));
  return { value: opts[idx].value, label: opts[idx].label };
}`

type selectOutcome struct {
	Error string `json:"error"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Select resolves a <select> and applies the requested option. The option
// string is matched value-first, then label, then as a zero-based index.
func (e *Engine) Select(ctx context.Context, req Request, option string) (*ActionResult, error) {
	started := time.Now()

	a, tried, err := e.resolveTarget(ctx, "select", req)
	if err != nil {
		return nil, failed(err, req, tried)
	}
	if !a.hasNode() {
		return nil, failed(browser.Errf(browser.KindSelectFailed, "select",
			"a coordinate target cannot choose an option"), req, tried)
	}

	if err := e.scrollIntoView(ctx, a); err != nil {
		return nil, failed(err, req, tried)
	}
	if err := e.checkEnabled(ctx, a, "select"); err != nil {
		return nil, failed(err, req, tried)
	}

	call := fmt.Sprintf(`function() { return (%s).call(this, %s); }`, selectDispatchJS, jsString(option))
	var out selectOutcome
	if err := e.callOnNode(ctx, a.objectID, call, &out, false); err != nil {
		return nil, failed(err, req, tried)
	}
	switch out.Error {
	case "":
	case "not_select":
		return nil, failed(browser.Errf(browser.KindSelectFailed, "select",
			"resolved element has no options").WithDescriptor(a.summary), req, tried)
	default:
		return nil, failed(browser.Errf(browser.KindSelectFailed, "select",
			"no option matched %q", option).WithDescriptor(a.summary), req, tried)
	}

	e.settle()
	res := e.result("select", a, started)
	res.SelectedValue = out.Value
	res.SelectedLabel = out.Label
	return res, nil
}
