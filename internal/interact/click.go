package interact

import (
	"context"
	"fmt"
	"time"
)

// clickDispatchJS dispatches the full human event sequence on `this`:
// hover, focus, press, release, click, with pauses between phases so
// framework listeners settle. The trailing native .click() catches handlers
// bound through onclick-style properties that ignore synthetic events.
const clickDispatchJS = `async function(minPause, maxPause) {
  const sleep = (ms) => new Promise((r) => setTimeout(r, ms));
  const pause = () => sleep(minPause + Math.random() * (maxPause - minPause));
  const el = this;
  const rect = el.getBoundingClientRect();
  const cx = rect.x + rect.width / 2;
  const cy = rect.y + rect.height / 2;
  const base = {
    bubbles: true, cancelable: true, composed: true,
    clientX: cx, clientY: cy, button: 0, view: window,
  };
  const scoped = Object.assign({}, base, { bubbles: false });

  el.dispatchEvent(new PointerEvent("pointerover", base));
  el.dispatchEvent(new PointerEvent("pointerenter", scoped));
  el.dispatchEvent(new MouseEvent("mouseover", base));
  el.dispatchEvent(new MouseEvent("mouseenter", scoped));
  await pause();

  const focusable = el.tabIndex >= 0 || el.isContentEditable ||
    ["INPUT", "TEXTAREA", "SELECT", "BUTTON", "A"].includes(el.tagName);
  if (focusable && typeof el.focus === "function") el.focus();
  await pause();

  el.dispatchEvent(new PointerEvent("pointerdown", base));
  el.dispatchEvent(new MouseEvent("mousedown", base));
  await pause();

  el.dispatchEvent(new PointerEvent("pointerup", base));
  el.dispatchEvent(new MouseEvent("mouseup", base));
  el.dispatchEvent(new MouseEvent("click", Object.assign({}, base, { detail: 1 })));
  if (typeof el.click === "function") el.click();
  return true;
}`

// Click resolves the request through the ladder and performs the click.
// Node tiers dispatch the synthetic sequence on the element; the coordinate
// tier drives native protocol input at the point.
func (e *Engine) Click(ctx context.Context, req Request) (*ActionResult, error) {
	started := time.Now()

	a, tried, err := e.resolveTarget(ctx, "click", req)
	if err != nil {
		return nil, failed(err, req, tried)
	}

	if !a.hasNode() {
		if err := e.nativeClick(ctx, a.cx, a.cy); err != nil {
			return nil, failed(err, req, tried)
		}
		e.settle()
		return e.result("click", a, started), nil
	}

	if err := e.scrollIntoView(ctx, a); err != nil {
		return nil, failed(err, req, tried)
	}

	release := e.applyHighlight(ctx, a)
	defer release()

	if err := e.checkEnabled(ctx, a, "click"); err != nil {
		return nil, failed(err, req, tried)
	}

	call := fmt.Sprintf(`function() { return (%s).call(this, 20, 60); }`, clickDispatchJS)
	var ok bool
	if err := e.callOnNode(ctx, a.objectID, call, &ok, true); err != nil {
		return nil, failed(err, req, tried)
	}

	e.settle()
	return e.result("click", a, started), nil
}
