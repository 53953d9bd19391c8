package interact

import (
	"context"
	"runtime"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// Key codes dispatched through the protocol keyboard.
const (
	keyEnter  = "\r"
	keyDelete = "\ue017"
)

// selectAllModifier is the platform select-all chord modifier. The local OS
// is the best available guess for the browser's host.
func selectAllModifier() input.Modifier {
	if runtime.GOOS == "darwin" {
		return input.ModifierMeta
	}
	return input.ModifierCtrl
}

// nativeClick drives a protocol-level press at the point: moved, pressed,
// released, with human pacing. This is the coordinate tier's click; the page
// cannot tell it from real mouse input.
func (e *Engine) nativeClick(ctx context.Context, x, y float64) error {
	e.hctx.Session.AuditCommand("Input.dispatchMouseEvent")

	step := func(c context.Context, p *input.DispatchMouseEventParams) error {
		return p.Do(c)
	}

	err := e.hctx.Session.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		if err := step(c, input.DispatchMouseEvent(input.MouseMoved, x, y)); err != nil {
			return err
		}
		e.phasePause()
		press := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		if err := step(c, press); err != nil {
			return err
		}
		e.phasePause()
		release := input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		return step(c, release)
	}))
	if err != nil {
		return browser.Errf(browser.KindClickFailed, "click",
			"native input dispatch failed").WithCause(err)
	}
	return nil
}

// typeRunes sends one key-down/key-up pair per character. Bulk value
// assignment is never used: per-keystroke events are what controlled-input
// frameworks listen for.
func (e *Engine) typeRunes(ctx context.Context, text string) (string, error) {
	e.hctx.Session.AuditCommand("Input.dispatchKeyEvent")

	typed := ""
	for _, r := range text {
		ch := string(r)
		if err := e.hctx.Session.Run(ctx, chromedp.KeyEvent(ch)); err != nil {
			// The partial input is already committed to the page; surface
			// it rather than retrying, which would double-type.
			return typed, browser.Errf(browser.KindTypeFailed, "type",
				"keystroke failed, typed %q so far", typed).WithCause(err)
		}
		typed += ch
		e.keyPause()
	}
	return typed, nil
}

// pressKey sends one special key, optionally with modifiers.
func (e *Engine) pressKey(ctx context.Context, key string, mods ...input.Modifier) error {
	e.hctx.Session.AuditCommand("Input.dispatchKeyEvent")

	var opts []chromedp.KeyOption
	for _, m := range mods {
		opts = append(opts, chromedp.KeyModifiers(m))
	}
	return e.hctx.Session.Run(ctx, chromedp.KeyEvent(key, opts...))
}

// keyPause jitters around the configured per-key delay.
func (e *Engine) keyPause() {
	base := e.cfg.keyDelay()
	lo := base / 2
	if lo < 1 {
		lo = 1
	}
	sleepMS(lo, base+base/2)
}
