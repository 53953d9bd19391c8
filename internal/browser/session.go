package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/pagepilot/pagepilot/internal/logging"
)

// Session is one attached protocol connection to one page target. All page
// traffic for that tab flows through it: script evaluation, typed protocol
// actions, and raw commands. Operations are sequential; callers serialize
// per tab.
type Session struct {
	targetID  target.ID
	allocCtx  context.Context
	allocStop context.CancelFunc
	tabCtx    context.Context
	tabStop   context.CancelFunc

	audit *auditLogger
	log   logging.Logger
}

// HandlerContext bundles what an operation handler needs: the session and
// the identity of the tab it drives. Pass by value.
type HandlerContext struct {
	Session  *Session
	TargetID string
}

// NewHandlerContext builds the bundle for a session.
func NewHandlerContext(s *Session) HandlerContext {
	return HandlerContext{Session: s, TargetID: s.TargetID()}
}

// Attach connects to an already-open page target behind the given DevTools
// endpoint (e.g. http://127.0.0.1:9222). The target must exist; PagePilot
// never creates or navigates tabs.
func Attach(ctx context.Context, endpointURL, targetID string) (*Session, error) {
	wsURL, err := debuggerURL(ctx, endpointURL)
	if err != nil {
		return nil, Errf(KindProtocol, "attach", "endpoint %s unreachable", endpointURL).WithCause(err)
	}

	allocCtx, allocStop := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	tabCtx, tabStop := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(targetID)))

	s := &Session{
		targetID:  target.ID(targetID),
		allocCtx:  allocCtx,
		allocStop: allocStop,
		tabCtx:    tabCtx,
		tabStop:   tabStop,
		audit:     newAuditLogger(),
		log:       logging.For("session"),
	}

	attachCtx, cancel := context.WithTimeout(tabCtx, DefaultAttachTimeout)
	defer cancel()
	if err := chromedp.Run(attachCtx); err != nil {
		s.Close()
		return nil, Errf(KindProtocol, "attach", "could not attach to target %s", truncateID(targetID)).WithCause(err)
	}

	s.log.Infof("attached to target %s via %s", truncateID(targetID), endpointURL)
	return s, nil
}

// TargetID returns the attached tab's target id.
func (s *Session) TargetID() string {
	return string(s.targetID)
}

// Alive probes the connection with a no-op run.
func (s *Session) Alive() bool {
	probeCtx, cancel := context.WithTimeout(s.tabCtx, 2*time.Second)
	defer cancel()
	return chromedp.Run(probeCtx) == nil
}

// Close tears down the target and allocator contexts.
func (s *Session) Close() {
	if s.tabStop != nil {
		s.tabStop()
	}
	if s.allocStop != nil {
		s.allocStop()
	}
}

// opContext derives a run context from the session's tab context, bounded by
// the caller's deadline when one is set, else DefaultEvaluateTimeout. The
// caller's ctx cannot carry the protocol executor, so cancellation is
// deadline-based only: operations are not cancellable mid-flight.
func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := DefaultEvaluateTimeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}
	return context.WithTimeout(s.tabCtx, timeout)
}

// Evaluate runs a page script and unmarshals its by-value result into out.
// Pass nil to discard the result.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	s.audit.command("Runtime.evaluate", s.TargetID())
	runCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, out)); err != nil {
		return Errf(KindProtocol, "evaluate", "page script failed").WithCause(sanitize(err))
	}
	return nil
}

// EvaluateAsync is Evaluate for expressions that resolve a promise.
func (s *Session) EvaluateAsync(ctx context.Context, expr string, out any) error {
	s.audit.command("Runtime.evaluate", s.TargetID())
	runCtx, cancel := s.opContext(ctx)
	defer cancel()
	action := chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
	if err := chromedp.Run(runCtx, action); err != nil {
		return Errf(KindProtocol, "evaluate", "page script failed").WithCause(sanitize(err))
	}
	return nil
}

// Run executes typed protocol actions on the session.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.opContext(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.audit.command("Page.captureScreenshot", s.TargetID())
	runCtx, cancel := s.opContext(ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, Errf(KindProtocol, "screenshot", "capture failed").WithCause(sanitize(err))
	}
	return buf, nil
}

// Send is the raw protocol escape hatch for commands the typed wrappers do
// not cover. params and result follow the method's protocol shapes; result
// may be nil.
func (s *Session) Send(ctx context.Context, method string, params, result any) error {
	s.audit.command(method, s.TargetID())
	runCtx, cancel := s.opContext(ctx)
	defer cancel()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, method, params, result)
	}))
	if err != nil {
		return Errf(KindProtocol, "send", "%s failed", method).WithCause(sanitize(err))
	}
	return nil
}

// AuditCommand records a typed protocol command in the audit log. Callers
// dispatching notable commands through Run use this so the audit trail stays
// complete.
func (s *Session) AuditCommand(method string) {
	s.audit.command(method, s.TargetID())
}

// sanitize strips anything payload-shaped from protocol errors before they
// are wrapped into an ActionError. Callers only ever see the summary.
func sanitize(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Errorf("%s", msg)
}
