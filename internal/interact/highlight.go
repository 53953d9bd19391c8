package interact

import "context"

// Highlighting is a scoped resource: applyHighlight returns a release func
// that restores the element's prior styling, and every exit path of a
// dispatch, error paths included, must call it.

const applyHighlightJS = `function() {
  this.__pilotPrevOutline = this.style.outline;
  this.__pilotPrevOffset = this.style.outlineOffset;
  this.style.outline = "3px solid #4285f4";
  this.style.outlineOffset = "2px";
}`

const releaseHighlightJS = `function() {
  this.style.outline = this.__pilotPrevOutline || "";
  this.style.outlineOffset = this.__pilotPrevOffset || "";
  delete this.__pilotPrevOutline;
  delete this.__pilotPrevOffset;
}`

// applyHighlight outlines the target for observability. The release func
// never fails the interaction; a restore error is only logged.
func (e *Engine) applyHighlight(ctx context.Context, a *acquired) func() {
	if err := e.callOnNode(ctx, a.objectID, applyHighlightJS, nil, false); err != nil {
		e.log.Debugf("highlight skipped: %v", err)
		return func() {}
	}
	return func() {
		if err := e.callOnNode(ctx, a.objectID, releaseHighlightJS, nil, false); err != nil {
			e.log.Debugf("highlight restore failed: %v", err)
		}
	}
}
