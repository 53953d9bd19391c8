package finder

import (
	"encoding/json"
	"fmt"
)

// MarkerAttr is stamped on every collected candidate so the winner can be
// re-found by selector after scoring, without trusting page-assigned ids.
const MarkerAttr = "data-pilot-ref"

// broadenSelector is the fixed interactive set searched when the requested
// tag matches nothing but text was supplied.
const broadenSelector = `button, a, input, textarea, label, span, div, [role="button"], [role="link"]`

// maxModalDepth bounds the ancestor walk for modal containment.
const maxModalDepth = 10

// candidateTextLimit caps captured innerText.
const candidateTextLimit = 200

// jsonString renders s as a JS string literal. All descriptor values enter
// the page script through this, never by concatenation.
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// buildCandidateScript produces the single in-page call that collects every
// candidate for the descriptor: query, text filter, capture, and marker
// stamping in one round trip. The script returns a JSON array string.
func buildCandidateScript(d Descriptor) string {
	return fmt.Sprintf(`(() => {
  const tag = %s;
  const needle = %s.toLowerCase();
  const marker = %s;
  const broaden = %s;
  const limit = %d;
  const modalDepth = %d;

  document.querySelectorAll('[' + marker + ']').forEach((el) => el.removeAttribute(marker));

  let els = [];
  if (tag) {
    try { els = Array.from(document.querySelectorAll(tag)); } catch (e) { els = []; }
  }
  if (els.length === 0 && needle) {
    els = Array.from(document.querySelectorAll(broaden));
  }

  if (needle) {
    els = els.filter((el) => {
      const fields = [
        el.innerText,
        el.getAttribute('aria-label'),
        el.getAttribute('placeholder'),
        el.getAttribute('title'),
        el.value,
      ];
      for (const f of fields) {
        if (typeof f === 'string' && f.toLowerCase().includes(needle)) return true;
      }
      return false;
    });
  }

  const inModal = (el) => {
    let node = el.parentElement;
    for (let i = 0; i < modalDepth && node; i++, node = node.parentElement) {
      const role = node.getAttribute('role');
      if (role === 'dialog' || role === 'alertdialog') return true;
      if (node.getAttribute('aria-modal') === 'true') return true;
      const cls = typeof node.className === 'string' ? node.className : '';
      const hint = (cls + ' ' + (node.id || '')).toLowerCase();
      if (/modal|dialog|overlay|popup/.test(hint)) {
        const z = parseInt(getComputedStyle(node).zIndex, 10);
        if (!isNaN(z) && z > 50) return true;
      }
    }
    return false;
  };

  const out = [];
  let ref = 0;
  for (const el of els) {
    const rect = el.getBoundingClientRect();
    const style = getComputedStyle(el);
    const visible = rect.width > 0 && rect.height > 0 &&
      style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
    const inViewport = rect.bottom > 0 && rect.right > 0 &&
      rect.top < window.innerHeight && rect.left < window.innerWidth;

    const attrs = {};
    for (const a of el.attributes) attrs[a.name] = a.value;

    let text = (el.innerText || '').trim();
    if (text.length > limit) text = text.slice(0, limit);

    let sib = 0;
    for (let prev = el.previousElementSibling; prev; prev = prev.previousElementSibling) sib++;

    el.setAttribute(marker, String(ref));
    out.push({
      ref: ref,
      tag: el.tagName.toLowerCase(),
      text: text,
      attrs: attrs,
      box: { x: rect.x, y: rect.y, w: rect.width, h: rect.height },
      visible: visible,
      inViewport: inViewport,
      inModal: inModal(el),
      siblingIndex: sib,
    });
    ref++;
  }
  return JSON.stringify(out);
})()`,
		jsonString(d.Tag),
		jsonString(d.Text),
		jsonString(MarkerAttr),
		jsonString(broadenSelector),
		candidateTextLimit,
		maxModalDepth,
	)
}
