package locator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDescriptor = errors.New("invalid locator descriptor")

// Strategy tells the driver how to interpret Handle.Query.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	// StrategyJS queries are expressions evaluating to an Element or null.
	StrategyJS Strategy = "js"
)

// Handle is a resolved, driver-ready query for a single element.
type Handle struct {
	Strategy Strategy
	Query    string
	Desc     string
}

func (h Handle) String() string {
	return h.Desc
}

// ElementJS returns a JavaScript expression yielding the first matching
// element, or null.
func (h Handle) ElementJS() string {
	switch h.Strategy {
	case StrategyXPath:
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", strconv.Quote(h.Query))
	case StrategyJS:
		return h.Query
	default:
		return fmt.Sprintf("document.querySelector(%s)", strconv.Quote(h.Query))
	}
}

// Resolve turns d into a Handle. It has no side effects and the result is a
// pure function of d.
func Resolve(d Descriptor) (Handle, error) {
	desc := Describe(d)
	switch d.Kind {
	case KindRaw:
		if strings.TrimSpace(d.Value) == "" {
			return Handle{}, fmt.Errorf("%w: empty raw selector", ErrInvalidDescriptor)
		}
		return Handle{Strategy: rawStrategy(d.Value), Query: d.Value, Desc: desc}, nil
	case KindCSS:
		if d.Value == "" {
			return Handle{}, fmt.Errorf("%w: css descriptor without value", ErrInvalidDescriptor)
		}
		return Handle{Strategy: StrategyCSS, Query: d.Value, Desc: desc}, nil
	case KindTestID:
		if d.Value == "" {
			return Handle{}, fmt.Errorf("%w: testId descriptor without value", ErrInvalidDescriptor)
		}
		return Handle{Strategy: StrategyCSS, Query: fmt.Sprintf("[data-testid=%s]", strconv.Quote(d.Value)), Desc: desc}, nil
	case KindRole:
		if d.Role == "" {
			return Handle{}, fmt.Errorf("%w: role descriptor without role", ErrInvalidDescriptor)
		}
		return jsHandle(roleQueryJS, d, desc)
	case KindText:
		if d.Value == "" {
			return Handle{}, fmt.Errorf("%w: text descriptor without value", ErrInvalidDescriptor)
		}
		return jsHandle(textQueryJS, d, desc)
	case KindLabel:
		if d.Value == "" {
			return Handle{}, fmt.Errorf("%w: label descriptor without value", ErrInvalidDescriptor)
		}
		return jsHandle(labelQueryJS, d, desc)
	default:
		return Handle{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, d.Kind)
	}
}

// MustResolve panics on invalid descriptors. Only for static catalogs.
func MustResolve(d Descriptor) Handle {
	h, err := Resolve(d)
	if err != nil {
		panic(err)
	}
	return h
}

func rawStrategy(sel string) Strategy {
	s := strings.TrimSpace(sel)
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") {
		return StrategyXPath
	}
	return StrategyCSS
}

type querySpec struct {
	Role  string `json:"role,omitempty"`
	Value string `json:"value"`
	Exact bool   `json:"exact"`
}

func jsHandle(body string, d Descriptor, desc string) (Handle, error) {
	spec, err := json.Marshal(querySpec{Role: d.Role, Value: d.Value, Exact: d.Exact})
	if err != nil {
		return Handle{}, fmt.Errorf("encode %s: %w", desc, err)
	}
	return Handle{
		Strategy: StrategyJS,
		Query:    fmt.Sprintf("((q) => {%s%s})(%s)", jsHelpers, body, spec),
		Desc:     desc,
	}, nil
}

const jsHelpers = `
const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
const matches = (got, want) => q.exact ? norm(got) === norm(want) : norm(got).toLowerCase().includes(norm(want).toLowerCase());
const labelText = (el) => {
  if (el.getAttribute('aria-label')) return el.getAttribute('aria-label');
  const by = el.getAttribute('aria-labelledby');
  if (by) return by.split(/\s+/).map((id) => { const n = document.getElementById(id); return n ? n.textContent : ''; }).join(' ');
  if (el.labels && el.labels.length) return el.labels[0].textContent;
  if (el.tagName === 'INPUT' && ['button', 'submit', 'reset'].includes(el.type)) return el.value;
  if (el.tagName === 'IMG') return el.alt;
  return el.textContent;
};
`

const roleQueryJS = `
const implicit = {
  A: (el) => el.hasAttribute('href') ? 'link' : '',
  BUTTON: () => 'button',
  H1: () => 'heading', H2: () => 'heading', H3: () => 'heading', H4: () => 'heading', H5: () => 'heading', H6: () => 'heading',
  IMG: () => 'img',
  LI: () => 'listitem',
  UL: () => 'list', OL: () => 'list',
  NAV: () => 'navigation',
  MAIN: () => 'main',
  DIALOG: () => 'dialog',
  SELECT: () => 'combobox',
  TEXTAREA: () => 'textbox',
  TABLE: () => 'table',
  INPUT: (el) => ({ button: 'button', submit: 'button', reset: 'button', checkbox: 'checkbox', radio: 'radio', search: 'searchbox' }[el.type] || 'textbox'),
};
const roleOf = (el) => {
  const explicit = el.getAttribute('role');
  if (explicit) return explicit.split(/\s+/)[0];
  const f = implicit[el.tagName];
  return f ? f(el) : '';
};
for (const el of document.querySelectorAll('*')) {
  if (roleOf(el) !== q.role) continue;
  if (!q.value || matches(labelText(el), q.value)) return el;
}
return null;
`

const textQueryJS = `
let found = null;
for (const el of document.body ? document.body.querySelectorAll('*') : []) {
  if (['SCRIPT', 'STYLE', 'NOSCRIPT'].includes(el.tagName)) continue;
  if (!matches(el.textContent, q.value)) continue;
  if (found === null || found.contains(el)) found = el;
}
return found;
`

const labelQueryJS = `
for (const label of document.querySelectorAll('label')) {
  if (!matches(label.textContent, q.value)) continue;
  if (label.control) return label.control;
}
for (const el of document.querySelectorAll('[aria-label]')) {
  if (matches(el.getAttribute('aria-label'), q.value)) return el;
}
return null;
`
