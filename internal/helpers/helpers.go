// Package helpers is the step-facing interaction library: each helper is a
// thin composition over one or two driver calls on the run's session.
package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/internal/session"
	"github.com/shehryarbajwa/cukebrowser/internal/wait"
)

// ErrNotFound is returned when no element matches.
var ErrNotFound = errors.New("element not found")

// Helpers binds the interaction library to one session and wait engine.
type Helpers struct {
	session driver.Session
	engine  *wait.Engine
}

// New returns helpers operating on s.
func New(s driver.Session, engine *wait.Engine) *Helpers {
	if engine == nil {
		engine = wait.NewEngine(wait.DefaultTimeout)
	}
	return &Helpers{session: s, engine: engine}
}

// Session returns the bound session.
func (h *Helpers) Session() driver.Session { return h.session }

// LoadPage navigates the active window to url.
func (h *Helpers) LoadPage(ctx context.Context, url string) error {
	if err := h.session.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// AttributeValue returns the attribute of the first element matching
// selector, and whether it is present.
func (h *Helpers) AttributeValue(ctx context.Context, selector, attr string) (string, bool, error) {
	return h.session.Attribute(ctx, selector, attr)
}

// Element locates one node among the matches of a selector.
type Element struct {
	Selector string
	// Index is the node's position in document.querySelectorAll(Selector).
	Index int
	Text  string
}

// nonRendered matches nodes whose text never reaches the screen. Visibility
// set by stylesheets is not known from the markup alone.
const nonRendered = `script, style, template, noscript, head, [hidden], [style*="display:none"], [style*="display: none"]`

// FirstElementContainingText finds the first element matching selector, in
// document order, whose rendered text contains text. It reads the page HTML,
// so text hidden only by stylesheets still counts; ClickElementContainingText
// matches against the live innerText instead.
func (h *Helpers) FirstElementContainingText(ctx context.Context, selector, text string) (*Element, error) {
	html, err := h.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	want := normalizeSpace(text)
	var found *Element
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Is(nonRendered) || s.ParentsFiltered(nonRendered).Length() > 0 {
			return true
		}
		got := renderedText(s)
		if strings.Contains(got, want) {
			found = &Element{Selector: selector, Index: i, Text: got}
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %q containing %q", ErrNotFound, selector, text)
	}
	return found, nil
}

// renderedText is the normalized text of s without non-rendered descendants.
func renderedText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find(nonRendered).Remove()
	return normalizeSpace(c.Text())
}

// ClickElementContainingText clicks the first element matching selector whose
// innerText contains text. Matching and clicking happen in one script so the
// element clicked is the one matched on the live page.
func (h *Helpers) ClickElementContainingText(ctx context.Context, selector, text string) error {
	_, err := h.eval(ctx, clickTextScript(selector, normalizeSpace(text)))
	return err
}

// SelectDropdownValue picks the option of the select element matching
// selector whose value or visible text equals value, firing input and change.
func (h *Helpers) SelectDropdownValue(ctx context.Context, selector, value string) error {
	_, err := h.eval(ctx, selectScript(selector, value))
	return err
}

// PseudoElementContent returns the computed content of a pseudo-element such
// as "::before", unquoted. An element without content yields "".
func (h *Helpers) PseudoElementContent(ctx context.Context, selector, pseudo string) (string, error) {
	value, err := h.eval(ctx, pseudoContentScript(selector, pseudo))
	if err != nil {
		return "", err
	}
	return unquoteContent(value), nil
}

// ScrollIntoView centres the first element matching selector.
func (h *Helpers) ScrollIntoView(ctx context.Context, selector string) error {
	_, err := h.eval(ctx, scrollScript(selector))
	return err
}

// ClearCookiesAndStorages wipes cookies plus local and session storage.
func (h *Helpers) ClearCookiesAndStorages(ctx context.Context) error {
	return session.ClearState(ctx, h.session)
}

// WindowHandles lists the open windows.
func (h *Helpers) WindowHandles(ctx context.Context) ([]string, error) {
	return h.session.WindowHandles(ctx)
}

// WaitUntilAttributeEquals waits on the bound session; a zero timeout uses
// the engine default.
func (h *Helpers) WaitUntilAttributeEquals(ctx context.Context, selector, attr, value string, timeout time.Duration) error {
	return wait.WaitUntilAttributeEquals(ctx, h.engine, h.session, selector, attr, value, timeout)
}

func (h *Helpers) WaitUntilAttributeExists(ctx context.Context, selector, attr string, timeout time.Duration) error {
	return wait.WaitUntilAttributeExists(ctx, h.engine, h.session, selector, attr, timeout)
}

func (h *Helpers) WaitUntilAttributeDoesNotExist(ctx context.Context, selector, attr string, timeout time.Duration) error {
	return wait.WaitUntilAttributeDoesNotExist(ctx, h.engine, h.session, selector, attr, timeout)
}

// WaitForNewWindows returns the window handles once a second window opens,
// or nil after timeout.
func (h *Helpers) WaitForNewWindows(ctx context.Context, timeout time.Duration) []string {
	if timeout <= 0 {
		timeout = h.engine.DefaultTimeout()
	}
	return wait.WaitForNewWindows(ctx, h.session, timeout)
}

// WaitForText waits until an element matching selector contains text.
func (h *Helpers) WaitForText(ctx context.Context, selector, text string, timeout time.Duration) (*Element, error) {
	timeout = positiveOr(timeout, h.engine.DefaultTimeout())
	return wait.Until(ctx, h.engine, h.session, wait.Descriptor[*Element]{
		Predicate: func(ctx context.Context, _ driver.Session) (*Element, bool, error) {
			el, err := h.FirstElementContainingText(ctx, selector, text)
			if errors.Is(err, ErrNotFound) {
				return nil, false, nil
			}
			return el, err == nil, err
		},
		Timeout: timeout,
		Message: fmt.Sprintf("waiting for %q containing %q timed out after %dms",
			selector, text, timeout.Milliseconds()),
	})
}

func (h *Helpers) eval(ctx context.Context, script string) (string, error) {
	var res scriptResult
	if err := h.session.Evaluate(ctx, script, &res); err != nil {
		return "", err
	}
	if !res.OK {
		return "", fmt.Errorf("%w: %s", ErrNotFound, res.Reason)
	}
	return res.Value, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func unquoteContent(v string) string {
	v = strings.TrimSpace(v)
	if v == "none" || v == "normal" {
		return ""
	}
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
