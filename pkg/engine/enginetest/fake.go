// Package enginetest provides in-memory engine fakes for tests.
package enginetest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/pbs/pkg/engine"
)

// ErrClosed is returned by operations on a closed page or browser.
var ErrClosed = errors.New("target page, context or browser has been closed")

// Site is a fake web page served by a Page after navigation.
type Site struct {
	Title     string
	HTML      string
	Snapshot  string
	Selectors []string
}

// Connector is a fake engine.Connector. Endpoints listed in Reachable attach
// successfully; everything else fails with a connection refused error.
type Connector struct {
	mu sync.Mutex

	Reachable map[string]bool
	Sites     map[string]Site
	LaunchErr error

	Attempts []string
	Launches []engine.LaunchOptions
	Browsers []*Browser
}

// NewConnector creates a fake connector with example.com preloaded.
func NewConnector(reachable ...string) *Connector {
	c := &Connector{
		Reachable: make(map[string]bool),
		Sites: map[string]Site{
			"https://example.com/": {
				Title:     "Example Domain",
				HTML:      `<html><head><title>Example Domain</title></head><body><h1>Example Domain</h1><p>This domain is for use in illustrative examples.</p><a href="https://www.iana.org/domains/example">More information...</a></body></html>`,
				Snapshot:  "- heading \"Example Domain\" [level=1]\n- paragraph: This domain is for use in illustrative examples.\n- link \"More information...\":\n  - /url: https://www.iana.org/domains/example\n",
				Selectors: []string{"h1", "p", "a"},
			},
		},
	}
	for _, r := range reachable {
		c.Reachable[r] = true
	}
	return c
}

// ConnectOverCDP implements engine.Connector.
func (c *Connector) ConnectOverCDP(endpoint string, opts engine.ConnectOptions) (engine.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Attempts = append(c.Attempts, endpoint)
	if !c.Reachable[endpoint] {
		return nil, fmt.Errorf("connect ECONNREFUSED %s", endpoint)
	}
	b := c.newBrowserLocked()
	return b, nil
}

// Launch implements engine.Connector.
func (c *Connector) Launch(opts engine.LaunchOptions) (engine.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Attempts = append(c.Attempts, "launch")
	c.Launches = append(c.Launches, opts)
	if c.LaunchErr != nil {
		return nil, c.LaunchErr
	}
	return c.newBrowserLocked(), nil
}

// AttemptCount returns how many attach or launch attempts were made.
func (c *Connector) AttemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Attempts)
}

// BrowserCount returns how many browsers were handed out.
func (c *Connector) BrowserCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Browsers)
}

func (c *Connector) newBrowserLocked() *Browser {
	b := &Browser{sites: c.Sites, connected: true}
	c.Browsers = append(c.Browsers, b)
	return b
}

// Browser is a fake engine.Browser.
type Browser struct {
	mu        sync.Mutex
	sites     map[string]Site
	contexts  []*Context
	connected bool
	closed    bool

	// NewContextErr makes NewContext fail
	NewContextErr error
}

// AddContext adds a pre-existing browsing context holding one page per URL,
// as a user's running Chrome would have.
func (b *Browser) AddContext(urls ...string) *Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := &Context{browser: b}
	for _, u := range urls {
		p := ctx.newPageLocked()
		p.url = u
	}
	b.contexts = append(b.contexts, ctx)
	return ctx
}

// Contexts implements engine.Browser.
func (b *Browser) Contexts() []engine.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]engine.Context, 0, len(b.contexts))
	for _, c := range b.contexts {
		out = append(out, c)
	}
	return out
}

// ContextCount returns the number of browsing contexts.
func (b *Browser) ContextCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// NewContext implements engine.Browser.
func (b *Browser) NewContext(opts engine.ContextOptions) (engine.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.NewContextErr != nil {
		return nil, b.NewContextErr
	}
	ctx := &Context{browser: b, Viewport: opts.Viewport}
	b.contexts = append(b.contexts, ctx)
	return ctx, nil
}

// IsConnected implements engine.Browser.
func (b *Browser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && !b.closed
}

// Disconnect simulates the remote browser going away.
func (b *Browser) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// Close implements engine.Browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, c := range b.contexts {
		for _, p := range c.pages {
			p.closed = true
		}
	}
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Context is a fake engine.Context.
type Context struct {
	browser  *Browser
	pages    []*Page
	Viewport engine.Viewport
}

// Pages implements engine.Context, listing open pages only.
func (c *Context) Pages() []engine.Page {
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()

	out := make([]engine.Page, 0, len(c.pages))
	for _, p := range c.pages {
		if !p.closed {
			out = append(out, p)
		}
	}
	return out
}

// NewPage implements engine.Context.
func (c *Context) NewPage() (engine.Page, error) {
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()

	if c.browser.closed {
		return nil, ErrClosed
	}
	return c.newPageLocked(), nil
}

func (c *Context) newPageLocked() *Page {
	p := &Page{browser: c.browser, url: "about:blank", values: make(map[string]string)}
	c.pages = append(c.pages, p)
	return p
}

// Page is a fake engine.Page over the connector's sites.
type Page struct {
	browser *Browser

	url            string
	closed         bool
	values         map[string]string
	keys           []string
	defaultTimeout time.Duration
	onError        func(kind, message string)

	// EvaluateFunc overrides Evaluate
	EvaluateFunc func(expression string) (interface{}, error)
}

func (p *Page) site() (Site, bool) {
	s, ok := p.browser.sites[p.url]
	return s, ok
}

func (p *Page) check() error {
	if p.closed || p.browser.closed {
		return ErrClosed
	}
	if !p.browser.connected {
		return errors.New("browser has been disconnected")
	}
	return nil
}

func (p *Page) hasSelector(selector string) bool {
	s, ok := p.site()
	if !ok {
		return false
	}
	for _, candidate := range s.Selectors {
		if candidate == selector {
			return true
		}
	}
	return false
}

func (p *Page) selectorTimeout(selector string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = p.defaultTimeout
	}
	return fmt.Errorf("Timeout %dms exceeded.\nwaiting for locator(%q)", timeout.Milliseconds(), selector)
}

// Goto implements engine.Page. Known sites resolve with a trailing slash
// the way a real browser normalizes bare origins.
func (p *Page) Goto(url string, opts engine.NavigateOptions) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if !strings.HasSuffix(url, "/") && strings.Count(url, "/") == 2 {
		url += "/"
	}
	if _, ok := p.browser.sites[url]; !ok {
		return fmt.Errorf("navigation failed: net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	p.url = url
	return nil
}

// URL implements engine.Page.
func (p *Page) URL() string {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.url
}

// Title implements engine.Page.
func (p *Page) Title() (string, error) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return "", err
	}
	s, _ := p.site()
	return s.Title, nil
}

// Content implements engine.Page.
func (p *Page) Content() (string, error) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return "", err
	}
	s, ok := p.site()
	if !ok {
		return "<html><head></head><body></body></html>", nil
	}
	return s.HTML, nil
}

// Click implements engine.Page.
func (p *Page) Click(selector string, timeout time.Duration) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if !p.hasSelector(selector) {
		return p.selectorTimeout(selector, timeout)
	}
	return nil
}

// Fill implements engine.Page.
func (p *Page) Fill(selector, value string, timeout time.Duration) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if !p.hasSelector(selector) {
		return p.selectorTimeout(selector, timeout)
	}
	p.values[selector] = value
	return nil
}

// Type implements engine.Page.
func (p *Page) Type(selector, text string, timeout time.Duration) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if !p.hasSelector(selector) {
		return p.selectorTimeout(selector, timeout)
	}
	p.values[selector] += text
	return nil
}

// Press implements engine.Page.
func (p *Page) Press(selector, key string, timeout time.Duration) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if !p.hasSelector(selector) {
		return p.selectorTimeout(selector, timeout)
	}
	p.keys = append(p.keys, key)
	return nil
}

// WaitForSelector implements engine.Page.
func (p *Page) WaitForSelector(selector string, timeout time.Duration) error {
	return p.Click(selector, timeout)
}

// AriaSnapshot implements engine.Page.
func (p *Page) AriaSnapshot(timeout time.Duration) (string, error) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return "", err
	}
	s, _ := p.site()
	return s.Snapshot, nil
}

// Screenshot implements engine.Page by writing a placeholder file.
func (p *Page) Screenshot(path string, fullPage bool) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0600); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

// Evaluate implements engine.Page.
func (p *Page) Evaluate(expression string) (interface{}, error) {
	p.browser.mu.Lock()
	if err := p.check(); err != nil {
		p.browser.mu.Unlock()
		return nil, err
	}
	fn := p.EvaluateFunc
	title := ""
	if s, ok := p.site(); ok {
		title = s.Title
	}
	p.browser.mu.Unlock()

	if fn != nil {
		return fn(expression)
	}
	switch expression {
	case "document.title":
		return title, nil
	case "1 + 1":
		return float64(2), nil
	}
	return nil, fmt.Errorf("ReferenceError: %s is not defined", expression)
}

// SetDefaultTimeout implements engine.Page.
func (p *Page) SetDefaultTimeout(timeout time.Duration) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.defaultTimeout = timeout
}

// DefaultTimeout returns the last value passed to SetDefaultTimeout.
func (p *Page) DefaultTimeout() time.Duration {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.defaultTimeout
}

// OnError implements engine.Page.
func (p *Page) OnError(fn func(kind, message string)) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.onError = fn
}

// EmitError fires the registered error callback.
func (p *Page) EmitError(kind, message string) {
	p.browser.mu.Lock()
	fn := p.onError
	p.browser.mu.Unlock()
	if fn != nil {
		fn(kind, message)
	}
}

// Value returns what was filled or typed into selector.
func (p *Page) Value(selector string) string {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.values[selector]
}

// Keys returns the keys pressed so far.
func (p *Page) Keys() []string {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// IsClosed implements engine.Page.
func (p *Page) IsClosed() bool {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.closed || p.browser.closed
}

// Close implements engine.Page.
func (p *Page) Close() error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.closed = true
	return nil
}

var (
	_ engine.Connector = (*Connector)(nil)
	_ engine.Browser   = (*Browser)(nil)
	_ engine.Context   = (*Context)(nil)
	_ engine.Page      = (*Page)(nil)
)
