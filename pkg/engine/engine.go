// Package engine defines the automation engine capability the session
// server drives, and its Playwright implementation.
//
// The rest of pbs only sees the Browser, Context and Page interfaces, so the
// resolver, session manager and dispatcher can be exercised against fakes
// while production code attaches to a real Chromium over CDP.
package engine

import (
	"time"
)

// Browser is a live connection to one engine instance (the engine handle).
type Browser interface {
	// Contexts lists the browsing contexts that already exist.
	Contexts() []Context

	// NewContext creates an isolated browsing context.
	NewContext(opts ContextOptions) (Context, error)

	// IsConnected reports whether the underlying connection is alive.
	IsConnected() bool

	// Close closes the connection (and the browser, if it was launched).
	Close() error
}

// Context is one browsing context within a Browser.
type Context interface {
	// Pages lists the pages open in this context.
	Pages() []Page

	// NewPage opens a blank page in this context.
	NewPage() (Page, error)
}

// Page is one controllable document (the page handle).
type Page interface {
	Goto(url string, opts NavigateOptions) error
	URL() string
	Title() (string, error)
	Content() (string, error)

	Click(selector string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Type(selector, text string, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error

	// AriaSnapshot returns the accessibility tree of the page as YAML.
	AriaSnapshot(timeout time.Duration) (string, error)

	// Screenshot writes an image of the page to path.
	Screenshot(path string, fullPage bool) error

	// Evaluate runs an expression or function body in the page and
	// returns its JSON-compatible result.
	Evaluate(expression string) (interface{}, error)

	SetDefaultTimeout(timeout time.Duration)

	// OnError registers a callback for console errors and uncaught page errors.
	OnError(fn func(kind, message string))

	IsClosed() bool
	Close() error
}

// Connector attaches to or launches engine instances.
type Connector interface {
	// ConnectOverCDP attaches to an existing browser at a CDP endpoint,
	// either an http:// discovery address or a ws:// debugger URL.
	ConnectOverCDP(endpoint string, opts ConnectOptions) (Browser, error)

	// Launch starts a new local browser instance.
	Launch(opts LaunchOptions) (Browser, error)
}

// ConnectOptions configures a CDP attach.
type ConnectOptions struct {
	// Timeout bounds the attach (0 means the engine default)
	Timeout time.Duration

	// Headers are sent with the connection request
	Headers map[string]string
}

// LaunchOptions configures a launched browser.
type LaunchOptions struct {
	Headless bool
	Args     []string
}

// ContextOptions configures a new browsing context.
type ContextOptions struct {
	Viewport Viewport
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// WaitUntil names the navigation milestone Goto waits for.
type WaitUntil string

const (
	WaitUntilLoad             WaitUntil = "load"             // WaitUntilLoad waits for the load event.
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded" // WaitUntilDOMContentLoaded waits for DOMContentLoaded.
	WaitUntilNetworkIdle      WaitUntil = "networkidle"      // WaitUntilNetworkIdle waits until the network has been idle for 500ms.
)

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	WaitUntil WaitUntil

	// Timeout (0 means the page default)
	Timeout time.Duration
}
