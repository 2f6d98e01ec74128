// Package session owns the single engine/page pair of a pbs process.
//
// The engine handle is resolved lazily on first use and reused for the life
// of the process. The page handle is checked for liveness on every access
// and transparently replaced when it has been closed, without re-resolving
// the engine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/types"
)

// Resolver obtains a new engine handle.
type Resolver interface {
	Resolve(ctx context.Context) (engine.Browser, error)
}

// Options configures pages created by the manager.
type Options struct {
	// Viewport of newly created browsing contexts
	Viewport engine.Viewport

	// DefaultTimeout applied to every acquired page
	DefaultTimeout time.Duration
}

// State is a snapshot of the manager's handles.
type State struct {
	Engine      bool `json:"engine"`
	Page        bool `json:"page"`
	Resolutions int  `json:"resolutions"`
}

// Manager holds at most one engine handle and one page handle.
// Invariant: page is non-nil only if browser is non-nil.
type Manager struct {
	mu       sync.Mutex
	resolver Resolver
	opts     Options
	logger   *logging.Logger

	browser     engine.Browser
	page        engine.Page
	resolutions int
}

// NewManager creates a manager that resolves engines through resolver.
func NewManager(resolver Resolver, opts Options, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		resolver: resolver,
		opts:     opts,
		logger:   logger,
	}
}

// Ensure returns the current engine and page handles, creating whichever
// is missing or stale.
func (m *Manager) Ensure(ctx context.Context) (engine.Browser, engine.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	browser, err := m.browserLocked(ctx)
	if err != nil {
		return nil, nil, err
	}

	if m.page != nil && !m.page.IsClosed() {
		return browser, m.page, nil
	}
	if m.page != nil {
		m.logger.Infof("Page was closed, acquiring a new one")
		m.page = nil
	}

	page, err := m.acquirePage(browser)
	if err != nil {
		return nil, nil, err
	}
	m.page = page
	return browser, page, nil
}

// CurrentPage returns a live page, replacing a closed one if needed.
// Callers must not hold on to the returned handle across commands.
func (m *Manager) CurrentPage(ctx context.Context) (engine.Page, error) {
	_, page, err := m.Ensure(ctx)
	return page, err
}

// browserLocked returns the cached engine handle, resolving a new one when
// there is none or the cached connection has been lost.
func (m *Manager) browserLocked(ctx context.Context) (engine.Browser, error) {
	if m.browser != nil {
		if m.browser.IsConnected() {
			return m.browser, nil
		}
		m.logger.Warnf("Browser connection lost, resolving a new endpoint")
		_ = m.browser.Close()
		m.browser = nil
		m.page = nil
	}

	browser, err := m.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	m.resolutions++
	m.browser = browser
	return browser, nil
}

// acquirePage prefers the first open page of the first existing browsing
// context, which is the user's tab when attached to a running browser.
// Otherwise it creates a new context with the configured viewport.
func (m *Manager) acquirePage(browser engine.Browser) (engine.Page, error) {
	var page engine.Page

	if contexts := browser.Contexts(); len(contexts) > 0 {
		for _, p := range contexts[0].Pages() {
			if !p.IsClosed() {
				page = p
				m.logger.Debugf("Reusing existing page %s", p.URL())
				break
			}
		}
	}

	if page == nil {
		bctx, err := browser.NewContext(engine.ContextOptions{Viewport: m.opts.Viewport})
		if err != nil {
			return nil, &types.SessionError{Op: "new context", Err: err}
		}
		page, err = bctx.NewPage()
		if err != nil {
			return nil, &types.SessionError{Op: "new page", Err: err}
		}
		m.logger.Debugf("Created new page (%dx%d)", m.opts.Viewport.Width, m.opts.Viewport.Height)
	}

	if m.opts.DefaultTimeout > 0 {
		page.SetDefaultTimeout(m.opts.DefaultTimeout)
	}
	page.OnError(func(kind, message string) {
		switch kind {
		case "console":
			m.logger.Warnf("[Browser Console Error]: %s", message)
		default:
			m.logger.Warnf("[Page Error]: %s", message)
		}
	})

	return page, nil
}

// ClosePage closes the current page only. The engine handle is kept and
// the next command acquires a new page.
func (m *Manager) ClosePage() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return nil
	}
	page := m.page
	m.page = nil

	if page.IsClosed() {
		return nil
	}
	if err := page.Close(); err != nil {
		return &types.SessionError{Op: "close page", Err: err}
	}
	return nil
}

// Terminate closes the engine handle and clears both handles.
// Terminating an already terminated session is a no-op.
func (m *Manager) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	browser := m.browser
	m.browser = nil
	m.page = nil

	if browser == nil {
		return nil
	}
	if err := browser.Close(); err != nil {
		m.logger.Warnf("Error closing browser: %v", err)
		return &types.SessionError{Op: "close browser", Err: err}
	}
	m.logger.Infof("Browser session terminated")
	return nil
}

// State reports which handles are held. It never creates a session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Engine:      m.browser != nil,
		Page:        m.page != nil && !m.page.IsClosed(),
		Resolutions: m.resolutions,
	}
}
