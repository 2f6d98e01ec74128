package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Playwright is a Connector backed by a Playwright driver. The driver is
// installed and started lazily on first use.
type Playwright struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	skipBrowser bool
}

// NewPlaywright creates a Playwright connector. When installBrowsers is
// false only the driver is installed, which is enough to attach over CDP
// but not to launch a local browser.
func NewPlaywright(installBrowsers bool) *Playwright {
	return &Playwright{skipBrowser: !installBrowsers}
}

// start installs and runs the Playwright driver once.
func (p *Playwright) start() (*playwright.Playwright, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw != nil {
		return p.pw, nil
	}

	// Driver output would corrupt the stdout result stream
	opts := &playwright.RunOptions{
		Browsers:            []string{"chromium"},
		SkipInstallBrowsers: p.skipBrowser,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	p.pw = pw
	return pw, nil
}

// ConnectOverCDP implements Connector.
func (p *Playwright) ConnectOverCDP(endpoint string, opts ConnectOptions) (Browser, error) {
	pw, err := p.start()
	if err != nil {
		return nil, err
	}

	cdpOpts := playwright.BrowserTypeConnectOverCDPOptions{}
	if opts.Timeout > 0 {
		cdpOpts.Timeout = millis(opts.Timeout)
	}
	if len(opts.Headers) > 0 {
		cdpOpts.Headers = opts.Headers
	}

	browser, err := pw.Chromium.ConnectOverCDP(endpoint, cdpOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect over CDP: %w", err)
	}
	return &pwBrowser{browser: browser}, nil
}

// Launch implements Connector.
func (p *Playwright) Launch(opts LaunchOptions) (Browser, error) {
	pw, err := p.start()
	if err != nil {
		return nil, err
	}

	headless := opts.Headless
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
		Args:     opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return &pwBrowser{browser: browser}, nil
}

// Stop shuts the Playwright driver down.
func (p *Playwright) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw == nil {
		return nil
	}
	if err := p.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	p.pw = nil
	return nil
}

// millis converts a duration to the millisecond float Playwright expects.
func millis(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}

type pwBrowser struct {
	browser playwright.Browser
}

func (b *pwBrowser) Contexts() []Context {
	contexts := b.browser.Contexts()
	out := make([]Context, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, &pwContext{context: c})
	}
	return out
}

func (b *pwBrowser) NewContext(opts ContextOptions) (Context, error) {
	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		contextOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}

	context, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	return &pwContext{context: context}, nil
}

func (b *pwBrowser) IsConnected() bool {
	return b.browser.IsConnected()
}

func (b *pwBrowser) Close() error {
	return b.browser.Close()
}

type pwContext struct {
	context playwright.BrowserContext
}

func (c *pwContext) Pages() []Page {
	pages := c.context.Pages()
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, &pwPage{page: p})
	}
	return out
}

func (c *pwContext) NewPage() (Page, error) {
	page, err := c.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &pwPage{page: page}, nil
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(url string, opts NavigateOptions) error {
	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = millis(opts.Timeout)
	}

	if _, err := p.page.Goto(url, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Title() (string, error) {
	return p.page.Title()
}

func (p *pwPage) Content() (string, error) {
	return p.page.Content()
}

func (p *pwPage) Click(selector string, timeout time.Duration) error {
	opts := playwright.PageClickOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	return p.page.Click(selector, opts)
}

func (p *pwPage) Fill(selector, value string, timeout time.Duration) error {
	opts := playwright.PageFillOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	return p.page.Fill(selector, value, opts)
}

func (p *pwPage) Type(selector, text string, timeout time.Duration) error {
	opts := playwright.PageTypeOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	return p.page.Type(selector, text, opts)
}

func (p *pwPage) Press(selector, key string, timeout time.Duration) error {
	opts := playwright.PagePressOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	return p.page.Press(selector, key, opts)
}

func (p *pwPage) WaitForSelector(selector string, timeout time.Duration) error {
	opts := playwright.PageWaitForSelectorOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	_, err := p.page.WaitForSelector(selector, opts)
	return err
}

func (p *pwPage) AriaSnapshot(timeout time.Duration) (string, error) {
	opts := playwright.LocatorAriaSnapshotOptions{}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	return p.page.Locator("body").AriaSnapshot(opts)
}

func (p *pwPage) Screenshot(path string, fullPage bool) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     &path,
		FullPage: &fullPage,
	})
	return err
}

func (p *pwPage) Evaluate(expression string) (interface{}, error) {
	return p.page.Evaluate(expression)
}

func (p *pwPage) SetDefaultTimeout(timeout time.Duration) {
	p.page.SetDefaultTimeout(*millis(timeout))
}

func (p *pwPage) OnError(fn func(kind, message string)) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			fn("console", msg.Text())
		}
	})
	p.page.OnPageError(func(err error) {
		fn("page", err.Error())
	})
}

func (p *pwPage) IsClosed() bool {
	return p.page.IsClosed()
}

func (p *pwPage) Close() error {
	return p.page.Close()
}
