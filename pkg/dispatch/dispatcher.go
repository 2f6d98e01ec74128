// Package dispatch maps command names to engine operations and turns every
// outcome into a result envelope.
//
// A Dispatcher owns the session manager it was built with and executes one
// command at a time. Failures of any kind, including panics in an engine
// adapter, are converted to {"error": ...} envelopes and never propagate
// to the transport that called Dispatch.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/pbs/pkg/config"
	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/security/navigation"
	"github.com/entrhq/pbs/pkg/session"
	"github.com/entrhq/pbs/pkg/types"
)

// Timeouts are the per-command engine budgets. A zero value defers to the
// page default timeout.
type Timeouts struct {
	Navigate time.Duration
	Click    time.Duration
	Selector time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithGuard restricts the URLs open may navigate to.
func WithGuard(guard *navigation.Guard) Option {
	return func(d *Dispatcher) {
		d.guard = guard
	}
}

// WithTimeouts overrides the per-command timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(d *Dispatcher) {
		d.timeouts = t
	}
}

// WithScreenshots sets the default screenshot path and whether screenshots
// capture the full scrollable page.
func WithScreenshots(path string, fullPage bool) Option {
	return func(d *Dispatcher) {
		if path != "" {
			d.screenshotPath = path
		}
		d.fullPage = fullPage
	}
}

// WithSessionConfig applies timeouts and screenshot defaults from cfg.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(d *Dispatcher) {
		WithTimeouts(Timeouts{
			Navigate: cfg.NavigateTimeout,
			Click:    cfg.ClickTimeout,
			Selector: cfg.SelectorTimeout,
		})(d)
		WithScreenshots(cfg.ScreenshotPath, cfg.FullPageScreenshots)(d)
	}
}

// Dispatcher executes commands against a single browser session.
type Dispatcher struct {
	mu       sync.Mutex
	sessions *session.Manager
	logger   *logging.Logger
	guard    *navigation.Guard
	commands map[string]*command

	timeouts       Timeouts
	screenshotPath string
	fullPage       bool
}

// New creates a dispatcher that owns sessions.
func New(sessions *session.Manager, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		logger:   logging.Discard(),
		timeouts: Timeouts{
			Navigate: config.DefaultNavigateTimeout,
			Click:    config.DefaultClickTimeout,
			Selector: config.DefaultSelectorTimeout,
		},
		screenshotPath: config.DefaultScreenshotPath,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.commands = make(map[string]*command)
	for _, c := range commandTable() {
		d.commands[c.name] = c
		for _, alias := range c.aliases {
			d.commands[alias] = c
		}
	}
	return d
}

// Dispatch executes cmd and returns its envelope. Commands are serialized:
// a call blocks until any command in progress has completed.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd types.Command) (result types.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Recovered panic in %q: %v", cmd.Name, r)
			result = types.Failuref("internal error: %v", r)
		}
	}()

	c, ok := d.commands[cmd.Name]
	if !ok {
		d.logger.Debugf("Unknown command %q", cmd.Name)
		return types.Failure(&types.ProtocolError{Name: cmd.Name})
	}

	start := time.Now()
	d.logger.Debugf("-> %s", cmd)

	payload, err := d.run(ctx, c, cmd)
	if err != nil {
		d.logger.Warnf("%s: %v (%s)", c.name, err, time.Since(start).Round(time.Millisecond))
		return types.Failure(err)
	}

	d.logger.Debugf("<- %s ok (%s)", c.name, time.Since(start).Round(time.Millisecond))
	return types.Success(payload)
}

// DispatchLine parses and executes one protocol line.
func (d *Dispatcher) DispatchLine(ctx context.Context, line string) types.Result {
	return d.Dispatch(ctx, types.ParseCommand(line))
}

func (d *Dispatcher) run(ctx context.Context, c *command, cmd types.Command) (interface{}, error) {
	if len(cmd.Args) < len(c.required) {
		return nil, &types.OperationError{
			Command: c.name,
			Err:     fmt.Errorf("missing argument: %s", c.required[len(cmd.Args)]),
		}
	}

	if c.session != nil {
		return c.session(ctx, d, cmd)
	}

	page, err := d.sessions.CurrentPage(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := c.page(ctx, d, page, cmd)
	if err != nil {
		return nil, &types.OperationError{Command: c.name, Err: err}
	}
	return payload, nil
}

// Commands returns the canonical command names in sorted order.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.commands))
	for name, c := range d.commands {
		if name == c.name {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Usage returns the usage line of a command or alias.
func (d *Dispatcher) Usage(name string) (string, bool) {
	c, ok := d.commands[name]
	if !ok {
		return "", false
	}
	return c.usage, true
}

// Close terminates the session. It waits for a command in progress.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions.Terminate()
}
