package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/entrhq/pbs/pkg/content"
	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/snapshot"
	"github.com/entrhq/pbs/pkg/types"
)

const (
	defaultWait            = 1000 * time.Millisecond
	defaultSelectorTimeout = 10000 * time.Millisecond
)

type (
	pageFunc    func(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error)
	sessionFunc func(ctx context.Context, d *Dispatcher, cmd types.Command) (interface{}, error)
)

// command is one entry of the command table. Exactly one of page or
// session is set: page commands run against the current page, session
// commands manage the session itself and never create one.
type command struct {
	name     string
	aliases  []string
	usage    string
	required []string
	page     pageFunc
	session  sessionFunc
}

func commandTable() []*command {
	return []*command{
		{name: "open", usage: "open <url>", required: []string{"url"}, page: open},
		{name: "click", usage: "click <selector>", required: []string{"selector"}, page: click},
		{name: "fill", usage: "fill <selector> <text...>", required: []string{"selector"}, page: fill},
		{name: "type", usage: "type <selector> <text...>", required: []string{"selector"}, page: typeText},
		{name: "press", usage: "press <selector> <key>", required: []string{"selector", "key"}, page: press},
		{name: "snapshot", usage: "snapshot", page: snapshotTree},
		{name: "screenshot", usage: "screenshot [path] [full]", page: screenshot},
		{name: "evaluate", aliases: []string{"eval"}, usage: "evaluate <expression...>", required: []string{"expression"}, page: evaluate},
		{name: "waitForSelector", usage: "waitForSelector <selector> [timeoutMs]", required: []string{"selector"}, page: waitForSelector},
		{name: "title", usage: "title", page: title},
		{name: "url", usage: "url", page: currentURL},
		{name: "content", usage: "content [maxLength]", page: pageContent},
		{name: "wait", usage: "wait [ms]", session: wait},
		{name: "status", usage: "status", session: status},
		{name: "closePage", aliases: []string{"close"}, usage: "closePage", session: closePage},
		{name: "quit", aliases: []string{"terminate"}, usage: "quit", session: quit},
	}
}

func open(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	target := cmd.Arg(0)
	if err := d.guard.Check(target); err != nil {
		return nil, err
	}

	err := page.Goto(target, engine.NavigateOptions{
		WaitUntil: engine.WaitUntilNetworkIdle,
		Timeout:   d.timeouts.Navigate,
	})
	if err != nil {
		return nil, err
	}
	return types.URLResult{URL: page.URL()}, nil
}

func click(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	if err := page.Click(cmd.Arg(0), d.timeouts.Click); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func fill(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	if err := page.Fill(cmd.Arg(0), cmd.Rest(1), 0); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func typeText(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	if err := page.Type(cmd.Arg(0), cmd.Rest(1), 0); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func press(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	if err := page.Press(cmd.Arg(0), cmd.Arg(1), 0); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func snapshotTree(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	aria, err := page.AriaSnapshot(0)
	if err != nil {
		return nil, err
	}
	pageTitle, err := page.Title()
	if err != nil {
		return nil, err
	}

	tree, err := snapshot.Build(pageTitle, aria)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("Snapshot of %s has %d nodes", page.URL(), tree.Count())
	return tree, nil
}

// screenshot writes to args[0] or the configured default path. A second
// argument of "full" captures the full scrollable page.
func screenshot(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	path := cmd.Arg(0)
	if path == "" {
		path = d.screenshotPath
	}
	fullPage := d.fullPage || cmd.Arg(1) == "full"

	if err := page.Screenshot(path, fullPage); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true, Path: path}, nil
}

func evaluate(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	return page.Evaluate(cmd.Rest(0))
}

func waitForSelector(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	timeout := d.timeouts.Selector
	if timeout <= 0 {
		timeout = defaultSelectorTimeout
	}
	timeout = parseMillis(cmd.Arg(1), timeout)

	if err := page.WaitForSelector(cmd.Arg(0), timeout); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func title(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	t, err := page.Title()
	if err != nil {
		return nil, err
	}
	return types.TitleResult{Title: t}, nil
}

func currentURL(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	return types.URLResult{URL: page.URL()}, nil
}

func pageContent(ctx context.Context, d *Dispatcher, page engine.Page, cmd types.Command) (interface{}, error) {
	maxLength := content.DefaultMaxLength
	if raw := cmd.Arg(0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < content.MinMaxLength || n > content.MaxMaxLength {
			return nil, fmt.Errorf("maxLength must be between %d and %d", content.MinMaxLength, content.MaxMaxLength)
		}
		maxLength = n
	}

	raw, err := page.Content()
	if err != nil {
		return nil, err
	}
	return content.Clean(raw, maxLength)
}

// wait sleeps without touching the session. Invalid or non-positive
// durations fall back to one second.
func wait(ctx context.Context, d *Dispatcher, cmd types.Command) (interface{}, error) {
	timer := time.NewTimer(parseMillis(cmd.Arg(0), defaultWait))
	defer timer.Stop()

	select {
	case <-timer.C:
		return types.OKResult{OK: true}, nil
	case <-ctx.Done():
		return nil, &types.OperationError{Command: "wait", Err: ctx.Err()}
	}
}

func status(ctx context.Context, d *Dispatcher, cmd types.Command) (interface{}, error) {
	return d.sessions.State(), nil
}

func closePage(ctx context.Context, d *Dispatcher, cmd types.Command) (interface{}, error) {
	if err := d.sessions.ClosePage(); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

func quit(ctx context.Context, d *Dispatcher, cmd types.Command) (interface{}, error) {
	if err := d.sessions.Terminate(); err != nil {
		return nil, err
	}
	return types.OKResult{OK: true}, nil
}

// parseMillis parses a millisecond count, returning def for empty, invalid
// or non-positive input.
func parseMillis(raw string, def time.Duration) time.Duration {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}
