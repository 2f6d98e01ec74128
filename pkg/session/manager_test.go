package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/engine/enginetest"
	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/resolver"
	"github.com/entrhq/pbs/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpoint = "http://localhost:9222"

func newTestManager(t *testing.T) (*Manager, *enginetest.Connector) {
	t.Helper()
	conn := enginetest.NewConnector(endpoint)
	res := resolver.New([]resolver.Candidate{
		&resolver.DirectCandidate{Host: "localhost", Port: 9222, Connector: conn},
	}, nil)
	m := NewManager(res, Options{
		Viewport:       engine.Viewport{Width: 1280, Height: 800},
		DefaultTimeout: 30 * time.Second,
	}, nil)
	return m, conn
}

func TestManager_EnsureCreatesSessionOnce(t *testing.T) {
	m, conn := newTestManager(t)
	ctx := context.Background()

	assert.Equal(t, State{}, m.State())

	b1, p1, err := m.Ensure(ctx)
	require.NoError(t, err)
	b2, p2, err := m.Ensure(ctx)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, conn.AttemptCount())
	assert.Equal(t, State{Engine: true, Page: true, Resolutions: 1}, m.State())
}

func TestManager_NewPageGetsViewportAndTimeout(t *testing.T) {
	m, conn := newTestManager(t)

	page, err := m.CurrentPage(context.Background())
	require.NoError(t, err)

	browser := conn.Browsers[0]
	require.Equal(t, 1, browser.ContextCount())
	bctx := browser.Contexts()[0].(*enginetest.Context)
	assert.Equal(t, engine.Viewport{Width: 1280, Height: 800}, bctx.Viewport)
	assert.Equal(t, 30*time.Second, page.(*enginetest.Page).DefaultTimeout())
}

func TestManager_ReusesExistingTab(t *testing.T) {
	conn := enginetest.NewConnector()
	browser := &stubBrowserResolver{connector: conn, tabs: []string{"https://example.com/", "about:blank"}}
	m := NewManager(browser, Options{}, nil)

	page, err := m.CurrentPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", page.URL())
	assert.Equal(t, 1, browser.last.ContextCount(), "no new context when a tab is open")
}

func TestManager_ClosePageKeepsEngine(t *testing.T) {
	m, conn := newTestManager(t)
	ctx := context.Background()

	p1, err := m.CurrentPage(ctx)
	require.NoError(t, err)

	require.NoError(t, m.ClosePage())
	assert.True(t, p1.IsClosed())
	assert.Equal(t, State{Engine: true, Page: false, Resolutions: 1}, m.State())

	p2, err := m.CurrentPage(ctx)
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.False(t, p2.IsClosed())
	assert.Equal(t, 1, conn.AttemptCount(), "engine must not be re-resolved")
	assert.Equal(t, 1, m.State().Resolutions)
}

func TestManager_ClosePageWithoutSession(t *testing.T) {
	m, conn := newTestManager(t)
	require.NoError(t, m.ClosePage())
	assert.Equal(t, 0, conn.AttemptCount())
}

func TestManager_PageClosedExternally(t *testing.T) {
	m, conn := newTestManager(t)
	ctx := context.Background()

	p1, err := m.CurrentPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p1.Close())

	p2, err := m.CurrentPage(ctx)
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.Equal(t, 1, conn.AttemptCount())
}

func TestManager_TerminateRebuilds(t *testing.T) {
	m, conn := newTestManager(t)
	ctx := context.Background()

	_, err := m.CurrentPage(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Terminate())
	assert.True(t, conn.Browsers[0].Closed())
	assert.Equal(t, State{Engine: false, Page: false, Resolutions: 1}, m.State())

	// idempotent
	require.NoError(t, m.Terminate())

	_, err = m.CurrentPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.BrowserCount())
	assert.Equal(t, 2, m.State().Resolutions)
}

func TestManager_DisconnectedEngineIsReResolved(t *testing.T) {
	m, conn := newTestManager(t)
	ctx := context.Background()

	_, err := m.CurrentPage(ctx)
	require.NoError(t, err)

	conn.Browsers[0].Disconnect()

	page, err := m.CurrentPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Goto("https://example.com", engine.NavigateOptions{}))
	assert.Equal(t, 2, conn.BrowserCount())
	assert.Equal(t, 2, m.State().Resolutions)
}

func TestManager_ResolveFailure(t *testing.T) {
	conn := enginetest.NewConnector()
	res := resolver.New([]resolver.Candidate{
		&resolver.DirectCandidate{Host: "localhost", Port: 9222, Connector: conn},
	}, nil)
	m := NewManager(res, Options{}, nil)

	_, err := m.CurrentPage(context.Background())
	require.Error(t, err)

	var connErr *types.ConnectionError
	assert.True(t, errors.As(err, &connErr))
	assert.Equal(t, State{}, m.State())
}

func TestManager_NewContextFailure(t *testing.T) {
	conn := enginetest.NewConnector()
	stub := &stubBrowserResolver{connector: conn, newContextErr: errors.New("context refused")}
	m := NewManager(stub, Options{}, nil)

	_, err := m.CurrentPage(context.Background())
	require.Error(t, err)

	var sessErr *types.SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, "new context", sessErr.Op)
	assert.Equal(t, State{Engine: true, Page: false, Resolutions: 1}, m.State())
}

func TestManager_PageErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger("session", logging.WithWriter(&buf))
	require.NoError(t, err)

	conn := enginetest.NewConnector(endpoint)
	res := resolver.New([]resolver.Candidate{
		&resolver.DirectCandidate{Host: "localhost", Port: 9222, Connector: conn},
	}, nil)
	m := NewManager(res, Options{}, logger)

	page, err := m.CurrentPage(context.Background())
	require.NoError(t, err)

	fake := page.(*enginetest.Page)
	fake.EmitError("console", "Uncaught TypeError: x is undefined")
	fake.EmitError("page", "boom")

	out := buf.String()
	assert.Contains(t, out, "[Browser Console Error]: Uncaught TypeError: x is undefined")
	assert.Contains(t, out, "[Page Error]: boom")
}

// stubBrowserResolver hands out browsers prepared with existing tabs.
type stubBrowserResolver struct {
	connector     *enginetest.Connector
	tabs          []string
	newContextErr error
	last          *enginetest.Browser
}

func (s *stubBrowserResolver) Resolve(ctx context.Context) (engine.Browser, error) {
	s.connector.Reachable[endpoint] = true
	b, err := s.connector.ConnectOverCDP(endpoint, engine.ConnectOptions{})
	if err != nil {
		return nil, err
	}
	fake := b.(*enginetest.Browser)
	if len(s.tabs) > 0 {
		fake.AddContext(s.tabs...)
	}
	fake.NewContextErr = s.newContextErr
	s.last = fake
	return fake, nil
}
