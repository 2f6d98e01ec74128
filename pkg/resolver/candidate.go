package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/entrhq/pbs/pkg/engine"
)

// Candidate is one way of obtaining an engine handle.
type Candidate interface {
	// Attach returns a connected browser or an error describing why the
	// endpoint could not be used.
	Attach(ctx context.Context) (engine.Browser, error)

	// String names the candidate in diagnostics.
	String() string
}

// DirectCandidate attaches to a browser exposing the DevTools protocol on
// host:port without authentication.
type DirectCandidate struct {
	Host      string
	Port      int
	Connector engine.Connector
	Options   engine.ConnectOptions
}

// Attach implements Candidate.
func (c *DirectCandidate) Attach(ctx context.Context) (engine.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Connector.ConnectOverCDP(c.endpoint(), c.Options)
}

func (c *DirectCandidate) endpoint() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *DirectCandidate) String() string {
	return fmt.Sprintf("direct %s", c.endpoint())
}

// RelayCandidate attaches through an authenticated relay. The relay lists
// its targets at /json behind a bearer token; the first target's debugger
// URL is re-pointed at the relay and carries the token as a query parameter.
type RelayCandidate struct {
	Host      string
	Port      int
	Token     string
	Connector engine.Connector
	Options   engine.ConnectOptions

	// HTTPClient fetches the target list (default http.DefaultClient)
	HTTPClient *http.Client
}

// relayTarget is one entry of the relay's /json listing.
type relayTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// ErrNoToken is returned by a relay candidate without a configured token.
var ErrNoToken = errors.New("relay requires an auth token but none is configured")

// Attach implements Candidate.
func (c *RelayCandidate) Attach(ctx context.Context) (engine.Browser, error) {
	if c.Token == "" {
		return nil, ErrNoToken
	}

	wsURL, err := c.debuggerURL(ctx)
	if err != nil {
		return nil, err
	}
	return c.Connector.ConnectOverCDP(wsURL, c.Options)
}

// debuggerURL fetches the target list and builds the authenticated
// websocket address of the first target.
func (c *RelayCandidate) debuggerURL(ctx context.Context) (string, error) {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	// connect timeout also bounds the metadata fetch
	if c.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Options.Timeout)
		defer cancel()
	}

	listURL := fmt.Sprintf("http://%s/json", c.address())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay metadata request returned %s", resp.Status)
	}

	var targets []relayTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("failed to decode relay targets: %w", err)
	}
	if len(targets) == 0 || targets[0].WebSocketDebuggerURL == "" {
		return "", errors.New("relay returned no debuggable targets")
	}

	return c.authenticate(targets[0].WebSocketDebuggerURL)
}

// authenticate points a debugger URL at the relay and appends the token.
func (c *RelayCandidate) authenticate(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid debugger url %q: %w", raw, err)
	}
	if u.Scheme == "" {
		u.Scheme = "ws"
	}
	u.Host = c.address()

	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *RelayCandidate) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *RelayCandidate) String() string {
	return fmt.Sprintf("relay http://%s", c.address())
}

// LaunchCandidate starts a new local browser. It is the fallback when no
// existing session is reachable.
type LaunchCandidate struct {
	Connector engine.Connector
	Options   engine.LaunchOptions
}

// Attach implements Candidate.
func (c *LaunchCandidate) Attach(ctx context.Context) (engine.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Connector.Launch(c.Options)
}

func (c *LaunchCandidate) String() string {
	mode := "headed"
	if c.Options.Headless {
		mode = "headless"
	}
	return fmt.Sprintf("launch %s browser", mode)
}
