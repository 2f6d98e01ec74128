package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/types"
)

// DefaultClientTimeout bounds how long Send waits for a response.
const DefaultClientTimeout = 30 * time.Second

const readChunkSize = 4096

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientTimeout sets the response timeout.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClientLogger sets the diagnostics logger.
func WithClientLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client sends command lines to a SocketServer.
//
// A client has a single request slot. Concurrent Send calls wait for the
// slot one at a time; a waiting caller whose context ends gives up without
// sending. After a timeout the connection is discarded
// and the next Send dials a new one, so a late response to an abandoned
// request is never read as the answer to a later one.
type Client struct {
	addr    string
	timeout time.Duration
	logger  *logging.Logger

	// slot holds a token while a request is in flight and guards conn
	slot chan struct{}
	conn net.Conn
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		addr:    addr,
		timeout: DefaultClientTimeout,
		slot:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	return conn, nil
}

// Send writes line and waits for one complete JSON envelope. It always
// resolves exactly once: with the server's envelope, with {"error":"Timeout"}
// when the server does not answer in time, or with an error envelope for
// connection failures and context cancellation.
func (c *Client) Send(ctx context.Context, line string) types.Result {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return types.Failure(ctx.Err())
	}
	defer func() { <-c.slot }()

	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return types.Failure(err)
		}
		c.conn = conn
	}

	result, err := c.roundTrip(ctx, c.conn, line)
	if err != nil {
		c.discard()

		var netErr net.Error
		switch {
		case ctx.Err() != nil:
			return types.Failure(ctx.Err())
		case errors.As(err, &netErr) && netErr.Timeout():
			c.logger.Warnf("No response to %q within %s", line, c.timeout)
			return types.Failure(&types.ClientTimeoutError{Command: line})
		default:
			return types.Failure(err)
		}
	}
	return result
}

// SendCommand sends a parsed command.
func (c *Client) SendCommand(ctx context.Context, cmd types.Command) types.Result {
	return c.Send(ctx, cmd.String())
}

func (c *Client) roundTrip(ctx context.Context, conn net.Conn, line string) (types.Result, error) {
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return types.Result{}, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	// cancellation interrupts a blocked read by expiring the deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return types.Result{}, fmt.Errorf("failed to send command: %w", err)
	}

	var buf []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if result, ok := parseEnvelope(buf); ok {
				return result, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return types.Result{}, errors.New("connection closed before a complete response")
			}
			return types.Result{}, err
		}
	}
}

// parseEnvelope reports whether buf holds one complete JSON document.
// Objects, arrays and strings are self-delimiting; other scalars such as
// numbers are only complete once the terminating newline has arrived,
// since "12" may be the prefix of "123".
func parseEnvelope(buf []byte) (types.Result, bool) {
	trimmed := bytes.TrimSpace(buf)
	if len(trimmed) == 0 {
		return types.Result{}, false
	}

	var result types.Result
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return types.Result{}, false
	}

	if buf[len(buf)-1] == '\n' {
		return result, true
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return result, true
	}
	return types.Result{}, false
}

func (c *Client) discard() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close closes the connection. It waits for an in-flight request.
func (c *Client) Close() error {
	c.slot <- struct{}{}
	defer func() { <-c.slot }()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
