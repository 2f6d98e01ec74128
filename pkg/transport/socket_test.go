package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a socket server on a random port until the test ends.
func startServer(t *testing.T, d Dispatcher, opts ...ServerOption) (*SocketServer, context.CancelFunc) {
	t.Helper()

	s := NewSocketServer("127.0.0.1:0", d, opts...)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("socket server did not stop")
		}
	})
	return s, cancel
}

func dialServer(t *testing.T, s *SocketServer, opts ...ClientOption) *Client {
	t.Helper()
	c, err := Dial(context.Background(), s.Addr().String(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSocketServer_EndToEnd(t *testing.T) {
	d, conn := newDispatcher(t)
	s, _ := startServer(t, d)
	c := dialServer(t, s)
	ctx := context.Background()

	steps := []struct {
		line string
		want string
	}{
		{"open https://example.com", `{"url":"https://example.com/"}`},
		{"title", `{"title":"Example Domain"}`},
		{"", `{"error":"Unknown command: "}`},
		{"bogus", `{"error":"Unknown command: bogus"}`},
		{"quit", `{"ok":true}`},
		{"title", `{"title":""}`},
	}
	for _, step := range steps {
		r := c.Send(ctx, step.line)
		assert.JSONEq(t, step.want, envelopeString(t, r), step.line)
	}
	assert.Equal(t, 2, conn.BrowserCount())
}

func TestSocketServer_SharedSessionAcrossClients(t *testing.T) {
	d, conn := newDispatcher(t)
	s, _ := startServer(t, d)
	ctx := context.Background()

	a := dialServer(t, s)
	b := dialServer(t, s)

	assert.JSONEq(t, `{"url":"https://example.com/"}`, envelopeString(t, a.Send(ctx, "open https://example.com")))
	assert.JSONEq(t, `{"title":"Example Domain"}`, envelopeString(t, b.Send(ctx, "title")))
	assert.Equal(t, 1, conn.BrowserCount())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		c := a
		if i%2 == 1 {
			c = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.JSONEq(t, `{"url":"https://example.com/"}`, envelopeString(t, c.Send(ctx, "url")))
		}()
	}
	wg.Wait()
}

func TestSocketServer_ConnectionCap(t *testing.T) {
	s, _ := startServer(t, &recordingDispatcher{}, WithMaxConnections(1))
	ctx := context.Background()

	first := dialServer(t, s)
	assert.JSONEq(t, `{"name":"status","args":0}`, envelopeString(t, first.Send(ctx, "status")))

	// accepted by the kernel but not served while the slot is taken
	second := dialServer(t, s, WithClientTimeout(100*time.Millisecond))
	assert.JSONEq(t, `{"error":"Timeout"}`, envelopeString(t, second.Send(ctx, "status")))

	require.NoError(t, first.Close())

	third := dialServer(t, s, WithClientTimeout(5*time.Second))
	assert.JSONEq(t, `{"name":"status","args":0}`, envelopeString(t, third.Send(ctx, "status")))
}

func TestSocketServer_Shutdown(t *testing.T) {
	s, cancel := startServer(t, &recordingDispatcher{})
	c := dialServer(t, s, WithClientTimeout(time.Second))
	ctx := context.Background()

	assert.False(t, c.Send(ctx, "status").IsError())

	cancel()
	assert.Eventually(t, func() bool {
		return c.Send(ctx, "status").IsError()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSocketServer_ListenError(t *testing.T) {
	s, _ := startServer(t, &recordingDispatcher{})

	other := NewSocketServer(s.Addr().String(), &recordingDispatcher{})
	err := other.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestSocketServer_AddrBeforeListen(t *testing.T) {
	s := NewSocketServer("127.0.0.1:0", &recordingDispatcher{})
	assert.Nil(t, s.Addr())
	assert.NoError(t, s.Close())
}
