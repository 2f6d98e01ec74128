package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/entrhq/pbs/pkg/dispatch"
	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/engine/enginetest"
	"github.com/entrhq/pbs/pkg/resolver"
	"github.com/entrhq/pbs/pkg/session"
	"github.com/entrhq/pbs/pkg/types"
)

// newDispatcher returns a real dispatcher over an in-memory engine.
func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *enginetest.Connector) {
	t.Helper()
	conn := enginetest.NewConnector("http://localhost:9222")
	res := resolver.New([]resolver.Candidate{
		&resolver.DirectCandidate{Host: "localhost", Port: 9222, Connector: conn},
	}, nil)
	sessions := session.NewManager(res, session.Options{
		Viewport: engine.Viewport{Width: 1280, Height: 800},
	}, nil)
	return dispatch.New(sessions), conn
}

// recordingDispatcher echoes every command and remembers what it saw.
type recordingDispatcher struct {
	mu   sync.Mutex
	seen []types.Command
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, cmd types.Command) types.Result {
	r.mu.Lock()
	r.seen = append(r.seen, cmd)
	r.mu.Unlock()

	if cmd.Name == "" {
		return types.Failure(&types.ProtocolError{Name: cmd.Name})
	}
	return types.Success(map[string]interface{}{"name": cmd.Name, "args": len(cmd.Args)})
}

func (r *recordingDispatcher) commands() []types.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Command(nil), r.seen...)
}
