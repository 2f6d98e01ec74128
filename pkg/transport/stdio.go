package transport

import (
	"context"
	"io"

	"github.com/entrhq/pbs/pkg/logging"
)

// StdioServer serves the line protocol on a reader/writer pair, normally
// stdin and stdout. Diagnostics go to Logger, never to Out.
type StdioServer struct {
	Dispatcher Dispatcher
	In         io.Reader
	Out        io.Writer
	Logger     *logging.Logger
}

// Serve processes lines until In reaches EOF, which returns nil, or ctx is
// canceled, which returns ctx.Err().
func (s *StdioServer) Serve(ctx context.Context) error {
	s.Logger.Infof("Serving commands on stdio")
	err := serveLines(ctx, s.Dispatcher, s.In, s.Out)
	if err != nil && ctx.Err() == nil {
		s.Logger.Errorf("Stdio transport stopped: %v", err)
		return err
	}
	s.Logger.Infof("Stdio transport closed")
	return err
}
