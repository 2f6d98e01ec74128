// Package transport frames commands and result envelopes over byte streams.
//
// Both the stdio server and the socket server speak the same line protocol:
// one whitespace-tokenized command per input line, one JSON envelope per
// output line. Every input line produces exactly one output line, including
// blank and unknown commands.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/entrhq/pbs/pkg/types"
)

// Dispatcher executes one command and returns its envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd types.Command) types.Result
}

type readResult struct {
	line string
	err  error
}

// serveLines runs the line protocol until r reaches EOF or ctx is done.
// A final line without a trailing newline is still dispatched.
func serveLines(ctx context.Context, d Dispatcher, r io.Reader, w io.Writer) error {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan readResult)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				select {
				case lines <- readResult{line: line}:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case lines <- readResult{err: err}:
					case <-done:
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res, ok := <-lines:
			if !ok {
				return nil
			}
			if res.err != nil {
				return fmt.Errorf("failed to read command: %w", res.err)
			}

			line := strings.TrimRight(res.line, "\r\n")
			result := d.Dispatch(ctx, types.ParseCommand(line))
			if err := writeResult(w, result); err != nil {
				return err
			}
		}
	}
}

// writeResult writes one envelope followed by a newline in a single write.
func writeResult(w io.Writer, result types.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		// Result marshaling folds payload errors into an error envelope,
		// so this only happens for a broken Result implementation
		data, _ = json.Marshal(types.Failure(err))
	}
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
