package types

import (
	"errors"
	"fmt"
)

// ErrTimeout is the message a socket client reports when the server did not
// answer within the client budget.
var ErrTimeout = errors.New("Timeout")

// ConnectionError reports that no candidate endpoint could be attached and
// no launch fallback succeeded.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not connect to a browser after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("could not connect to a browser after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SessionError reports an engine or page handle that is invalid or closed
// while a command needs it.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// OperationError reports a failed engine operation: a missing selector, a
// navigation timeout, a throwing evaluation or an unwritable screenshot path.
type OperationError struct {
	Command string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or unknown command line.
type ProtocolError struct {
	Name string
}

func (e *ProtocolError) Error() string {
	return "Unknown command: " + e.Name
}

// ClientTimeoutError reports that a socket client gave up waiting.
type ClientTimeoutError struct {
	Command string
}

func (e *ClientTimeoutError) Error() string {
	return ErrTimeout.Error()
}

func (e *ClientTimeoutError) Unwrap() error { return ErrTimeout }
