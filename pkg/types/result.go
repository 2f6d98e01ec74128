package types

import (
	"encoding/json"
	"fmt"
)

// Result is the envelope produced for every command: either a success
// payload of command-specific shape or an error message.
// It always marshals to exactly one JSON document.
type Result struct {
	payload interface{}
	err     string
	failed  bool
}

// URLResult is the success shape of open and url.
type URLResult struct {
	URL string `json:"url"`
}

// TitleResult is the success shape of title.
type TitleResult struct {
	Title string `json:"title"`
}

// OKResult is the success shape of commands without data.
// Path is only set by screenshot.
type OKResult struct {
	OK   bool   `json:"ok"`
	Path string `json:"path,omitempty"`
}

// errorEnvelope is the wire form of a failed result.
type errorEnvelope struct {
	Error string `json:"error"`
}

// Success wraps a payload into a result envelope.
// A nil payload marshals as JSON null.
func Success(payload interface{}) Result {
	return Result{payload: payload}
}

// Failure converts an error into the {"error": message} envelope.
func Failure(err error) Result {
	if err == nil {
		return Result{failed: true, err: "unknown error"}
	}
	return Result{failed: true, err: err.Error()}
}

// Failuref builds an error envelope from a format string.
func Failuref(format string, args ...interface{}) Result {
	return Result{failed: true, err: fmt.Sprintf(format, args...)}
}

// IsError reports whether the envelope carries an error.
func (r Result) IsError() bool {
	return r.failed
}

// Error returns the error message, or "" for a success envelope.
func (r Result) Error() string {
	return r.err
}

// Payload returns the success payload.
func (r Result) Payload() interface{} {
	return r.payload
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.failed {
		return json.Marshal(errorEnvelope{Error: r.err})
	}
	data, err := json.Marshal(r.payload)
	if err != nil {
		// Unserializable evaluation results still produce one document.
		return json.Marshal(errorEnvelope{Error: fmt.Sprintf("failed to encode result: %v", err)})
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler. A top-level object with an
// "error" key and nothing else is decoded as a failure; anything else is
// kept as a raw success payload.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil && len(probe) == 1 {
		if raw, ok := probe["error"]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				msg = string(raw)
			}
			*r = Result{failed: true, err: msg}
			return nil
		}
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	*r = Result{payload: raw}
	return nil
}
