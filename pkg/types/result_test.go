package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_MarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"ok", Success(OKResult{OK: true}), `{"ok":true}`},
		{"screenshot", Success(OKResult{OK: true, Path: "shot.png"}), `{"ok":true,"path":"shot.png"}`},
		{"url", Success(URLResult{URL: "https://example.com/"}), `{"url":"https://example.com/"}`},
		{"title", Success(TitleResult{Title: "Example Domain"}), `{"title":"Example Domain"}`},
		{"nil payload", Success(nil), `null`},
		{"scalar payload", Success(42.0), `42`},
		{"failure", Failure(errors.New("boom")), `{"error":"boom"}`},
		{"nil failure", Failure(nil), `{"error":"unknown error"}`},
		{"unknown", Failure(&ProtocolError{Name: "nope"}), `{"error":"Unknown command: nope"}`},
		{"unencodable", Success(make(chan int)), `{"error":"failed to encode result: json: unsupported type: chan int"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.result)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestResult_UnmarshalJSON(t *testing.T) {
	var failed Result
	require.NoError(t, json.Unmarshal([]byte(`{"error":"Timeout"}`), &failed))
	assert.True(t, failed.IsError())
	assert.Equal(t, "Timeout", failed.Error())

	var ok Result
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://example.com/"}`), &ok))
	assert.False(t, ok.IsError())
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com/"}`, string(data))

	var mixed Result
	require.NoError(t, json.Unmarshal([]byte(`{"error":"x","detail":1}`), &mixed))
	assert.False(t, mixed.IsError())
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_REFUSED")

	connErr := fmt.Errorf("resolve: %w", &ConnectionError{Attempts: 3, Err: cause})
	var ce *ConnectionError
	require.True(t, errors.As(connErr, &ce))
	assert.Equal(t, 3, ce.Attempts)
	assert.ErrorIs(t, connErr, cause)

	opErr := &OperationError{Command: "click", Err: cause}
	assert.Equal(t, "click failed: net::ERR_CONNECTION_REFUSED", opErr.Error())

	sessErr := &SessionError{Op: "new page", Err: cause}
	assert.ErrorIs(t, sessErr, cause)

	timeoutErr := &ClientTimeoutError{Command: "open"}
	assert.ErrorIs(t, timeoutErr, ErrTimeout)
	assert.Equal(t, "Timeout", timeoutErr.Error())
}
