package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/entrhq/pbs/pkg/types"
)

// writeResult prints an envelope as one JSON line, or indented for humans.
func writeResult(w io.Writer, r types.Result, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
