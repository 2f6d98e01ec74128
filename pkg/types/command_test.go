package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantName string
		wantArgs []string
	}{
		{
			name:     "empty line",
			line:     "",
			wantName: "",
			wantArgs: nil,
		},
		{
			name:     "blank line",
			line:     "   \t ",
			wantName: "",
			wantArgs: nil,
		},
		{
			name:     "no arguments",
			line:     "title",
			wantName: "title",
			wantArgs: []string{},
		},
		{
			name:     "collapses whitespace",
			line:     "  fill   #q  hello   world \r",
			wantName: "fill",
			wantArgs: []string{"#q", "hello", "world"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand(tt.line)
			assert.Equal(t, tt.wantName, cmd.Name)
			if tt.wantArgs == nil {
				assert.Empty(t, cmd.Args)
			} else {
				assert.Equal(t, tt.wantArgs, cmd.Args)
			}
		})
	}
}

func TestCommand_ArgAndRest(t *testing.T) {
	cmd := NewCommand("fill", "#search", "golang", "context", "package")

	assert.Equal(t, "#search", cmd.Arg(0))
	assert.Equal(t, "", cmd.Arg(10))
	assert.Equal(t, "", cmd.Arg(-1))
	assert.Equal(t, "golang context package", cmd.Rest(1))
	assert.Equal(t, "", cmd.Rest(4))
	assert.Equal(t, "fill #search golang context package", cmd.String())
	assert.Equal(t, "quit", NewCommand("quit").String())
}
