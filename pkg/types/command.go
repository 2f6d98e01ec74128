package types

import (
	"strings"
)

// Command is one parsed request line: a command name followed by its
// positional arguments.
type Command struct {
	// Name is the first whitespace-separated token of the line.
	Name string

	// Args holds the remaining tokens in order.
	Args []string
}

// ParseCommand tokenizes a request line on whitespace.
// An empty or blank line yields a Command with an empty Name, which the
// dispatcher reports as an unknown command rather than a protocol error.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{
		Name: fields[0],
		Args: fields[1:],
	}
}

// NewCommand builds a Command from a name and its arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Arg returns the i-th argument, or "" when it was not supplied.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins every argument from position i onward with single spaces.
// Free-text payloads such as the value for fill or type are passed this way.
func (c Command) Rest(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// String renders the command back into its line form.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}
