// Package snapshot turns the engine's aria snapshot into an accessibility
// tree the way clients of the snapshot command expect it: a root "WebArea"
// node whose children carry role, name and state.
//
// The engine renders aria snapshots as YAML:
//
//	- heading "Example Domain" [level=1]
//	- paragraph: Some text
//	- link "More information...":
//	  - /url: https://www.iana.org/domains/example
//
// Each sequence item is either a bare "role "name" [attrs]" scalar or a
// single-key mapping whose value is inline text or a nested sequence.
// Keys starting with "/" are properties of the enclosing node.
package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RootRole is the role of the synthetic root node.
const RootRole = "WebArea"

// Node is one accessibility node.
type Node struct {
	Role       string            `json:"role"`
	Name       string            `json:"name,omitempty"`
	Text       string            `json:"text,omitempty"`
	Level      int               `json:"level,omitempty"`
	States     map[string]string `json:"states,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// entryPattern matches `role "name" [attr] [attr=value]`.
var entryPattern = regexp.MustCompile(`^([A-Za-z][\w-]*)(?:\s+("(?:[^"\\]|\\.)*"))?((?:\s*\[[^\]]*\])*)\s*$`)

var attrPattern = regexp.MustCompile(`\[([^\]=]+)(?:=([^\]]*))?\]`)

// Build parses an aria snapshot and wraps it in a root node named title.
func Build(title, aria string) (*Node, error) {
	children, err := Parse(aria)
	if err != nil {
		return nil, err
	}
	return &Node{Role: RootRole, Name: title, Children: children}, nil
}

// Parse parses an aria snapshot into its top-level nodes.
func Parse(aria string) ([]*Node, error) {
	if strings.TrimSpace(aria) == "" {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(aria), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse aria snapshot: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	root := &Node{Role: RootRole}
	if err := parseSequence(doc.Content[0], root); err != nil {
		return nil, err
	}
	return root.Children, nil
}

func parseSequence(seq *yaml.Node, parent *Node) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list of nodes", seq.Line)
	}

	for _, item := range seq.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			node, err := parseEntry(item.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", item.Line, err)
			}
			parent.Children = append(parent.Children, node)

		case yaml.MappingNode:
			for i := 0; i+1 < len(item.Content); i += 2 {
				if err := parsePair(item.Content[i], item.Content[i+1], parent); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("line %d: unexpected snapshot entry", item.Line)
		}
	}
	return nil
}

func parsePair(key, value *yaml.Node, parent *Node) error {
	if strings.HasPrefix(key.Value, "/") {
		if parent.Properties == nil {
			parent.Properties = make(map[string]string)
		}
		parent.Properties[strings.TrimPrefix(key.Value, "/")] = value.Value
		return nil
	}

	// "text: foo" is a bare text node
	if key.Value == "text" && value.Kind == yaml.ScalarNode {
		parent.Children = append(parent.Children, &Node{Role: "text", Name: value.Value})
		return nil
	}

	node, err := parseEntry(key.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", key.Line, err)
	}

	switch value.Kind {
	case yaml.ScalarNode:
		node.Text = value.Value
	case yaml.SequenceNode:
		if err := parseSequence(value, node); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: unexpected value for %q", value.Line, key.Value)
	}

	parent.Children = append(parent.Children, node)
	return nil
}

// parseEntry parses `role "name" [attrs]`.
func parseEntry(entry string) (*Node, error) {
	m := entryPattern.FindStringSubmatch(strings.TrimSpace(entry))
	if m == nil {
		return nil, fmt.Errorf("invalid snapshot entry %q", entry)
	}

	node := &Node{Role: m[1]}
	if m[2] != "" {
		name, err := strconv.Unquote(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid name in %q: %w", entry, err)
		}
		node.Name = name
	}

	for _, attr := range attrPattern.FindAllStringSubmatch(m[3], -1) {
		key := strings.TrimSpace(attr[1])
		value := strings.TrimSpace(attr[2])
		if key == "level" {
			level, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid level in %q", entry)
			}
			node.Level = level
			continue
		}
		if value == "" {
			value = "true"
		}
		if node.States == nil {
			node.States = make(map[string]string)
		}
		node.States[key] = value
	}

	return node, nil
}

// Walk calls fn for n and every descendant in document order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}
