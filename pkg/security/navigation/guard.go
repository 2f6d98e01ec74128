// Package navigation restricts which URLs the open command may navigate to.
//
// Rules are glob patterns. A pattern without a scheme separator matches the
// URL's host with '.' as the segment separator, so "*.example.com" matches
// "docs.example.com" but not "a.b.example.com", while "**.example.com"
// matches both. A pattern containing "://" matches the full URL.
package navigation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Violation is returned when a URL is blocked by the navigation rules.
type Violation struct {
	URL     string
	Pattern string
}

func (v *Violation) Error() string {
	if v.Pattern == "" {
		return fmt.Sprintf("navigation to '%s' blocked: not in allowed patterns", v.URL)
	}
	return fmt.Sprintf("navigation to '%s' blocked by pattern '%s'", v.URL, v.Pattern)
}

type rule struct {
	pattern string
	full    bool
	g       glob.Glob
}

func (r rule) match(target *url.URL, raw string) bool {
	if r.full {
		return r.g.Match(raw)
	}
	return r.g.Match(strings.ToLower(target.Hostname()))
}

// Guard checks URLs against allow and deny rules. Denied patterns take
// precedence; with no allowed patterns every URL not denied is allowed.
type Guard struct {
	allowed []rule
	denied  []rule
}

// NewGuard compiles the allow and deny patterns.
func NewGuard(allowed, denied []string) (*Guard, error) {
	g := &Guard{}

	var err error
	if g.allowed, err = compile(allowed); err != nil {
		return nil, fmt.Errorf("invalid allowed pattern: %w", err)
	}
	if g.denied, err = compile(denied); err != nil {
		return nil, fmt.Errorf("invalid denied pattern: %w", err)
	}
	return g, nil
}

func compile(patterns []string) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if err := balanced(pattern); err != nil {
			return nil, fmt.Errorf("'%s': %w", pattern, err)
		}

		r := rule{pattern: pattern, full: strings.Contains(pattern, "://")}
		var err error
		if r.full {
			r.g, err = glob.Compile(pattern)
		} else {
			r.g, err = glob.Compile(strings.ToLower(pattern), '.')
		}
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", pattern, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Check returns a *Violation if rawURL may not be opened. A nil guard
// allows everything.
func (g *Guard) Check(rawURL string) error {
	if g == nil || (len(g.allowed) == 0 && len(g.denied) == 0) {
		return nil
	}

	target, err := parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %w", rawURL, err)
	}

	for _, r := range g.denied {
		if r.match(target, rawURL) {
			return &Violation{URL: rawURL, Pattern: r.pattern}
		}
	}

	if len(g.allowed) == 0 {
		return nil
	}
	for _, r := range g.allowed {
		if r.match(target, rawURL) {
			return nil
		}
	}
	return &Violation{URL: rawURL}
}

// balanced rejects unterminated alternations and character classes.
// glob accepts "{a,b" as a literal, which would hide a typo in a rule.
func balanced(pattern string) error {
	var stack []rune
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case len(stack) > 0 && stack[len(stack)-1] == '[':
			if r == ']' {
				stack = stack[:len(stack)-1]
			}
		case r == '{' || r == '[':
			stack = append(stack, r)
		case r == '}':
			if len(stack) == 0 {
				return errors.New("unexpected '}'")
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed '%c'", stack[len(stack)-1])
	}
	return nil
}

// Enabled reports whether any rule is configured.
func (g *Guard) Enabled() bool {
	return g != nil && (len(g.allowed) > 0 || len(g.denied) > 0)
}

// parse accepts bare hosts such as "example.com/path" by assuming http.
func parse(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return url.Parse("http://" + raw)
	}
	return u, nil
}
