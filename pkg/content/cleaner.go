// Package content reduces a page's HTML to its semantic structure for the
// content command: scripts, styles and embedded objects are dropped, only
// attributes useful for targeting elements are kept, and the output is
// capped at a maximum length.
package content

import (
	"fmt"
	"strings"
	
	"golang.org/x/net/html"
)

const (
	// DefaultMaxLength caps cleaned output when no limit is given
	DefaultMaxLength = 10000

	MinMaxLength = 100
	MaxMaxLength = 100000
)

// Page is the cleaned representation of a document.
type Page struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html"`
	Truncated   bool   `json:"truncated"`
}

var (
	skippedElements = set("script", "style", "noscript", "iframe", "embed", "object", "svg", "template", "head")
	blockElements   = set("div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr", "td", "th",
		"form", "fieldset", "blockquote", "pre", "dialog")
	voidElements     = set("area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr")
	globalAttributes = set("id", "class", "role", "name", "aria-label", "aria-describedby", "title")
)

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

// Clean parses rawHTML and returns its cleaned form. A maxLength of zero or
// less disables truncation. Otherwise the output holds at most maxLength
// bytes of markup; a truncated result ends with "..." and its open
// elements are left unclosed.
func Clean(rawHTML string, maxLength int) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	w := &writer{limit: maxLength}
	w.node(doc, 0)

	return &Page{
		Title:       findTitle(doc),
		Description: findMeta(doc, "description"),
		HTML:        strings.TrimSpace(w.b.String()),
		Truncated:   w.truncated,
	}, nil
}

const ellipsis = "..."

// writer accumulates cleaned output and tracks the byte budget.
type writer struct {
	b         strings.Builder
	limit     int
	truncated bool
	space     bool // whitespace seen since the last write
}

func (w *writer) fits(n int) bool {
	return w.limit <= 0 || w.b.Len()+n <= w.limit
}

// write appends s when it fits the budget and truncates otherwise.
func (w *writer) write(s string) bool {
	if w.truncated {
		return false
	}
	if !w.fits(len(s)) {
		w.truncate()
		return false
	}
	w.b.WriteString(s)
	return true
}

// truncate ends the output. Nothing is written after the ellipsis.
func (w *writer) truncate() {
	if !w.truncated {
		w.b.WriteString(ellipsis)
		w.truncated = true
	}
}

func (w *writer) node(n *html.Node, depth int) {
	if w.truncated {
		return
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		w.element(n, depth)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, depth)
	}
}

func (w *writer) text(raw string) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		w.space = w.space || raw != ""
		return
	}

	if text[0] != raw[0] {
		w.space = true
	}
	if !w.gap() {
		return
	}

	if escaped := html.EscapeString(text); w.fits(len(escaped)) {
		w.b.WriteString(escaped)
		w.space = text[len(text)-1] != raw[len(raw)-1]
		return
	}

	// keep as many whole runes as the budget allows
	for _, r := range text {
		piece := html.EscapeString(string(r))
		if !w.fits(len(piece)) {
			break
		}
		w.b.WriteString(piece)
	}
	w.truncate()
}

// gap writes a single pending space between inline content.
func (w *writer) gap() bool {
	pending := w.space
	w.space = false
	if !pending || w.b.Len() == 0 {
		return true
	}
	out := w.b.String()
	if last := out[len(out)-1]; last == '>' || last == ' ' || last == '\n' {
		return true
	}
	return w.write(" ")
}

func (w *writer) element(n *html.Node, depth int) {
	tag := strings.ToLower(n.Data)
	if skippedElements[tag] {
		return
	}

	// html and body only contribute their children
	if tag == "html" || tag == "body" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.node(c, depth)
		}
		return
	}

	block := blockElements[tag]
	if block {
		w.space = false
		if w.b.Len() > 0 && !w.newline(depth) {
			return
		}
	} else if !w.gap() {
		return
	}

	var open strings.Builder
	open.WriteString("<" + tag)
	for _, attr := range n.Attr {
		if keepAttribute(tag, strings.ToLower(attr.Key)) {
			fmt.Fprintf(&open, ` %s="%s"`, strings.ToLower(attr.Key), html.EscapeString(attr.Val))
		}
	}
	open.WriteString(">")
	if !w.write(open.String()) || voidElements[tag] {
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, depth+1)
	}
	if w.truncated {
		return
	}

	w.space = false
	if block && hasBlockChild(n) && !w.newline(depth) {
		return
	}
	w.write("</" + tag + ">")
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockElements[strings.ToLower(c.Data)] {
			return true
		}
	}
	return false
}

func (w *writer) newline(depth int) bool {
	return w.write("\n" + strings.Repeat("  ", depth))
}

// keepAttribute reports whether an attribute helps target or understand
// the element.
func keepAttribute(tag, attr string) bool {
	if globalAttributes[attr] || strings.HasPrefix(attr, "data-") {
		return true
	}

	switch tag {
	case "a":
		return attr == "href" || attr == "target"
	case "img":
		return attr == "src" || attr == "alt"
	case "input", "textarea", "select", "option":
		return attr == "type" || attr == "placeholder" || attr == "value"
	case "button":
		return attr == "type"
	case "form":
		return attr == "action" || attr == "method"
	case "label":
		return attr == "for"
	}
	return false
}

// find returns the first element node accepted by match, depth first.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(doc *html.Node) string {
	n := find(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil || n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

func findMeta(doc *html.Node, name string) string {
	n := find(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attribute(n, "name") == name
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attribute(n, "content"))
}

func attribute(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
