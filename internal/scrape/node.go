package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits n and its subtree in document order. The callback returns
// false to skip the current node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findFirst returns the first node in document order matching pred, or nil.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var res *html.Node
	walk(n, func(cur *html.Node) bool {
		if res != nil {
			return false
		}
		if pred(cur) {
			res = cur
			return false
		}
		return true
	})
	return res
}

// findFirstOf tries each predicate in preference order and returns the first
// match of the first predicate that matches anything.
func findFirstOf(n *html.Node, preds ...func(*html.Node) bool) *html.Node {
	for _, pred := range preds {
		if m := findFirst(n, pred); m != nil {
			return m
		}
	}
	return nil
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func attrVal(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, f := range strings.Fields(attrVal(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func hasAncestorClass(n *html.Node, class string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if hasClass(p, class) {
			return true
		}
	}
	return false
}

// collapsedText is the node's text content with whitespace runs collapsed to
// single spaces and the ends trimmed.
func collapsedText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(cur *html.Node) bool {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			b.WriteString(" ")
		}
		return true
	})
	return collapseSpaces(b.String())
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}
