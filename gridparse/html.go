package gridparse

import (
	"strings"

	"golang.org/x/net/html"
)

// Traversal helpers shared by the grid and station display parsers.

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// findByID depth-first searches for <tag id=...>.
func findByID(n *html.Node, tag, id string) *html.Node {
	return find(n, func(c *html.Node) bool {
		return c.Data == tag && attr(c, "id") == id
	})
}

// findByClass depth-first searches for the first <tag class~=...>.
func findByClass(n *html.Node, tag, class string) *html.Node {
	return find(n, func(c *html.Node) bool {
		return c.Data == tag && hasClass(c, class)
	})
}

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

// childElements collects descendant elements of the tag, in document
// order. The html parser inserts tbody nodes, so this walks the whole
// subtree rather than direct children only.
func childElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c != n && c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			// Do not descend into a matched element; nested tables are
			// not part of the grid layout.
			return
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	return out
}

// text returns the concatenated text content of a node.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	return b.String()
}

func cellTexts(row *html.Node) []string {
	cells := childElements(row, "td")
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(text(c))
	}
	return out
}
