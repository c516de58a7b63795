package scrape

import (
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Node is the minimal DOM surface extraction strategies work against. It
// exists so field extraction can be exercised without a live browser.
type Node interface {
	// First returns the first element matching selector, if any.
	First(selector string) (Node, bool)
	// All returns every element matching selector.
	All(selector string) []Node
	// Text returns the element's trimmed text content, empty on failure.
	Text() string
	// Attr returns the named attribute, empty when absent or on failure.
	Attr(name string) string
}

type pwNode struct {
	loc playwright.Locator
}

// PageNode wraps a live page's document root as a Node.
func PageNode(page playwright.Page) Node {
	return pwNode{loc: page.Locator("html")}
}

func (n pwNode) First(selector string) (Node, bool) {
	matches := n.loc.Locator(selector)
	count, err := matches.Count()
	if err != nil || count == 0 {
		return nil, false
	}
	return pwNode{loc: matches.First()}, true
}

func (n pwNode) All(selector string) []Node {
	locs, err := n.loc.Locator(selector).All()
	if err != nil {
		return nil
	}
	nodes := make([]Node, 0, len(locs))
	for _, l := range locs {
		nodes = append(nodes, pwNode{loc: l})
	}
	return nodes
}

func (n pwNode) Text() string {
	t, err := n.loc.TextContent()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

func (n pwNode) Attr(name string) string {
	v, err := n.loc.GetAttribute(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
