package scraper

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements rarely carry the content of a page.
var skippedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Sup:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Nav:      true,
	atom.Label:    true,
	atom.Textarea: true,
	atom.Script:   true,
	atom.Noscript: true,
	atom.Style:    true,
}

var skippedRoles = map[string]bool{
	"navigation":  true,
	"contentinfo": true,
	"button":      true,
}

// HTMLContent is what ExtractHTML finds in a page.
type HTMLContent struct {
	Title       string
	Body        string
	Description string
}

// ExtractHTML parses an HTML document and returns its title, visible text
// and meta description.
func ExtractHTML(r io.Reader) (HTMLContent, error) {
	root, err := html.Parse(r)
	if err != nil {
		return HTMLContent{}, err
	}

	var body strings.Builder
	visibleText(root, &body)

	return HTMLContent{
		Title:       strings.TrimSpace(findTitle(root)),
		Body:        body.String(),
		Description: strings.TrimSpace(findDescription(root)),
	}, nil
}

// visibleText appends every non-blank text node under n, trimmed and
// followed by a single space.
func visibleText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] || skippedRoles[attr(n, "role")] {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, sb)
	}
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return n.FirstChild.Data
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func findDescription(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta &&
		strings.EqualFold(attr(n, "name"), "description") {
		return attr(n, "content")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if d := findDescription(c); d != "" {
			return d
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
