package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// pageSummary holds the diagnostics read from a page's HTML.
type pageSummary struct {
	Title       string
	Description string
	Links       int
}

// summarizeHTML reads the title, meta description and link count in one
// pass over the document. The first non-empty title and description win.
func summarizeHTML(rawHTML string) (*pageSummary, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	summary := &pageSummary{}
	summary.visit(doc)
	return summary, nil
}

func (s *pageSummary) visit(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if s.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				s.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			if s.Description == "" && strings.EqualFold(attr(n, "name"), "description") {
				s.Description = strings.TrimSpace(attr(n, "content"))
			}
		case "a":
			if strings.TrimSpace(attr(n, "href")) != "" {
				s.Links++
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.visit(c)
	}
}

// attr returns the value of the named attribute, or "" when absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
