package main

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// readCapability matches the value widgets of the overview page
var readCapability = cascadia.MustCompile(`[class*="read-capability"][data-value]`)

// marker is a value widget found structurally in the page
type marker struct {
	Class string
	Value string
	Text  string
}

// structuralMarkers parses body as HTML and returns the value widgets. The
// regular expression extraction does not depend on this; it is shown so
// markup drift can be spotted.
func structuralMarkers(body string) ([]marker, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []marker
	for _, n := range readCapability.MatchAll(doc) {
		out = append(out, marker{
			Class: attr(n, "class"),
			Value: attr(n, "data-value"),
			Text:  strings.Join(strings.Fields(text(n)), " "),
		})
	}
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
