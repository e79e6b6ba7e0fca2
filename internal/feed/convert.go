// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// noiseTags never carry newsletter content.
var noiseTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"form": true, "button": true, "nav": true, "footer": true,
}

// converter turns item HTML into Markdown.
type converter struct {
	md *md.Converter
}

func newConverter() *converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &converter{md: c}
}

// toMarkdown converts an HTML fragment. Plain text passes through the
// converter unchanged apart from whitespace cleanup.
func (c *converter) toMarkdown(fragment string) (string, error) {
	out, err := c.md.ConvertString(stripNoise(fragment))
	if err != nil {
		return "", err
	}
	return cleanMarkdown(out), nil
}

// stripNoise removes noiseTags elements from an HTML fragment. Unparseable
// input is returned as is.
func stripNoise(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && noiseTags[n.Data] {
			toRemove = append(toRemove, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)
	if len(toRemove) == 0 {
		return fragment
	}
	for _, n := range toRemove {
		n.Parent.RemoveChild(n)
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return fragment
	}
	return sb.String()
}

// htmlTitle returns the <title> of an HTML document, or "".
func htmlTitle(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var title string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	return title
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
