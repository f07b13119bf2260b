package textnorm

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLConverter reduces an HTML document to its visible plain text.
// Implementations must never fail: on any parse problem they return
// best-effort text instead of erroring.
type HTMLConverter interface {
	Text(html string) string
}

// DOMConverter extracts visible text from a parsed DOM, dropping
// script and style subtrees. If parsing fails it falls back to the
// regex strip.
type DOMConverter struct {
	fallback RegexConverter
}

// NewDOMConverter returns the default, DOM-based converter.
func NewDOMConverter() *DOMConverter {
	return &DOMConverter{}
}

func (c *DOMConverter) Text(raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return c.fallback.Text(raw)
	}

	var parts []string
	for _, node := range doc.Selection.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style":
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, collapseWhitespace(text))
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

// RegexConverter strips markup with pattern replacement. Cruder than
// the DOM walk but dependency-light and tolerant of any input.
type RegexConverter struct{}

var (
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

func (RegexConverter) Text(raw string) string {
	if raw == "" {
		return ""
	}

	text := reScript.ReplaceAllString(raw, " ")
	text = reStyle.ReplaceAllString(text, " ")
	text = reTags.ReplaceAllString(text, " ")
	text = stdhtml.UnescapeString(text)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func collapseWhitespace(text string) string {
	return reWhitespace.ReplaceAllString(text, " ")
}
