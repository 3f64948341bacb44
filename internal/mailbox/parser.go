package mailbox

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRE = regexp.MustCompile(`[ \t]+`)
	blankLinesRE = regexp.MustCompile(`\n{3,}`)
	addressRE    = regexp.MustCompile(`<([^<>]+)>`)
)

// htmlToText reduces an HTML body to readable plain text: scripts and styles
// removed, block elements separated by newlines, runs of whitespace
// collapsed.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripTags(html)
	}

	doc.Find("script, style, head").Remove()

	// Keep paragraph structure so keyword matching sees word boundaries.
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = whitespaceRE.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var tagRE = regexp.MustCompile(`<[^>]+>`)

func stripTags(html string) string {
	return strings.TrimSpace(tagRE.ReplaceAllString(html, " "))
}

// bareAddress extracts the address from "Name <addr>" forms. Plain
// addresses pass through unchanged.
func bareAddress(from string) string {
	if m := addressRE.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(from)
}
