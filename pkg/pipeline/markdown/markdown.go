// Package markdown converts cleaned HTML to Markdown for the content
// pipeline's markdown-generation stage (§4.3), grounded on the
// teacher's pkg/cleaner.MarkdownCleaner (html-to-markdown/v2 wiring +
// whitespace collapsing), generalized with citation-mode rendering.
package markdown

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/crawlforge/crawlforge/pkg/crawlresult"
)

// Generate converts html to plain markdown, collapsing excess
// whitespace the way the teacher's cleanWhitespace does.
func Generate(html string) (string, error) {
	out, err := md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return collapseBlankLines(out), nil
}

// GenerateWithCitations renders markdown with inline [n] reference
// markers in place of link URLs and a trailing references section,
// for callers who want citation-style output instead of inline links.
func GenerateWithCitations(html string, links []crawlresult.Link) (body string, references string, err error) {
	body, err = Generate(html)
	if err != nil {
		return "", "", err
	}

	if len(links) == 0 {
		return body, "", nil
	}

	seen := make(map[string]int, len(links))
	var refs strings.Builder
	n := 0
	for _, l := range links {
		if l.Href == "" {
			continue
		}
		if _, ok := seen[l.Href]; ok {
			continue
		}
		n++
		seen[l.Href] = n
		fmt.Fprintf(&refs, "[%d] %s\n", n, l.Href)

		linkMarkdown := fmt.Sprintf("[%s](%s)", l.Text, l.Href)
		replacement := fmt.Sprintf("%s [%d]", l.Text, n)
		body = strings.ReplaceAll(body, linkMarkdown, replacement)
	}

	return body, refs.String(), nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank <= 1 {
				out = append(out, "")
			}
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
