// Package markup turns stored markdown or HTML into plain text for scoring,
// prompts, titles and previews.
package markup

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Ellipsis is appended to truncated titles and previews
const Ellipsis = "…"

var markdownParser = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
).Parser()

// StripMarkdown renders markdown as plain text: markup removed, block
// boundaries turned into single spaces. Link targets and inline tags are
// dropped; the visible text of embedded HTML blocks is kept.
func StripMarkdown(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	source := []byte(markdown)
	doc := markdownParser.Parse(text.NewReader(source))

	var b strings.Builder
	space := func() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(source))
			}
		case *ast.HTMLBlock:
			if entering {
				space()
				raw := rawLines(n, source)
				if node.HasClosure() {
					raw += string(node.ClosureLine.Value(source))
				}
				b.WriteString(StripHTML(raw))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				space()
				raw := rawLines(n, source)
				// Indented HTML after a blank line parses as a code block
				if strings.Contains(raw, "<") {
					raw = StripHTML(raw)
				}
				b.WriteString(raw)
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		default:
			if n.Type() == ast.TypeBlock && entering {
				space()
			}
		}
		return ast.WalkContinue, nil
	})

	return collapseWhitespace(b.String())
}

func rawLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
	}
	return b.String()
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style content is dropped.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}
	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

// Truncate shortens s to at most limit runes, appending Ellipsis when cut
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:limit]), isSpace) + Ellipsis
}

// FirstLine returns the first non-empty line with heading markers removed
func FirstLine(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
