// Package pdf renders stored research summaries as printable PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/prompt"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	baseFont     = "Helvetica"
	baseSize     = 10.0
	lineHeight   = 5.0
	leftMargin   = 15.0
	contentWidth = 180.0
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

// Service exports summaries to PDF
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// RenderSummary lays out a summary record: a header block with its
// metadata, then the markdown body with citation tags set as small grey
// references.
func (s *Service) RenderSummary(record *models.SummaryHistoryRecord) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(leftMargin, 15, leftMargin)
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle(record.Title, true)
	doc.SetCreator("dealdesk", true)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont(baseFont, "B", 16)
	doc.MultiCell(0, 8, tr(record.Title), "", "L", false)

	doc.SetFont(baseFont, "", 8)
	doc.SetTextColor(110, 110, 110)
	doc.MultiCell(0, 4, tr(headerLine(record)), "", "L", false)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(2)
	doc.Line(leftMargin, doc.GetY(), leftMargin+contentWidth, doc.GetY())
	doc.Ln(4)

	source := []byte(record.FullText)
	root := markdown.Parser().Parse(text.NewReader(source))

	r := &renderer{pdf: doc, source: source, tr: tr}
	r.applyFont()
	if err := ast.Walk(root, r.walk); err != nil {
		return nil, fmt.Errorf("failed to lay out summary: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Str("id", record.ID).Int("pdf_size", buf.Len()).Msg("Summary PDF generated")
	return buf.Bytes(), nil
}

func headerLine(record *models.SummaryHistoryRecord) string {
	parts := []string{
		record.CreatedAt.Format("2 Jan 2006 15:04"),
		fmt.Sprintf("%d items from %d sources", record.ItemCount, record.SourceCount),
	}
	if len(record.PriorityCounts) > 0 {
		tiers := make([]int, 0, len(record.PriorityCounts))
		for tier := range record.PriorityCounts {
			tiers = append(tiers, tier)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(tiers)))
		var counts []string
		for _, tier := range tiers {
			counts = append(counts, fmt.Sprintf("P%d: %d", tier, record.PriorityCounts[tier]))
		}
		parts = append(parts, strings.Join(counts, " "))
	}
	if record.Model != "" {
		parts = append(parts, record.Model)
	}
	return strings.Join(parts, "  |  ")
}

type renderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func (r *renderer) applyFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(baseFont, style, baseSize)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(3)
			size := 11.0
			if node.Level <= 2 {
				size = 13
			}
			r.pdf.SetFont(baseFont, "B", size)
		} else {
			r.pdf.Ln(7)
			r.applyFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 1)
		}
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			r.pdf.Ln(1)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.SetX(leftMargin + float64(r.listLevel-1)*5)
			r.pdf.Write(lineHeight, r.tr("- "))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.applyFont()
	case *ast.Text:
		if entering {
			r.writeInline(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.String:
		if entering {
			r.writeInline(string(node.Value))
		}
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", baseSize-1)
			r.pdf.Write(lineHeight, r.tr(string(node.Text(r.source))))
			r.applyFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(leftMargin, r.pdf.GetY(), leftMargin+contentWidth, r.pdf.GetY())
			r.pdf.Ln(3)
		}
	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

// writeInline writes text, setting citation tags apart from the prose.
// Tags split across text nodes by the parser are written as plain text.
func (r *renderer) writeInline(s string) {
	for s != "" {
		loc := prompt.FindCitation(s)
		if loc == nil {
			r.pdf.Write(lineHeight, r.tr(s))
			return
		}
		if loc[0] > 0 {
			r.pdf.Write(lineHeight, r.tr(s[:loc[0]]))
		}
		r.citation(s[loc[0]:loc[1]])
		s = s[loc[1]:]
	}
}

func (r *renderer) citation(tag string) {
	r.pdf.SetFont(baseFont, "I", baseSize-2)
	cites := prompt.ParseCitations(tag)
	switch {
	case len(cites) == 1 && cites[0].URL != prompt.NoURL:
		r.pdf.SetTextColor(40, 90, 160)
		r.pdf.WriteLinkString(lineHeight, r.tr("["+cites[0].Name+"]"), cites[0].URL)
	case len(cites) == 1:
		r.pdf.SetTextColor(120, 120, 120)
		r.pdf.Write(lineHeight, r.tr("["+cites[0].Name+"]"))
	default:
		r.pdf.SetTextColor(120, 120, 120)
		r.pdf.Write(lineHeight, r.tr(tag))
	}
	r.pdf.SetTextColor(0, 0, 0)
	r.applyFont()
}

func (r *renderer) codeBlock(lines *text.Segments) {
	r.pdf.Ln(1)
	r.pdf.SetFont("Courier", "", baseSize-1)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, lineHeight, r.tr(strings.TrimRight(string(line.Value(r.source)), "\n")), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.applyFont()
	r.pdf.Ln(2)
}

// table lays out rows with equal column widths; cells wrap within their row
func (r *renderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			row = append(row, prompt.StripCitations(string(cell.Text(r.source))))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	width := contentWidth / float64(len(rows[0]))
	r.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(baseFont, style, baseSize-2)

		height := 0.0
		for _, cell := range row {
			lines := r.pdf.SplitText(r.tr(cell), width-2)
			height = max(height, float64(len(lines))*4+2)
		}
		height = max(height, 6)

		y := r.pdf.GetY()
		if y+height > 282 {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}
		for j, cell := range row {
			if j >= len(rows[0]) {
				break
			}
			x := leftMargin + float64(j)*width
			r.pdf.Rect(x, y, width, height, "D")
			r.pdf.SetXY(x+1, y+1)
			r.pdf.MultiCell(width-2, 4, r.tr(cell), "", "L", false)
		}
		r.pdf.SetXY(leftMargin, y+height)
	}
	r.pdf.Ln(3)
	r.applyFont()
}
