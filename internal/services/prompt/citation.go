package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// NoURL stands in for entries without a link
const NoURL = "none"

// CitationTag renders the tag attached to every generated claim
func CitationTag(name, url string) string {
	if strings.TrimSpace(url) == "" {
		url = NoURL
	}
	return fmt.Sprintf("[SOURCE: %s | URL: %s]", name, url)
}

var (
	citationPattern  = regexp.MustCompile(`\[SOURCE: ([^\]]+?) \| URL: ([^\]\s]+)\]`)
	leadingCitation  = regexp.MustCompile(`^(?:\[SOURCE: [^\]]+? \| URL: [^\]\s]+\]\s*)+`)
	trailingCitation = regexp.MustCompile(`(?:\s*\[SOURCE: [^\]]+? \| URL: [^\]\s]+\])+[.。]?$`)
	listMarker       = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
)

// Citation is one parsed tag
type Citation struct {
	Name string
	URL  string
}

// ParseCitations returns every tag in text, in order
func ParseCitations(text string) []Citation {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		citations = append(citations, Citation{Name: m[1], URL: m[2]})
	}
	return citations
}

// FindCitation returns the byte span of the first citation tag in text, or nil
func FindCitation(text string) []int {
	return citationPattern.FindStringIndex(text)
}

// StripCitations removes every tag from text
func StripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "")
}

// CitationReport summarises how well a generated text is attributed
type CitationReport struct {
	Claims       int      // Bullets and paragraphs checked
	Cited        int      // Claims starting or ending with a tag
	Uncited      []string // Claims without a tag
	UnknownNames []string // Tagged names absent from the allowed set
}

// Compliant reports whether every claim is cited with a known name
func (r CitationReport) Compliant() bool {
	return len(r.Uncited) == 0 && len(r.UnknownNames) == 0
}

// CheckCitations verifies that each non-heading line of text begins or ends
// with a citation tag whose name is in allowedNames. Names match exactly.
func CheckCitations(text string, allowedNames []string) CitationReport {
	allowed := make(map[string]bool, len(allowedNames))
	for _, name := range allowedNames {
		allowed[name] = true
	}

	var report CitationReport
	unknown := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		claim := strings.TrimSpace(line)
		if !isClaim(claim) {
			continue
		}
		report.Claims++

		body := listMarker.ReplaceAllString(claim, "")
		if leadingCitation.MatchString(body) || trailingCitation.MatchString(body) {
			report.Cited++
		} else {
			report.Uncited = append(report.Uncited, claim)
		}

		for _, citation := range ParseCitations(body) {
			if !allowed[citation.Name] && !unknown[citation.Name] {
				unknown[citation.Name] = true
				report.UnknownNames = append(report.UnknownNames, citation.Name)
			}
		}
	}

	return report
}

// isClaim skips blank lines, headings, rules and table separators
func isClaim(line string) bool {
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, "#"):
		return false
	case strings.Trim(line, "-*_= ") == "":
		return false
	case strings.Trim(line, "|-: ") == "":
		return false
	}
	return true
}
