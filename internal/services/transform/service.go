package transform

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/markup"
)

// Service converts feed HTML into the markdown stored on knowledge items
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts HTML content to markdown.
// baseURL is used for resolving relative links. Conversion failures fall back
// to plain text and are never returned as errors.
func (s *Service) HTMLToMarkdown(html string, baseURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	// Plain-text feed bodies pass through untouched
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html)
	}

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Int("html_length", len(html)).Msg("HTML to markdown conversion failed, using plain text")
		return markup.StripHTML(html)
	}

	trimmed := strings.TrimSpace(converted)
	if trimmed == "" {
		s.logger.Debug().Int("html_length", len(html)).Msg("HTML to markdown produced empty output, using plain text")
		return markup.StripHTML(html)
	}

	return trimmed
}
