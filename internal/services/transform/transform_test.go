package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestService_HTMLToMarkdown(t *testing.T) {
	s := NewService(arbor.NewLogger())

	assert.Equal(t, "", s.HTMLToMarkdown("   ", ""))
	assert.Equal(t, "just text", s.HTMLToMarkdown(" just text ", ""))

	got := s.HTMLToMarkdown(`<h2>Earnings</h2><p>Revenue <strong>up</strong> 12%.</p>`, "https://example.com")
	assert.Contains(t, got, "## Earnings")
	assert.Contains(t, got, "**up**")
}
