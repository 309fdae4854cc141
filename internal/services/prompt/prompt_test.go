package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/dealdesk/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCitationTag(t *testing.T) {
	assert.Equal(t, "[SOURCE: Macro Wire | URL: https://x.test/a]", CitationTag("Macro Wire", "https://x.test/a"))
	assert.Equal(t, "[SOURCE: Daily Note 2026-03-01 | URL: none]", CitationTag("Daily Note 2026-03-01", " "))
}

func TestCheckCitations(t *testing.T) {
	allowed := []string{"Macro Wire", "Deal Desk"}
	text := strings.Join([]string{
		"# Weekly Digest",
		"",
		"## Key Takeaways",
		"- Rates held steady. [SOURCE: Macro Wire | URL: https://x.test/a]",
		"- [SOURCE: Deal Desk | URL: none] Two term sheets signed.",
		"1. Margins widened [SOURCE: Macro Wire | URL: none] [SOURCE: Deal Desk | URL: none].",
		"An unsupported claim without a tag.",
		"- Mentioned elsewhere [SOURCE: macro wire | URL: none]",
		"---",
	}, "\n")

	report := CheckCitations(text, allowed)

	assert.Equal(t, 5, report.Claims)
	assert.Equal(t, 4, report.Cited)
	assert.Equal(t, []string{"An unsupported claim without a tag."}, report.Uncited)
	assert.Equal(t, []string{"macro wire"}, report.UnknownNames, "names are case-sensitive")
	assert.False(t, report.Compliant())
}

func TestCheckCitations_MidSentenceTagDoesNotCount(t *testing.T) {
	report := CheckCitations("Rates [SOURCE: Macro Wire | URL: none] held steady", []string{"Macro Wire"})
	assert.Equal(t, 1, report.Claims)
	assert.Equal(t, 0, report.Cited)
}

func TestParseAndStripCitations(t *testing.T) {
	text := "Up 3% [SOURCE: A | URL: none] and [SOURCE: B Corp | URL: https://b.test]"
	assert.Equal(t, []Citation{{Name: "A", URL: "none"}, {Name: "B Corp", URL: "https://b.test"}}, ParseCitations(text))
	assert.Equal(t, "Up 3%  and ", StripCitations(text))
}

func TestChatPrompt_SectionOrderIsFixed(t *testing.T) {
	p := NewChatPrompt("AAPL", fixedNow)
	p.Add(SectionWebSearch, Entry{SourceName: "Web Search", Body: "web"})
	p.Add(SectionResearch, Entry{SourceName: "Macro Wire", URL: "https://x.test", Body: "research"})
	p.Add(SectionStockNotes, Entry{SourceName: "Stock Note AAPL", Body: "note"})

	sys := p.SystemInstruction()

	stock := strings.Index(sys, "BEGIN STOCK NOTES")
	research := strings.Index(sys, "BEGIN RESEARCH")
	web := strings.Index(sys, "BEGIN WEB SEARCH")
	require.True(t, stock > 0 && research > 0 && web > 0)
	assert.Less(t, stock, research)
	assert.Less(t, research, web)
	assert.NotContains(t, sys, "BEGIN DAILY NOTES", "empty sections are omitted")
	assert.Contains(t, sys, "focused on the ticker AAPL")
	assert.Contains(t, sys, "Today is 2026-03-02")
	assert.Contains(t, sys, "[SOURCE: <name> | URL: <url or none>]")
	assert.Equal(t, []string{"Stock Note AAPL", "Macro Wire", "Web Search"}, p.SourceNames())
	assert.False(t, p.Empty())
}

func TestChatPrompt_Empty(t *testing.T) {
	p := NewChatPrompt("", fixedNow)
	assert.True(t, p.Empty())
	p.Add(SectionNotion)
	assert.True(t, p.Empty())
}

func TestBuildSummaryPrompt(t *testing.T) {
	published := fixedNow.Add(-24 * time.Hour)
	items := []*models.KnowledgeItem{
		{ID: "i1", SourceID: "s1", Title: "Fed holds", URL: "https://x.test/fed", Summary: "Rates unchanged", PublishedAt: &published},
		{ID: "i2", SourceID: "s2", SourceName: "Cached Name", Title: "Deal closes", Body: "Body text"},
		{ID: "i3", SourceID: "s1", Title: "CPI preview"},
	}
	tiers := map[string]int{"i1": 5, "i2": 3, "i3": 5}
	sources := map[string]*models.SourceDescriptor{"s1": {ID: "s1", Name: "Macro Wire"}}

	p := BuildSummaryPrompt(items, tiers, sources, fixedNow)

	assert.Equal(t, []string{"Macro Wire", "Cached Name"}, p.SourceNames)
	assert.Contains(t, p.UserMessage, "Summarize the following 3 research items from 2 sources.")
	assert.Contains(t, p.UserMessage, "===== SOURCE: Macro Wire (priority 5, 2 items) =====")
	assert.Contains(t, p.UserMessage, "URL: none")
	assert.Contains(t, p.UserMessage, "Published: 2026-03-01")
	for _, heading := range SummaryHeadings {
		assert.Contains(t, p.SystemInstruction, heading)
	}
	assert.Less(t, strings.Index(p.UserMessage, "Macro Wire"), strings.Index(p.UserMessage, "Cached Name"))
}

func TestBuildSummaryPrompt_PlainTextBodies(t *testing.T) {
	items := []*models.KnowledgeItem{
		{ID: "i1", SourceID: "s1", Title: "Chips", Body: `<div class="nvidia-card"><p>Shares rose.</p></div>`},
		{ID: "i2", SourceID: "s1", Title: "Memory", Body: "Prices firm. [read more](https://example.com/dram-prices)"},
	}
	sources := map[string]*models.SourceDescriptor{"s1": {ID: "s1", Name: "Chip Desk"}}

	p := BuildSummaryPrompt(items, map[string]int{"i1": 3, "i2": 3}, sources, fixedNow)

	assert.Contains(t, p.UserMessage, "Shares rose.")
	assert.Contains(t, p.UserMessage, "Prices firm. read more")
	assert.NotContains(t, p.UserMessage, "<div")
	assert.NotContains(t, p.UserMessage, "nvidia-card")
	assert.NotContains(t, p.UserMessage, "dram-prices")
}

func TestBuildSummaryPrompt_ManualItemsGetStableName(t *testing.T) {
	items := []*models.KnowledgeItem{
		{ID: "i1", SourceID: "s1", Title: "Fed holds"},
		{ID: "i2", Title: "Desk call notes", Body: "Client asked about copper"},
	}
	sources := map[string]*models.SourceDescriptor{"s1": {ID: "s1", Name: "Macro Wire"}}

	p := BuildSummaryPrompt(items, map[string]int{"i1": 4, "i2": 1}, sources, fixedNow)

	assert.Equal(t, []string{"Macro Wire", ManualSourceName}, p.SourceNames)
	assert.Contains(t, p.SystemInstruction, "- "+ManualSourceName+"\n")
	assert.Contains(t, p.UserMessage, "===== SOURCE: Manual Entry (priority 1, 1 items) =====")
	assert.NotContains(t, p.UserMessage, "===== SOURCE:  (")
}

func TestItemSourceName(t *testing.T) {
	names := map[string]string{"s1": "Macro Wire"}
	tests := []struct {
		name string
		item *models.KnowledgeItem
		want string
	}{
		{name: "current source name", item: &models.KnowledgeItem{SourceID: "s1", SourceName: "Old"}, want: "Macro Wire"},
		{name: "cached name", item: &models.KnowledgeItem{SourceID: "s9", SourceName: "Old"}, want: "Old"},
		{name: "source id", item: &models.KnowledgeItem{SourceID: "s9"}, want: "s9"},
		{name: "manual", item: &models.KnowledgeItem{}, want: ManualSourceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemSourceName(tt.item, names))
		})
	}
}
