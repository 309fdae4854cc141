package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/dealdesk/internal/markup"
	"github.com/ternarybob/dealdesk/internal/models"
)

const previewRunes = 300

// formatSearchResults formats ranked items as markdown
func formatSearchResults(query string, terms []string, items []*models.KnowledgeItem) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Research for \"%s\" (%d results)\n\n", query, len(items)))
	if len(terms) > 0 {
		sb.WriteString(fmt.Sprintf("**Keywords:** %s\n\n", strings.Join(terms, ", ")))
	}

	if len(items) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, item := range items {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, item.Title))
		if item.SourceName != "" {
			sb.WriteString(fmt.Sprintf("**Source:** %s\n", item.SourceName))
		}
		if item.URL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", item.URL))
		}
		if date := item.RankDate(); date != nil {
			sb.WriteString(fmt.Sprintf("**Published:** %s\n", date.Format(time.RFC3339)))
		}
		sb.WriteString("\n")

		sb.WriteString(markup.Truncate(item.PlainBody(), previewRunes))
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatSummaryList formats summary history as a markdown list
func formatSummaryList(records []*models.SummaryHistoryRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Summaries (%d)\n\n", len(records)))

	if len(records) == 0 {
		sb.WriteString("No summaries found.\n")
		return sb.String()
	}

	for i, record := range records {
		star := ""
		if record.IsFavorite {
			star = " ★"
		}
		sb.WriteString(fmt.Sprintf("%d. **%s**%s (`%s`)\n", i+1, record.Title, star, record.ID))
		sb.WriteString(fmt.Sprintf("   Created: %s, %d items from %d sources\n",
			record.CreatedAt.Format(time.RFC3339), record.ItemCount, record.SourceCount))
		if record.Preview != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", record.Preview))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatSummary formats one summary with its metadata
func formatSummary(record *models.SummaryHistoryRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", record.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", record.ID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", record.CreatedAt.Format(time.RFC3339)))
	if record.Model != "" {
		sb.WriteString(fmt.Sprintf("**Model:** %s\n", record.Model))
	}
	sb.WriteString(fmt.Sprintf("**Items:** %d from %d sources\n", record.ItemCount, record.SourceCount))

	if len(record.PriorityCounts) > 0 {
		tiers := make([]int, 0, len(record.PriorityCounts))
		for tier := range record.PriorityCounts {
			tiers = append(tiers, tier)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(tiers)))

		parts := make([]string, 0, len(tiers))
		for _, tier := range tiers {
			parts = append(parts, fmt.Sprintf("P%d: %d", tier, record.PriorityCounts[tier]))
		}
		sb.WriteString(fmt.Sprintf("**Priority mix:** %s\n", strings.Join(parts, ", ")))
	}

	sb.WriteString("\n")
	sb.WriteString(record.FullText)
	sb.WriteString("\n")
	return sb.String()
}
