package chat

import (
	"fmt"
	"strings"

	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/notion"
	"github.com/ternarybob/dealdesk/internal/services/prompt"
	"github.com/ternarybob/dealdesk/internal/services/websearch"
)

// WebSearchSourceName is the citation name of the web search section
const WebSearchSourceName = "Web Search"

// NoteSourceName is the citation name of a note, e.g. "Stock Note AAPL 2026-03-01"
func NoteSourceName(note *models.Note) string {
	var label string
	switch note.Kind {
	case models.NoteKindStock:
		label = "Stock Note " + note.Symbol
	case models.NoteKindWeekly:
		label = "Weekly Note"
	default:
		label = "Daily Note"
	}
	if date := note.SortDate(); date != nil {
		label += " " + date.Format("2006-01-02")
	}
	return label
}

func noteEntries(notes []*models.Note) []prompt.Entry {
	entries := make([]prompt.Entry, 0, len(notes))
	for _, note := range notes {
		entries = append(entries, prompt.Entry{
			SourceName: NoteSourceName(note),
			Title:      note.Title,
			Date:       note.SortDate(),
			Body:       note.Content,
		})
	}
	return entries
}

func sourceNames(sources []*models.SourceDescriptor) map[string]string {
	names := make(map[string]string, len(sources))
	for _, src := range sources {
		names[src.ID] = src.Name
	}
	return names
}

func itemEntries(items []*models.KnowledgeItem, names map[string]string) []prompt.Entry {
	entries := make([]prompt.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, prompt.Entry{
			SourceName: prompt.ItemSourceName(item, names),
			URL:        item.URL,
			Title:      item.Title,
			Date:       item.PublishedAt,
			Body:       item.PlainBody(),
		})
	}
	return entries
}

func notionEntries(docs []notion.Document) []prompt.Entry {
	entries := make([]prompt.Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, prompt.Entry{
			SourceName: "Notion: " + doc.Title,
			URL:        doc.URL,
			Title:      doc.Title,
			Date:       doc.LastEdited,
			Body:       doc.Content,
		})
	}
	return entries
}

func webEntry(answer *websearch.Answer) prompt.Entry {
	var b strings.Builder
	b.WriteString(answer.Content)
	if len(answer.Citations) > 0 {
		b.WriteString("\nReferences:\n")
		for i, url := range answer.Citations {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, url)
		}
	}

	url := ""
	if len(answer.Citations) > 0 {
		url = answer.Citations[0]
	}
	return prompt.Entry{
		SourceName: WebSearchSourceName,
		URL:        url,
		Title:      answer.Query,
		Body:       b.String(),
	}
}
