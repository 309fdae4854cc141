package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/dealdesk/internal/markup"
	"github.com/ternarybob/dealdesk/internal/models"
)

// SummaryHeadings are the fixed sections of a research summary, in order
var SummaryHeadings = []string{
	"## Key Takeaways",
	"## Market & Macro",
	"## Companies & Deals",
	"## Risks & Watch List",
	"## Sources Reviewed",
}

// summaryItemRunes bounds one item's content inside the summary prompt
const summaryItemRunes = 1200

// SummaryPrompt is the rendered prompt for one summary run
type SummaryPrompt struct {
	SystemInstruction string
	UserMessage       string
	SourceNames       []string // Allowed citation names
}

// BuildSummaryPrompt renders the selected items grouped by source, highest
// tier first. items must already be in selection order.
func BuildSummaryPrompt(items []*models.KnowledgeItem, tiers map[string]int, sources map[string]*models.SourceDescriptor, now time.Time) SummaryPrompt {
	type group struct {
		name  string
		tier  int
		items []*models.KnowledgeItem
	}

	var groups []*group
	bySource := make(map[string]*group)
	for _, item := range items {
		g, ok := bySource[item.SourceID]
		if !ok {
			g = &group{name: sourceDisplayName(item, sources), tier: tiers[item.ID]}
			bySource[item.SourceID] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, item)
	}

	names := make([]string, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if !seen[g.name] {
			seen[g.name] = true
			names = append(names, g.name)
		}
	}

	var sys strings.Builder
	sys.WriteString("You are a research analyst writing a digest of newly collected research for an investment team.\n")
	fmt.Fprintf(&sys, "Today is %s.\n", now.Format("2006-01-02"))
	sys.WriteString("\nRULES:\n")
	sys.WriteString("1. Use ONLY the research items provided by the user. Do not add outside facts, numbers or dates.\n")
	sys.WriteString("2. Every bullet and paragraph must begin or end with a citation tag of the exact form [SOURCE: <name> | URL: <url or none>].\n")
	sys.WriteString("3. <name> must be copied exactly, including case and spacing, from the SOURCE NAMES list.\n")
	sys.WriteString("4. Sources are ordered by priority. Give higher-priority sources more weight and space.\n")
	sys.WriteString("5. Write the summary with exactly these headings, in this order, and nothing before the first heading except a one-line title starting with '# ':\n")
	for _, heading := range SummaryHeadings {
		fmt.Fprintf(&sys, "%s\n", heading)
	}
	sys.WriteString("\nSOURCE NAMES:\n")
	for _, name := range names {
		fmt.Fprintf(&sys, "- %s\n", name)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Summarize the following %d research items from %d sources.\n", len(items), len(groups))
	for _, g := range groups {
		fmt.Fprintf(&user, "\n===== SOURCE: %s (priority %d, %d items) =====\n", g.name, g.tier, len(g.items))
		for i, item := range g.items {
			fmt.Fprintf(&user, "\n[%d] %s\n", i+1, item.Title)
			if item.PublishedAt != nil {
				fmt.Fprintf(&user, "Published: %s\n", item.PublishedAt.Format("2006-01-02"))
			}
			url := item.URL
			if url == "" {
				url = NoURL
			}
			fmt.Fprintf(&user, "URL: %s\n", url)
			if content := item.PlainBody(); content != "" {
				user.WriteString(markup.Truncate(content, summaryItemRunes))
				user.WriteString("\n")
			}
		}
		fmt.Fprintf(&user, "===== END SOURCE: %s =====\n", g.name)
	}

	return SummaryPrompt{
		SystemInstruction: sys.String(),
		UserMessage:       user.String(),
		SourceNames:       names,
	}
}

// ManualSourceName is the citation name of items entered without a source
const ManualSourceName = "Manual Entry"

// ItemSourceName is the citation name of an item: the source's current name,
// then the name cached on the item, then its source id. Never empty.
func ItemSourceName(item *models.KnowledgeItem, names map[string]string) string {
	if name := strings.TrimSpace(names[item.SourceID]); name != "" {
		return name
	}
	if name := strings.TrimSpace(item.SourceName); name != "" {
		return name
	}
	if item.SourceID != "" {
		return item.SourceID
	}
	return ManualSourceName
}

func sourceDisplayName(item *models.KnowledgeItem, sources map[string]*models.SourceDescriptor) string {
	var names map[string]string
	if src, ok := sources[item.SourceID]; ok {
		names = map[string]string{item.SourceID: src.Name}
	}
	return ItemSourceName(item, names)
}
