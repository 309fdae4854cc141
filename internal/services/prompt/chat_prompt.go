package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/dealdesk/internal/markup"
)

// SectionKind labels one knowledge section of the chat prompt
type SectionKind int

// Sections in descending authority. The prompt always renders them in this order.
const (
	SectionStockNotes SectionKind = iota
	SectionDailyNotes
	SectionWeeklyNotes
	SectionResearch
	SectionNotion
	SectionWebSearch
)

var chatSectionOrder = []SectionKind{
	SectionStockNotes,
	SectionDailyNotes,
	SectionWeeklyNotes,
	SectionResearch,
	SectionNotion,
	SectionWebSearch,
}

// Title is the section heading shown to the model
func (k SectionKind) Title() string {
	switch k {
	case SectionStockNotes:
		return "Stock Notes"
	case SectionDailyNotes:
		return "Daily Notes"
	case SectionWeeklyNotes:
		return "Weekly Notes"
	case SectionResearch:
		return "Research"
	case SectionNotion:
		return "Notion"
	case SectionWebSearch:
		return "Web Search"
	default:
		return "Other"
	}
}

// maxEntryRunes bounds one entry's body inside the prompt
const maxEntryRunes = 1500

// Entry is one citable unit of knowledge
type Entry struct {
	SourceName string // Citation name, emitted verbatim
	URL        string
	Title      string
	Date       *time.Time
	Body       string
}

// ChatPrompt collects the knowledge sections for one chat turn
type ChatPrompt struct {
	Symbol   string
	Now      time.Time
	sections map[SectionKind][]Entry
}

// NewChatPrompt creates an empty prompt; symbol may be empty
func NewChatPrompt(symbol string, now time.Time) *ChatPrompt {
	return &ChatPrompt{Symbol: symbol, Now: now, sections: make(map[SectionKind][]Entry)}
}

// Add appends entries to a section
func (p *ChatPrompt) Add(kind SectionKind, entries ...Entry) {
	p.sections[kind] = append(p.sections[kind], entries...)
}

// Empty reports whether no section holds any entry
func (p *ChatPrompt) Empty() bool {
	for _, entries := range p.sections {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// SourceNames returns the distinct citation names in section order
func (p *ChatPrompt) SourceNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, kind := range chatSectionOrder {
		for _, entry := range p.sections[kind] {
			if entry.SourceName != "" && !seen[entry.SourceName] {
				seen[entry.SourceName] = true
				names = append(names, entry.SourceName)
			}
		}
	}
	return names
}

// Counts returns entries per section title, for logging
func (p *ChatPrompt) Counts() map[string]int {
	counts := make(map[string]int, len(p.sections))
	for kind, entries := range p.sections {
		counts[kind.Title()] = len(entries)
	}
	return counts
}

// SystemInstruction renders the system prompt with every non-empty section
func (p *ChatPrompt) SystemInstruction() string {
	var b strings.Builder

	b.WriteString("You are an investment research assistant. Answer the user's question using ONLY the knowledge sections below.\n")
	fmt.Fprintf(&b, "Today is %s.\n", p.Now.Format("2006-01-02"))
	if p.Symbol != "" {
		fmt.Fprintf(&b, "The conversation is focused on the ticker %s.\n", p.Symbol)
	}

	b.WriteString("\nRULES:\n")
	b.WriteString("1. Do not state facts, figures or dates that are not present in the sections below. If the sections do not answer the question, say so.\n")
	b.WriteString("2. Sections are listed from highest to lowest authority. When sources disagree, prefer the earlier section.\n")
	b.WriteString("3. Every claim, bullet and paragraph must begin or end with a citation tag of the exact form [SOURCE: <name> | URL: <url or none>].\n")
	b.WriteString("4. <name> must be copied exactly, including case and spacing, from the SOURCE NAMES list. Never invent a source name.\n")
	b.WriteString("5. Use the entry's URL when one is given, otherwise write URL: none.\n")

	names := p.SourceNames()
	b.WriteString("\nSOURCE NAMES:\n")
	if len(names) == 0 {
		b.WriteString("(none)\n")
	}
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	for _, kind := range chatSectionOrder {
		entries := p.sections[kind]
		if len(entries) == 0 {
			continue
		}
		writeSection(&b, kind.Title(), entries)
	}

	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []Entry) {
	fmt.Fprintf(b, "\n===== BEGIN %s (%d) =====\n", strings.ToUpper(title), len(entries))
	for i, entry := range entries {
		fmt.Fprintf(b, "\n--- [%d] %s ---\n", i+1, entry.SourceName)
		if entry.Title != "" {
			fmt.Fprintf(b, "Title: %s\n", entry.Title)
		}
		if entry.Date != nil && !entry.Date.IsZero() {
			fmt.Fprintf(b, "Date: %s\n", entry.Date.Format("2006-01-02"))
		}
		url := entry.URL
		if url == "" {
			url = NoURL
		}
		fmt.Fprintf(b, "URL: %s\n", url)
		if body := strings.TrimSpace(entry.Body); body != "" {
			b.WriteString(markup.Truncate(body, maxEntryRunes))
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(b, "===== END %s =====\n", strings.ToUpper(title))
}

// SortedCounts formats Counts deterministically, e.g. "Daily Notes=3, Research=10"
func SortedCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
