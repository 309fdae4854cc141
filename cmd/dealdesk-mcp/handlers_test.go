package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/knowledge"
)

type stubItems struct {
	items   []*models.KnowledgeItem
	account string
	query   knowledge.ItemQuery
}

func (s *stubItems) ListItems(_ context.Context, accountID string, query knowledge.ItemQuery) ([]*models.KnowledgeItem, error) {
	s.account = accountID
	s.query = query
	return s.items, nil
}

type stubSummaries struct {
	records map[string]*models.SummaryHistoryRecord
}

func (s *stubSummaries) List(_ context.Context, _ string, limit int) ([]*models.SummaryHistoryRecord, error) {
	out := []*models.SummaryHistoryRecord{}
	for _, r := range s.records {
		out = append(out, r)
	}
	return out[:min(limit, len(out))], nil
}

func (s *stubSummaries) Get(_ context.Context, _ string, id string) (*models.SummaryHistoryRecord, error) {
	if r, ok := s.records[id]; ok {
		return r, nil
	}
	return nil, interfaces.ErrNotFound
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestSearchKnowledge(t *testing.T) {
	older := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	items := &stubItems{items: []*models.KnowledgeItem{
		{ID: "a", Title: "Bank earnings preview", Body: "Net interest margins", PublishedAt: &newer},
		{ID: "b", Title: "Copper supply squeeze", Body: "Copper demand from grid buildout", SourceName: "Macro Wire", PublishedAt: &older},
	}}
	handler := handleSearchKnowledge(items, arbor.NewLogger())

	t.Run("matches rank first", func(t *testing.T) {
		text := callTool(t, handler, map[string]any{"query": "copper outlook", "account_id": "alice"})

		assert.Equal(t, "alice", items.account)
		assert.Equal(t, searchCandidates, items.query.Limit)
		assert.Contains(t, text, "(2 results)")
		assert.Less(t, strings.Index(text, "Copper supply squeeze"), strings.Index(text, "Bank earnings preview"))
		assert.Contains(t, text, "**Source:** Macro Wire")
	})

	t.Run("limit caps results", func(t *testing.T) {
		text := callTool(t, handler, map[string]any{"query": "copper", "limit": float64(1)})
		assert.Contains(t, text, "(1 results)")
		assert.Contains(t, text, "Copper supply squeeze")
	})

	t.Run("missing query", func(t *testing.T) {
		text := callTool(t, handler, map[string]any{})
		assert.Equal(t, "Error: query parameter is required", text)
	})
}

func TestSummaryTools(t *testing.T) {
	summaries := &stubSummaries{records: map[string]*models.SummaryHistoryRecord{
		"sum_1": {
			ID:             "sum_1",
			Title:          "Outlook",
			FullText:       "## Outlook\nCopper demand is rising.",
			ItemCount:      3,
			SourceCount:    2,
			PriorityCounts: map[int]int{5: 2, 3: 1},
			IsFavorite:     true,
		},
	}}
	logger := arbor.NewLogger()

	list := callTool(t, handleListSummaries(summaries, logger), map[string]any{})
	assert.Contains(t, list, "**Outlook** ★ (`sum_1`)")
	assert.Contains(t, list, "3 items from 2 sources")

	got := callTool(t, handleGetSummary(summaries, logger), map[string]any{"summary_id": "sum_1"})
	assert.Contains(t, got, "**Priority mix:** P5: 2, P3: 1")
	assert.Contains(t, got, "Copper demand is rising.")

	missing := callTool(t, handleGetSummary(summaries, logger), map[string]any{"summary_id": "sum_x"})
	assert.Equal(t, "Summary not found: sum_x", missing)
}
