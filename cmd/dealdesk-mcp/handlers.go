package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/keywords"
	"github.com/ternarybob/dealdesk/internal/services/knowledge"
	"github.com/ternarybob/dealdesk/internal/services/ranking"
)

// searchCandidates bounds how many items are scored per search
const searchCandidates = 1000

// ItemLister lists knowledge items visible to an account
type ItemLister interface {
	ListItems(ctx context.Context, accountID string, query knowledge.ItemQuery) ([]*models.KnowledgeItem, error)
}

// SummaryReader reads summary history visible to an account
type SummaryReader interface {
	List(ctx context.Context, accountID string, limit int) ([]*models.SummaryHistoryRecord, error)
	Get(ctx context.Context, accountID, id string) (*models.SummaryHistoryRecord, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchKnowledge implements the search_knowledge tool
func handleSearchKnowledge(items ItemLister, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		caps := ranking.ResearchItemCaps
		if limit := request.GetInt("limit", 0); limit > 0 {
			caps.Total = min(limit, 100)
			caps.Relevant = min(caps.Relevant, caps.Total)
		}

		candidates, err := items.ListItems(ctx, request.GetString("account_id", ""), knowledge.ItemQuery{
			UnreadOnly: request.GetBool("unread_only", false),
			Limit:      searchCandidates,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Knowledge search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		terms := keywords.Extract(query)
		selected := ranking.SelectBlend(candidates, terms, caps)

		logger.Debug().
			Str("query", query).
			Strs("keywords", terms).
			Int("candidates", len(candidates)).
			Int("selected", len(selected)).
			Msg("Knowledge search")

		return textResult(formatSearchResults(query, terms, selected)), nil
	}
}

// handleListSummaries implements the list_summaries tool
func handleListSummaries(summaries SummaryReader, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)

		records, err := summaries.List(ctx, request.GetString("account_id", ""), limit)
		if err != nil {
			logger.Error().Err(err).Msg("List summaries failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatSummaryList(records)), nil
	}
}

// handleGetSummary implements the get_summary tool
func handleGetSummary(summaries SummaryReader, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("summary_id")
		if err != nil || id == "" {
			return textResult("Error: summary_id parameter is required"), nil
		}

		record, err := summaries.Get(ctx, request.GetString("account_id", ""), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return textResult(fmt.Sprintf("Summary not found: %s", id)), nil
			}
			logger.Error().Err(err).Str("summary_id", id).Msg("Get summary failed")
			return textResult(fmt.Sprintf("Summary error: %v", err)), nil
		}

		return textResult(formatSummary(record)), nil
	}
}
