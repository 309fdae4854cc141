package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchKnowledgeTool returns the search_knowledge tool definition
func createSearchKnowledgeTool() mcp.Tool {
	return mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search research items by keyword; the most relevant items come first, backfilled with the most recent"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text question or keywords"),
		),
		mcp.WithString("account_id",
			mcp.Description("Account to search as (default: the configured default account)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 30, max: 100)"),
		),
		mcp.WithBoolean("unread_only",
			mcp.Description("Only search items not yet marked read"),
		),
	)
}

// createListSummariesTool returns the list_summaries tool definition
func createListSummariesTool() mcp.Tool {
	return mcp.NewTool("list_summaries",
		mcp.WithDescription("List generated research summaries, newest first"),
		mcp.WithString("account_id",
			mcp.Description("Account to list for (default: the configured default account)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// createGetSummaryTool returns the get_summary tool definition
func createGetSummaryTool() mcp.Tool {
	return mcp.NewTool("get_summary",
		mcp.WithDescription("Retrieve the full markdown of one summary"),
		mcp.WithString("summary_id",
			mcp.Required(),
			mcp.Description("Summary ID (format: sum_{uuid})"),
		),
		mcp.WithString("account_id",
			mcp.Description("Account to read as (default: the configured default account)"),
		),
	)
}
