package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/knowledge"
	"github.com/ternarybob/dealdesk/internal/services/summary"
	"github.com/ternarybob/dealdesk/internal/storage"
)

// The MCP server reads the same store as the HTTP server. With the badger
// backend only one process can hold the database, so point it at postgres
// or run it while the HTTP server is stopped.
func main() {
	configPath := os.Getenv("DEALDESK_CONFIG")
	if configPath == "" {
		configPath = "dealdesk.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console only and quiet; stdout carries the MCP protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := storage.NewStorageManager(context.Background(), logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storageManager.Close()

	resolver := accounts.NewResolver(&config.Accounts, storageManager.KeyValueStorage(), logger)
	knowledgeService := knowledge.NewService(storageManager, resolver, logger)
	// Listing and reading history never generate, so no relay is wired
	summaryService := summary.NewService(storageManager, resolver, nil, nil, &config.Summary, logger)

	mcpServer := server.NewMCPServer(
		"dealdesk",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchKnowledgeTool(), handleSearchKnowledge(knowledgeService, logger))
	mcpServer.AddTool(createListSummariesTool(), handleListSummaries(summaryService, logger))
	mcpServer.AddTool(createGetSummaryTool(), handleGetSummary(summaryService, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
