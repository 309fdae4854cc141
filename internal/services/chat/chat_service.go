package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/enrichment"
	"github.com/ternarybob/dealdesk/internal/services/keywords"
	"github.com/ternarybob/dealdesk/internal/services/prompt"
	"github.com/ternarybob/dealdesk/internal/services/ranking"
	"github.com/ternarybob/dealdesk/internal/services/relay"
)

// ErrEmptyMessage is returned for a request without a question
var ErrEmptyMessage = errors.New("message is required")

// NoMatchesMessage answers questions with no supporting knowledge at all
const NoMatchesMessage = "I could not find any notes, research or external context related to this question, so I cannot answer it from your knowledge base."

// fetchLimit bounds each storage listing before ranking
const fetchLimit = 500

// Request is one chat turn
type Request struct {
	AccountID       string               `json:"-"`
	Message         string               `json:"message" validate:"required,max=4000"`
	Symbol          string               `json:"symbol,omitempty" validate:"max=16"`
	History         []interfaces.Message `json:"history,omitempty" validate:"max=100,dive"`
	Model           string               `json:"model,omitempty"`
	EnableNotion    *bool                `json:"enable_notion,omitempty"`
	EnableWebSearch *bool                `json:"enable_web_search,omitempty"`
}

// Service answers questions over the caller's notes and research with
// citation-tagged, streamed responses
type Service struct {
	storage  interfaces.StorageManager
	accounts *accounts.Resolver
	enricher *enrichment.Enricher
	relay    *relay.Relay
	config   *common.ChatConfig
	logger   arbor.ILogger
	now      func() time.Time
}

// NewService creates a chat service
func NewService(
	storage interfaces.StorageManager,
	accountResolver *accounts.Resolver,
	enricher *enrichment.Enricher,
	streamRelay *relay.Relay,
	config *common.ChatConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:  storage,
		accounts: accountResolver,
		enricher: enricher,
		relay:    streamRelay,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Stream answers req into sink. An error is returned only when nothing has
// been written to sink yet: invalid input, storage failure or a generation
// stream that could not be opened.
func (s *Service) Stream(ctx context.Context, req *Request, sink relay.Sink) (*relay.Outcome, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	owners := s.accounts.Owners(ctx, req.AccountID)
	terms := keywords.Extract(message)
	if symbol != "" && !containsString(terms, symbol) {
		terms = append([]string{symbol}, terms...)
	}

	chatPrompt, err := s.buildPrompt(ctx, owners, message, symbol, terms, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", s.accounts.AccountID(req.AccountID)).
		Strs("keywords", terms).
		Str("sections", prompt.SortedCounts(chatPrompt.Counts())).
		Msg("Chat context assembled")

	if chatPrompt.Empty() {
		_ = sink.Delta(NoMatchesMessage, false)
		_ = sink.Done()
		return &relay.Outcome{State: relay.StateDone, Text: NoMatchesMessage}, nil
	}

	generation := &interfaces.GenerationRequest{
		Messages:          s.conversation(req.History, message),
		SystemInstruction: chatPrompt.SystemInstruction(),
		Model:             req.Model,
	}

	session, err := s.relay.Open(ctx, generation)
	if err != nil {
		return nil, err
	}

	allowed := chatPrompt.SourceNames()
	outcome := session.Run(ctx, sink, relay.Options{
		Finalize: func(ctx context.Context, text string) {
			report := prompt.CheckCitations(text, allowed)
			s.logger.Debug().
				Int("claims", report.Claims).
				Int("cited", report.Cited).
				Strs("unknown_sources", report.UnknownNames).
				Msg("Chat citation check")
		},
	})
	return &outcome, nil
}

// buildPrompt fetches and ranks every knowledge section
func (s *Service) buildPrompt(ctx context.Context, owners []string, message, symbol string, terms []string, req *Request) (*prompt.ChatPrompt, error) {
	notes := s.storage.NoteStorage()

	stock, err := notes.ListNotes(ctx, models.NoteFilter{OwnerIDs: owners, Kind: models.NoteKindStock, Symbol: symbol, Limit: fetchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock notes: %w", err)
	}
	daily, err := notes.ListNotes(ctx, models.NoteFilter{OwnerIDs: owners, Kind: models.NoteKindDaily, Limit: fetchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load daily notes: %w", err)
	}
	weekly, err := notes.ListNotes(ctx, models.NoteFilter{OwnerIDs: owners, Kind: models.NoteKindWeekly, Limit: fetchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly notes: %w", err)
	}
	items, err := s.storage.KnowledgeStorage().ListItems(ctx, models.ItemFilter{OwnerIDs: owners, Limit: fetchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load research items: %w", err)
	}
	sources, err := s.storage.SourceStorage().ListSources(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	bundle := s.enricher.Gather(ctx, enrichment.Request{
		Query:     strings.TrimSpace(symbol + " " + message),
		Keywords:  terms,
		Notion:    enabled(req.EnableNotion, s.config.EnableNotion),
		WebSearch: enabled(req.EnableWebSearch, s.config.EnableWebSearch),
	})

	p := prompt.NewChatPrompt(symbol, s.now())
	p.Add(prompt.SectionStockNotes, noteEntries(ranking.SelectBlend(stock, terms, ranking.StockNoteCaps))...)
	p.Add(prompt.SectionDailyNotes, noteEntries(ranking.SelectBlend(daily, terms, ranking.DailyNoteCaps))...)
	p.Add(prompt.SectionWeeklyNotes, noteEntries(ranking.SelectBlend(weekly, terms, ranking.WeeklyNoteCaps))...)
	p.Add(prompt.SectionResearch, itemEntries(ranking.SelectBlend(items, terms, ranking.ResearchItemCaps), sourceNames(sources))...)
	if bundle.Notion.OK() {
		p.Add(prompt.SectionNotion, notionEntries(bundle.Notion.Value)...)
	}
	if bundle.WebSearch.OK() {
		p.Add(prompt.SectionWebSearch, webEntry(bundle.WebSearch.Value))
	}
	return p, nil
}

// conversation keeps the last MaxHistory user/assistant turns, then the question
func (s *Service) conversation(history []interfaces.Message, message string) []interfaces.Message {
	var turns []interfaces.Message
	for _, m := range history {
		if (m.Role == "user" || m.Role == "assistant") && strings.TrimSpace(m.Content) != "" {
			turns = append(turns, m)
		}
	}
	if limit := s.config.MaxHistory; limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append(turns, interfaces.Message{Role: "user", Content: message})
}

func enabled(override *bool, fallback bool) bool {
	if override != nil {
		return *override
	}
	return fallback
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
