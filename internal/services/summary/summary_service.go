// -----------------------------------------------------------------------
// Last Modified: Saturday, 17th October 2026 10:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/markup"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/prompt"
	"github.com/ternarybob/dealdesk/internal/services/ranking"
	"github.com/ternarybob/dealdesk/internal/services/relay"
)

// ErrNothingToSummarize is returned by GenerateText when no unread item qualifies
var ErrNothingToSummarize = errors.New("nothing to summarize")

// ErrHistoryNotSaved is returned by GenerateText when the summary was
// generated but could not be stored
var ErrHistoryNotSaved = errors.New("summary generated but history could not be saved")

// NothingToSummarizeMessage is streamed instead of a summary when no unread item qualifies
const NothingToSummarizeMessage = "There are no unread research items to summarize."

const (
	titleRunes   = 120
	previewRunes = 240
)

// Request starts one summary generation
type Request struct {
	AccountID string `json:"-"`
	GlobalCap int    `json:"global_cap,omitempty" validate:"omitempty,min=1,max=200"`
	MarkRead  *bool  `json:"mark_read,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Result describes a finished generation
type Result struct {
	Outcome  relay.Outcome
	Metadata *models.SummaryMetadata
	Record   *models.SummaryHistoryRecord // Set only after natural completion
	Empty    bool                         // No item qualified; nothing was generated
}

// Service builds research summaries from unread knowledge items and keeps
// their history
type Service struct {
	storage   interfaces.StorageManager
	accounts  *accounts.Resolver
	relay     *relay.Relay
	generator interfaces.ContentGenerator
	config    *common.SummaryConfig
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates a new summary service. streamRelay serves Generate and
// generator serves GenerateText; either may be nil when that path is unused.
func NewService(
	storage interfaces.StorageManager,
	accountResolver *accounts.Resolver,
	streamRelay *relay.Relay,
	generator interfaces.ContentGenerator,
	config *common.SummaryConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:   storage,
		accounts:  accountResolver,
		relay:     streamRelay,
		generator: generator,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// run is one prepared summary generation
type run struct {
	ownerID     string
	candidates  []*models.KnowledgeItem
	sourceNames []string
	generation  *interfaces.GenerationRequest
	metadata    *models.SummaryMetadata
	markRead    bool
}

// prepare selects unread items by source priority and renders the prompt.
// A nil run means no item qualified.
func (s *Service) prepare(ctx context.Context, req *Request) (*run, error) {
	ownerID := s.accounts.AccountID(req.AccountID)
	owners := s.accounts.Owners(ctx, req.AccountID)

	candidates, err := s.storage.KnowledgeStorage().ListItems(ctx, models.ItemFilter{
		OwnerIDs:   owners,
		UnreadOnly: true,
		Limit:      s.config.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load unread items: %w", err)
	}
	sources, err := s.storage.SourceStorage().ListSources(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	globalCap := req.GlobalCap
	if globalCap == 0 {
		globalCap = s.config.GlobalCap
	}
	selection := ranking.SelectByPriority(candidates, sources, ranking.ClampGlobalCap(globalCap))

	s.logger.Info().
		Str("account", ownerID).
		Int("candidates", len(candidates)).
		Int("selected", len(selection.Items)).
		Int("sources", len(selection.SourceIDs)).
		Msg("Summary selection complete")

	if len(selection.Items) == 0 {
		return nil, nil
	}

	bySource := make(map[string]*models.SourceDescriptor, len(sources))
	for _, src := range sources {
		bySource[src.ID] = src
	}
	summaryPrompt := prompt.BuildSummaryPrompt(selection.Items, selection.Tiers, bySource, s.now())

	markRead := s.config.MarkRead
	if req.MarkRead != nil {
		markRead = *req.MarkRead
	}

	return &run{
		ownerID:     ownerID,
		candidates:  candidates,
		sourceNames: summaryPrompt.SourceNames,
		generation: &interfaces.GenerationRequest{
			Messages:          []interfaces.Message{{Role: "user", Content: summaryPrompt.UserMessage}},
			SystemInstruction: summaryPrompt.SystemInstruction,
			Model:             req.Model,
		},
		metadata: &models.SummaryMetadata{
			ItemCount:      len(selection.Items),
			SourceCount:    len(selection.SourceIDs),
			SourceIDs:      selection.SourceIDs,
			PriorityCounts: selection.PriorityCounts,
			CandidateCount: len(candidates),
		},
		markRead: markRead,
	}, nil
}

// complete runs the side effects of a finished summary. Saving history and
// marking candidates read are independent: one failing never skips the other.
func (s *Service) complete(ctx context.Context, r *run, text string) *models.SummaryHistoryRecord {
	record := s.finalize(ctx, r.ownerID, text, r.metadata, r.sourceNames)
	if r.markRead {
		s.markCandidatesRead(ctx, r.candidates)
	}
	return record
}

// Generate streams a summary of the selected items into sink. The history
// record is written, and candidates marked read, only when the stream
// completes naturally. Errors are returned only before anything has been
// written to sink.
func (s *Service) Generate(ctx context.Context, req *Request, sink relay.Sink) (*Result, error) {
	r, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if r == nil {
		_ = sink.Delta(NothingToSummarizeMessage, false)
		_ = sink.Done()
		return &Result{
			Outcome: relay.Outcome{State: relay.StateDone, Text: NothingToSummarizeMessage},
			Empty:   true,
		}, nil
	}

	session, err := s.relay.Open(ctx, r.generation)
	if err != nil {
		return nil, err
	}
	r.metadata.Model = session.Model()

	result := &Result{Metadata: r.metadata}
	result.Outcome = session.Run(ctx, sink, relay.Options{
		Meta: r.metadata,
		Finalize: func(ctx context.Context, text string) {
			result.Record = s.complete(ctx, r, text)
		},
	})
	return result, nil
}

// GenerateText runs a one-shot generation, with rate-limit retries since no
// client has seen any text yet, and returns the stored record.
func (s *Service) GenerateText(ctx context.Context, req *Request) (*models.SummaryHistoryRecord, error) {
	r, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNothingToSummarize
	}

	content, err := s.generator.GenerateContent(ctx, r.generation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	r.metadata.Model = content.Model

	record := s.complete(ctx, r, content.Text)
	if record == nil {
		return nil, ErrHistoryNotSaved
	}
	return record, nil
}

// finalize persists the completed summary. A failed insert is logged: the
// client already has the full text.
func (s *Service) finalize(ctx context.Context, ownerID, text string, meta *models.SummaryMetadata, allowed []string) *models.SummaryHistoryRecord {
	record := &models.SummaryHistoryRecord{
		ID:             common.NewSummaryID(),
		OwnerID:        ownerID,
		Title:          Title(text, s.now()),
		Preview:        Preview(text),
		FullText:       text,
		CreatedAt:      s.now(),
		ItemCount:      meta.ItemCount,
		SourceCount:    meta.SourceCount,
		SourceIDs:      meta.SourceIDs,
		PriorityCounts: meta.PriorityCounts,
		Model:          meta.Model,
	}

	if err := s.storage.HistoryStorage().InsertSummary(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("owner", ownerID).Msg("Failed to save summary history")
		return nil
	}

	report := prompt.CheckCitations(text, allowed)
	s.logger.Info().Str("id", record.ID).Int("items", record.ItemCount).Msg("Summary saved")
	if !report.Compliant() {
		s.logger.Warn().
			Str("id", record.ID).
			Int("claims", report.Claims).
			Int("cited", report.Cited).
			Int("uncited", len(report.Uncited)).
			Strs("unknown_sources", report.UnknownNames).
			Msg("Summary has uncited claims")
	}

	return record
}

// markCandidatesRead flags every fetched candidate, selected or not
func (s *Service) markCandidatesRead(ctx context.Context, candidates []*models.KnowledgeItem) {
	ids := make([]string, 0, len(candidates))
	for _, item := range candidates {
		ids = append(ids, item.ID)
	}
	changed, err := s.storage.KnowledgeStorage().MarkRead(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Int("items", len(ids)).Msg("Failed to mark summary candidates read")
		return
	}
	s.logger.Debug().Int("changed", changed).Int("items", len(ids)).Msg("Summary candidates marked read")
}

// Title is the first non-empty line of the summary, or a dated fallback
func Title(text string, now time.Time) string {
	line := markup.FirstLine(prompt.StripCitations(text))
	line = strings.TrimSpace(markup.StripMarkdown(line))
	if line == "" {
		return "Research summary " + now.Format("2006-01-02")
	}
	return markup.Truncate(line, titleRunes)
}

// Preview is the plain-text opening of the summary
func Preview(text string) string {
	return markup.Truncate(markup.StripMarkdown(prompt.StripCitations(text)), previewRunes)
}

// List returns the caller's summaries, newest first
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]*models.SummaryHistoryRecord, error) {
	return s.storage.HistoryStorage().ListSummaries(ctx, s.accounts.Owners(ctx, accountID), limit)
}

// Get returns one summary visible to the caller
func (s *Service) Get(ctx context.Context, accountID, id string) (*models.SummaryHistoryRecord, error) {
	record, err := s.storage.HistoryStorage().GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(ctx, accountID, record) {
		return nil, interfaces.ErrNotFound
	}
	return record, nil
}

// ToggleFavorite flips the favorite flag and returns the new value
func (s *Service) ToggleFavorite(ctx context.Context, accountID, id string) (bool, error) {
	if _, err := s.Get(ctx, accountID, id); err != nil {
		return false, err
	}
	return s.storage.HistoryStorage().ToggleFavorite(ctx, id)
}

// Delete removes a summary
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	if _, err := s.Get(ctx, accountID, id); err != nil {
		return err
	}
	return s.storage.HistoryStorage().DeleteSummary(ctx, id)
}

func (s *Service) visible(ctx context.Context, accountID string, record *models.SummaryHistoryRecord) bool {
	for _, owner := range s.accounts.Owners(ctx, accountID) {
		if record.OwnerID == owner {
			return true
		}
	}
	return false
}
