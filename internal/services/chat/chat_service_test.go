package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/enrichment"
	"github.com/ternarybob/dealdesk/internal/services/prompt"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/websearch"
	"github.com/ternarybob/dealdesk/internal/storage/badger"
)

type scriptedStream struct {
	chunks []interfaces.StreamChunk
	pos    int
}

func (s *scriptedStream) Recv() (interfaces.StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		return interfaces.StreamChunk{}, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

type recordingProvider struct {
	chunks  []interfaces.StreamChunk
	openErr error
	request *interfaces.GenerationRequest
}

func (p *recordingProvider) OpenStream(ctx context.Context, request *interfaces.GenerationRequest) (interfaces.ChunkStream, error) {
	p.request = request
	if p.openErr != nil {
		return nil, p.openErr
	}
	return &scriptedStream{chunks: p.chunks}, nil
}

func (p *recordingProvider) ModelFor(request *interfaces.GenerationRequest) string {
	return "test-model"
}

type stubWeb struct {
	answer *websearch.Answer
	err    error
}

func (w *stubWeb) Search(ctx context.Context, query string) (*websearch.Answer, error) {
	return w.answer, w.err
}

type fixture struct {
	service  *Service
	provider *recordingProvider
	storage  interfaces.StorageManager
}

func newFixture(t *testing.T, web enrichment.WebSearcher) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	provider := &recordingProvider{chunks: []interfaces.StreamChunk{
		{Text: "weighing notes", Thinking: true},
		{Text: "Margins improved. [SOURCE: Stock Note AAPL 2026-03-02 | URL: none]"},
	}}

	resolver := accounts.NewResolver(&common.AccountsConfig{DefaultAccountID: "alice"}, manager.KeyValueStorage(), logger)
	enricher := enrichment.NewEnricher(nil, web, logger)

	service := NewService(manager, resolver, enricher, relay.NewRelay(provider, time.Minute, logger),
		&common.ChatConfig{EnableWebSearch: true, MaxHistory: 2}, logger)
	service.now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }

	return &fixture{service: service, provider: provider, storage: manager}
}

func day(d int) *time.Time {
	t := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStream_AnswersFromNotes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.storage.NoteStorage().SaveNote(ctx, &models.Note{
		OwnerID: "alice", Kind: models.NoteKindStock, Symbol: "aapl", Content: "Margin expansion on services", Date: day(2),
	}))
	require.NoError(t, f.storage.NoteStorage().SaveNote(ctx, &models.Note{
		OwnerID: "bob", Kind: models.NoteKindStock, Symbol: "AAPL", Content: "Someone else's note", Date: day(3),
	}))

	sink := relay.NewCollectSink()
	outcome, err := f.service.Stream(ctx, &Request{Message: "How are margins trending?", Symbol: "aapl"}, sink)
	require.NoError(t, err)

	assert.Equal(t, relay.StateDone, outcome.State)
	assert.Equal(t, "Margins improved. [SOURCE: Stock Note AAPL 2026-03-02 | URL: none]", sink.Text())
	assert.Equal(t, "weighing notes", sink.Thinking())

	require.NotNil(t, f.provider.request)
	system := f.provider.request.SystemInstruction
	assert.Contains(t, system, "- Stock Note AAPL 2026-03-02")
	assert.Contains(t, system, "Margin expansion on services")
	assert.NotContains(t, system, "Someone else's note")
	assert.Contains(t, system, "ticker AAPL")
}

func TestStream_NoMatches(t *testing.T) {
	f := newFixture(t, nil)

	sink := relay.NewCollectSink()
	outcome, err := f.service.Stream(context.Background(), &Request{Message: "anything new?"}, sink)
	require.NoError(t, err)

	assert.Equal(t, NoMatchesMessage, outcome.Text)
	assert.Equal(t, NoMatchesMessage, sink.Text())
	assert.Nil(t, f.provider.request, "no generation without context")
	require.NotEmpty(t, sink.Events)
	assert.Equal(t, models.StreamEventDone, sink.Events[len(sink.Events)-1].Kind)
}

func TestStream_EmptyMessage(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.Stream(context.Background(), &Request{Message: "   "}, relay.NewCollectSink())
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestStream_OpenFailureReturnsError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.storage.NoteStorage().SaveNote(ctx, &models.Note{
		OwnerID: "alice", Kind: models.NoteKindDaily, Content: "Rates on hold", Date: day(4),
	}))

	upstream := errors.New("upstream unavailable")
	f.provider.openErr = upstream

	sink := relay.NewCollectSink()
	_, err := f.service.Stream(ctx, &Request{Message: "rates outlook"}, sink)
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, sink.Events, "nothing written before the stream opens")
}

func TestStream_WebSearchSection(t *testing.T) {
	f := newFixture(t, &stubWeb{answer: &websearch.Answer{
		Query:     "copper prices",
		Content:   "Copper rose 3% this week.",
		Citations: []string{"https://example.com/copper"},
	}})

	_, err := f.service.Stream(context.Background(), &Request{Message: "copper prices"}, relay.NewCollectSink())
	require.NoError(t, err)

	system := f.provider.request.SystemInstruction
	assert.Contains(t, system, "- Web Search")
	assert.Contains(t, system, "URL: https://example.com/copper")
	assert.Contains(t, system, "[1] https://example.com/copper")
}

func TestStream_WebSearchDisabledPerRequest(t *testing.T) {
	f := newFixture(t, &stubWeb{answer: &websearch.Answer{Content: "ignored"}})
	off := false

	sink := relay.NewCollectSink()
	_, err := f.service.Stream(context.Background(), &Request{Message: "copper prices", EnableWebSearch: &off}, sink)
	require.NoError(t, err)
	assert.Equal(t, NoMatchesMessage, sink.Text())
}

func TestConversation_TrimsHistory(t *testing.T) {
	f := newFixture(t, nil)
	history := []interfaces.Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "  "},
	}

	turns := f.service.conversation(history, "four")
	var contents []string
	for _, m := range turns {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"two", "three", "four"}, contents)
	assert.Equal(t, "user", turns[len(turns)-1].Role)
}

func TestNoteSourceName(t *testing.T) {
	tests := []struct {
		name string
		note models.Note
		want string
	}{
		{"stock", models.Note{Kind: models.NoteKindStock, Symbol: "MSFT", Date: day(1)}, "Stock Note MSFT 2026-03-01"},
		{"daily", models.Note{Kind: models.NoteKindDaily, Date: day(2)}, "Daily Note 2026-03-02"},
		{"weekly", models.Note{Kind: models.NoteKindWeekly, Date: day(3)}, "Weekly Note 2026-03-03"},
		{"undated", models.Note{Kind: models.NoteKindDaily}, "Daily Note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NoteSourceName(&tt.note))
		})
	}
}

func TestItemEntries_PrefersCurrentSourceName(t *testing.T) {
	items := []*models.KnowledgeItem{
		{SourceID: "s1", SourceName: "Old Name", Body: "**Bold** claim"},
		{SourceID: "gone", SourceName: "Archived Feed", Summary: "kept summary"},
	}
	entries := itemEntries(items, map[string]string{"s1": "Macro Wire"})

	require.Len(t, entries, 2)
	assert.Equal(t, "Macro Wire", entries[0].SourceName)
	assert.True(t, strings.HasPrefix(entries[0].Body, "Bold claim"))
	assert.Equal(t, "Archived Feed", entries[1].SourceName)
	assert.Equal(t, "kept summary", entries[1].Body)
}

func TestItemEntries_ManualItemsAreCitable(t *testing.T) {
	items := []*models.KnowledgeItem{
		{Title: "Desk call", Body: `<p>Client asked about <a href="https://example.com/copper">copper</a></p>`},
	}
	entries := itemEntries(items, map[string]string{})

	require.Len(t, entries, 1)
	assert.Equal(t, prompt.ManualSourceName, entries[0].SourceName)
	assert.Equal(t, "Client asked about copper", entries[0].Body)

	p := prompt.NewChatPrompt("", time.Now())
	p.Add(prompt.SectionResearch, entries...)
	assert.Contains(t, p.SourceNames(), prompt.ManualSourceName)
}
