package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/chat"
	"github.com/ternarybob/dealdesk/internal/services/enrichment"
	"github.com/ternarybob/dealdesk/internal/services/feeds"
	"github.com/ternarybob/dealdesk/internal/services/llm"
	"github.com/ternarybob/dealdesk/internal/services/pdf"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/scheduler"
	"github.com/ternarybob/dealdesk/internal/services/sources"
	"github.com/ternarybob/dealdesk/internal/services/summary"
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

type scriptedProvider struct {
	chunks      []interfaces.StreamChunk
	generateErr error
}

func (p *scriptedProvider) OpenStream(ctx context.Context, request *interfaces.GenerationRequest) (interfaces.ChunkStream, error) {
	return &scriptedStream{chunks: p.chunks}, nil
}

func (p *scriptedProvider) ModelFor(request *interfaces.GenerationRequest) string {
	return "test-model"
}

func (p *scriptedProvider) GenerateContent(ctx context.Context, request *interfaces.GenerationRequest) (*interfaces.GeneratedContent, error) {
	if p.generateErr != nil {
		return nil, p.generateErr
	}
	return &interfaces.GeneratedContent{Text: p.chunks[len(p.chunks)-1].Text, Model: "test-model"}, nil
}

type fixture struct {
	provider *scriptedProvider
	storage  interfaces.StorageManager
	chat     *chat.Service
	summary  *summary.Service
	sources  *sources.Service
	resolver *accounts.Resolver
	logger   arbor.ILogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	provider := &scriptedProvider{chunks: []interfaces.StreamChunk{
		{Text: "checking notes", Thinking: true},
		{Text: "## Outlook\nCopper demand is rising. [SOURCE: Macro Wire | URL: https://example.com/a]"},
	}}
	streamRelay := relay.NewRelay(provider, time.Minute, logger)
	resolver := accounts.NewResolver(&common.AccountsConfig{DefaultAccountID: "alice"}, manager.KeyValueStorage(), logger)

	return &fixture{
		provider: provider,
		storage:  manager,
		chat: chat.NewService(manager, resolver, enrichment.NewEnricher(nil, nil, logger), streamRelay,
			&common.ChatConfig{MaxHistory: 4}, logger),
		summary: summary.NewService(manager, resolver, streamRelay, provider,
			&common.SummaryConfig{GlobalCap: 160, MaxCandidates: 100, MarkRead: true}, logger),
		sources:  sources.NewService(manager.SourceStorage(), resolver, logger),
		resolver: resolver,
		logger:   logger,
	}
}

func (f *fixture) seedItem(t *testing.T, owner string) {
	t.Helper()
	ctx := context.Background()
	source := &models.SourceDescriptor{OwnerID: owner, Name: "Macro Wire", PriorityTier: 5}
	require.NoError(t, f.storage.SourceStorage().SaveSource(ctx, source))
	published := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.storage.KnowledgeStorage().SaveItem(ctx, &models.KnowledgeItem{
		OwnerID: owner, SourceID: source.ID, SourceName: source.Name,
		Title: "Copper demand", Body: "Copper demand is rising on grid spending.",
		URL: "https://example.com/a", PublishedAt: &published,
	}))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", interfaces.ErrNotFound), http.StatusNotFound},
		{"duplicate source", interfaces.ErrDuplicateSourceName, http.StatusConflict},
		{"empty message", chat.ErrEmptyMessage, http.StatusBadRequest},
		{"nothing to summarize", summary.ErrNothingToSummarize, http.StatusBadRequest},
		{"sync running", feeds.ErrSyncRunning, http.StatusConflict},
		{"rate limited", &llm.UpstreamError{Provider: "claude", StatusCode: 429}, http.StatusTooManyRequests},
		{"upstream", &llm.UpstreamError{Provider: "gemini", StatusCode: 500}, http.StatusBadGateway},
		{"timeout", relay.ErrGenerationTimeout, http.StatusGatewayTimeout},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"message":"how is copper?"}`, ""},
		{"missing message", `{"symbol":"FCX"}`, "message failed required"},
		{"malformed", `{"message":`, "invalid request body"},
		{"empty body", ``, "message failed required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			var req chat.Request
			err := DecodeJSON(httptest.NewRecorder(), r, &req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChatStreamHandler(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "alice")
	handler := NewChatHandler(f.chat, f.logger)

	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"copper demand"}`))
	w := httptest.NewRecorder()
	handler.StreamHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `"thinking":true`)
	assert.Contains(t, body, "Copper demand is rising.")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	w = httptest.NewRecorder()
	handler.StreamHandler(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func newSummaryMux(f *fixture) *http.ServeMux {
	h := NewSummaryHandler(f.summary, pdf.NewService(f.logger), f.logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/summaries", h.GenerateHandler)
	mux.HandleFunc("GET /api/summaries", h.ListHandler)
	mux.HandleFunc("GET /api/summaries/{id}", h.GetHandler)
	mux.HandleFunc("DELETE /api/summaries/{id}", h.DeleteHandler)
	mux.HandleFunc("POST /api/summaries/{id}/favorite", h.FavoriteHandler)
	mux.HandleFunc("GET /api/summaries/{id}/pdf", h.PDFHandler)
	return mux
}

func TestSummaryHandlers(t *testing.T) {
	f := newFixture(t)
	mux := newSummaryMux(f)

	// Nothing unread yet
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summaries?stream=false", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.seedItem(t, "alice")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summaries", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"type":"meta"`)
	assert.Contains(t, body, `"type":"delta"`)
	assert.NotContains(t, body, "checking notes")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	records, err := f.summary.List(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	id := records[0].ID

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summaries/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Outlook"`)

	// Another account cannot see it
	r := httptest.NewRequest(http.MethodGet, "/api/summaries/"+id, nil)
	r.Header.Set(AccountHeader, "bob")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summaries/"+id+"/favorite", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_favorite":true`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summaries/"+id+"/pdf", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="outlook.pdf"`)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/summaries/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summaries/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaryHandlers_NonStreaming(t *testing.T) {
	f := newFixture(t)
	mux := newSummaryMux(f)
	f.seedItem(t, "alice")

	f.provider.generateErr = &llm.UpstreamError{StatusCode: http.StatusTooManyRequests, Provider: llm.ProviderGemini}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summaries?stream=false", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.provider.generateErr = nil
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summaries?stream=false", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"title":"Outlook"`)
	assert.Contains(t, w.Body.String(), `"model":"test-model"`)
}

func TestSourcesHandlers(t *testing.T) {
	f := newFixture(t)
	h := NewSourcesHandler(f.sources, f.logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sources", h.ListSourcesHandler)
	mux.HandleFunc("POST /api/sources", h.CreateSourceHandler)
	mux.HandleFunc("PUT /api/sources/{id}", h.UpdateSourceHandler)
	mux.HandleFunc("DELETE /api/sources/{id}", h.DeleteSourceHandler)

	create := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sources", strings.NewReader(body)))
		return w
	}

	assert.Equal(t, http.StatusCreated, create(`{"name":"Macro Wire","priority_tier":5,"feed_url":"https://example.com/rss"}`).Code)
	assert.Equal(t, http.StatusConflict, create(`{"name":"MACRO WIRE"}`).Code)
	assert.Equal(t, http.StatusBadRequest, create(`{"name":"Bad","priority_tier":7}`).Code)
	assert.Equal(t, http.StatusBadRequest, create(`{"name":"Bad","feed_url":"not a url"}`).Code)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Macro Wire"`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sources/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubJobs struct {
	triggered []string
}

func (s *stubJobs) TriggerJob(name string) error {
	s.triggered = append(s.triggered, name)
	return nil
}

func (s *stubJobs) JobStatuses() []scheduler.JobStatus { return nil }

type stubSync struct {
	running bool
}

func (s *stubSync) Running() bool { return s.running }
func (s *stubSync) Stop() bool    { return s.running }

func TestSchedulerHandler(t *testing.T) {
	jobs := &stubJobs{}
	sync := &stubSync{}
	h := NewSchedulerHandler(jobs, sync, arbor.NewLogger())

	w := httptest.NewRecorder()
	h.TriggerSyncHandler(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{FeedSyncJob}, jobs.triggered)

	sync.running = true
	w = httptest.NewRecorder()
	h.TriggerSyncHandler(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	h.StopSyncHandler(w, httptest.NewRequest(http.MethodPost, "/api/sync/stop", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":true`)
}

func TestWebSocketChat(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "alice")
	h := NewWebSocketHandler(f.chat, f.summary, 5*time.Second, f.logger)

	server := httptest.NewServer(http.HandlerFunc(h.ChatHandler))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	readEvents := func(request string) []models.StreamEvent {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(request)))

		var events []models.StreamEvent
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var event models.StreamEvent
			if err := conn.ReadJSON(&event); err != nil {
				break
			}
			events = append(events, event)
			if event.Kind == models.StreamEventDone {
				break
			}
		}
		return events
	}

	events := readEvents(`{"message":"copper demand"}`)
	require.NotEmpty(t, events)
	assert.Equal(t, models.StreamEventDone, events[len(events)-1].Kind)
	var text strings.Builder
	for _, event := range events {
		if event.Kind == models.StreamEventDelta && !event.Thinking {
			text.WriteString(event.Text)
		}
	}
	assert.Contains(t, text.String(), "Copper demand is rising.")

	events = readEvents(`{"message":""}`)
	require.Len(t, events, 2)
	assert.Equal(t, models.StreamEventError, events[0].Kind)
	assert.Contains(t, events[0].Error, "message failed required")
	assert.Equal(t, models.StreamEventDone, events[1].Kind)
}
