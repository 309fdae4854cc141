package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/sse"
)

// fakeStream replays scripted chunks, then err (io.EOF when nil)
type fakeStream struct {
	chunks []interfaces.StreamChunk
	err    error
	block  bool // block on ctx after the script instead of ending
	ctx    context.Context
	closed bool
}

func (s *fakeStream) Recv() (interfaces.StreamChunk, error) {
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		return chunk, nil
	}
	if s.block {
		<-s.ctx.Done()
		return interfaces.StreamChunk{}, s.ctx.Err()
	}
	if s.err != nil {
		return interfaces.StreamChunk{}, s.err
	}
	return interfaces.StreamChunk{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	stream  *fakeStream
	openErr error
}

func (p *fakeProvider) OpenStream(ctx context.Context, request *interfaces.GenerationRequest) (interfaces.ChunkStream, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.stream.ctx = ctx
	return p.stream, nil
}

func (p *fakeProvider) ModelFor(request *interfaces.GenerationRequest) string {
	return "fake-model"
}

func newRelay(provider *fakeProvider) *Relay {
	return NewRelay(provider, 0, arbor.NewLogger())
}

func request() *interfaces.GenerationRequest {
	return &interfaces.GenerationRequest{Messages: []interfaces.Message{{Role: "user", Content: "hi"}}}
}

func kinds(events []models.StreamEvent) []models.StreamEventKind {
	out := make([]models.StreamEventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestRelay_NaturalCompletionFinalizesOnce(t *testing.T) {
	provider := &fakeProvider{stream: &fakeStream{chunks: []interfaces.StreamChunk{
		{Text: "considering", Thinking: true},
		{Text: "# Digest\n"},
		{Text: "Body"},
	}}}

	session, err := newRelay(provider).Open(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, StatePromptBuilt, session.State())

	sink := NewCollectSink()
	finalized := 0
	var finalText string
	outcome := session.Run(context.Background(), sink, Options{
		Meta: map[string]int{"item_count": 2},
		Finalize: func(ctx context.Context, text string) {
			finalized++
			finalText = text
		},
	})

	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, 1, finalized)
	assert.Equal(t, "# Digest\nBody", finalText)
	assert.Equal(t, "# Digest\nBody", sink.Text())
	assert.Equal(t, "considering", sink.Thinking())
	assert.Equal(t, 3, outcome.Deltas)
	assert.Equal(t, "fake-model", outcome.Model)
	assert.True(t, provider.stream.closed)
	assert.Equal(t, []models.StreamEventKind{
		models.StreamEventMeta,
		models.StreamEventDelta,
		models.StreamEventDelta,
		models.StreamEventDelta,
		models.StreamEventDone,
	}, kinds(sink.Events))
}

func TestRelay_EmptyUpstreamStillTerminates(t *testing.T) {
	provider := &fakeProvider{stream: &fakeStream{}}
	session, err := newRelay(provider).Open(context.Background(), request())
	require.NoError(t, err)

	sink := NewCollectSink()
	outcome := session.Run(context.Background(), sink, Options{})

	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, []models.StreamEventKind{models.StreamEventDone}, kinds(sink.Events))
}

func TestRelay_OpenFailurePropagates(t *testing.T) {
	openErr := errors.New("429 rate limited")
	_, err := newRelay(&fakeProvider{openErr: openErr}).Open(context.Background(), request())
	assert.ErrorIs(t, err, openErr)
}

func TestRelay_MidStreamErrorSkipsFinalize(t *testing.T) {
	provider := &fakeProvider{stream: &fakeStream{
		chunks: []interfaces.StreamChunk{{Text: "partial"}},
		err:    errors.New("connection reset"),
	}}
	session, err := newRelay(provider).Open(context.Background(), request())
	require.NoError(t, err)

	sink := NewCollectSink()
	finalized := false
	outcome := session.Run(context.Background(), sink, Options{
		Finalize: func(context.Context, string) { finalized = true },
	})

	assert.False(t, finalized)
	assert.Error(t, outcome.Err)
	assert.Equal(t, "partial", outcome.Text)
	assert.Equal(t, "connection reset", sink.ErrorMessage())
	assert.Equal(t, []models.StreamEventKind{
		models.StreamEventDelta,
		models.StreamEventError,
		models.StreamEventDone,
	}, kinds(sink.Events))
}

func TestRelay_ClientAbortSkipsFinalize(t *testing.T) {
	provider := &fakeProvider{stream: &fakeStream{
		chunks: []interfaces.StreamChunk{{Text: "first"}},
		block:  true,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	session, err := newRelay(provider).Open(ctx, request())
	require.NoError(t, err)

	sink := &cancelAfterFirstDelta{CollectSink: NewCollectSink(), cancel: cancel}
	finalized := false
	outcome := session.Run(ctx, sink, Options{
		Finalize: func(context.Context, string) { finalized = true },
	})

	assert.Equal(t, StateAborted, outcome.State)
	assert.False(t, finalized)
	assert.Equal(t, "first", sink.Text(), "delivered text is kept")
	assert.Equal(t, []models.StreamEventKind{models.StreamEventDelta, models.StreamEventDone}, kinds(sink.Events))
	assert.True(t, provider.stream.closed)
}

type cancelAfterFirstDelta struct {
	*CollectSink
	cancel context.CancelFunc
}

func (s *cancelAfterFirstDelta) Delta(text string, thinking bool) error {
	err := s.CollectSink.Delta(text, thinking)
	s.cancel()
	return err
}

func TestRelay_TimeoutReportedAsError(t *testing.T) {
	provider := &fakeProvider{stream: &fakeStream{block: true}}
	r := NewRelay(provider, 20*time.Millisecond, arbor.NewLogger())

	session, err := r.Open(context.Background(), request())
	require.NoError(t, err)

	sink := NewCollectSink()
	outcome := session.Run(context.Background(), sink, Options{})

	assert.ErrorIs(t, outcome.Err, ErrGenerationTimeout)
	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, ErrGenerationTimeout.Error(), sink.ErrorMessage())
}

func readFrames(t *testing.T, body string) []string {
	t.Helper()
	reader := sse.NewReader(bufio.NewReader(strings.NewReader(body)))
	var frames []string
	for {
		data, err := reader.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, data)
	}
}

func TestChatSSESink_WireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	sink := NewChatSSESink(w)
	require.NoError(t, sink.Meta("ignored"))
	require.NoError(t, sink.Delta("thinking...", true))
	require.NoError(t, sink.Delta("Answer", false))
	require.NoError(t, sink.Done())

	assert.Equal(t, "text/event-stream; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{
		`{"choices":[{"delta":{"content":"thinking...","thinking":true}}]}`,
		`{"choices":[{"delta":{"content":"Answer"}}]}`,
		"[DONE]",
	}, readFrames(t, rec.Body.String()))
}

func TestSummarySSESink_WireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	sink := NewSummarySSESink(w)
	require.NoError(t, sink.Meta(map[string]int{"item_count": 3}))
	require.NoError(t, sink.Delta("hidden", true))
	require.NoError(t, sink.Delta("Text", false))
	require.NoError(t, sink.Done())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		`{"type":"meta","metadata":{"item_count":3}}`,
		`{"type":"delta","text":"Text"}`,
		"[DONE]",
	}, readFrames(t, rec.Body.String()))
}
