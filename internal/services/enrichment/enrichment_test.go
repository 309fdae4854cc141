package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/notion"
	"github.com/ternarybob/dealdesk/internal/services/websearch"
)

type stubNotion struct {
	docs []notion.Document
	err  error
	got  []string
}

func (s *stubNotion) Search(ctx context.Context, keywords []string) ([]notion.Document, error) {
	s.got = keywords
	return s.docs, s.err
}

type stubWeb struct {
	answer *websearch.Answer
	err    error
}

func (s *stubWeb) Search(ctx context.Context, query string) (*websearch.Answer, error) {
	return s.answer, s.err
}

func TestEnricher_Gather(t *testing.T) {
	tests := []struct {
		name        string
		notion      *stubNotion
		web         *stubWeb
		req         Request
		wantNotion  bool
		wantWeb     bool
		notionCause string
	}{
		{
			name:       "both present",
			notion:     &stubNotion{docs: []notion.Document{{ID: "p1"}}},
			web:        &stubWeb{answer: &websearch.Answer{Content: "ok"}},
			req:        Request{Query: "q", Keywords: []string{"q"}, Notion: true, WebSearch: true},
			wantNotion: true,
			wantWeb:    true,
		},
		{
			name:        "failures are absent, not errors",
			notion:      &stubNotion{err: errors.New("notion down")},
			web:         &stubWeb{err: errors.New("search down")},
			req:         Request{Query: "q", Keywords: []string{"q"}, Notion: true, WebSearch: true},
			notionCause: "notion down",
		},
		{
			name:        "disabled sources are skipped",
			notion:      &stubNotion{docs: []notion.Document{{ID: "p1"}}},
			web:         &stubWeb{answer: &websearch.Answer{Content: "ok"}},
			req:         Request{Query: "q", Keywords: []string{"q"}},
			notionCause: "disabled",
		},
		{
			name:        "no pages found",
			notion:      &stubNotion{},
			web:         &stubWeb{answer: &websearch.Answer{Content: "ok"}},
			req:         Request{Query: "q", Keywords: []string{"q"}, Notion: true, WebSearch: true},
			wantWeb:     true,
			notionCause: "no matching pages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(tt.notion, tt.web, arbor.NewLogger())
			bundle := e.Gather(context.Background(), tt.req)

			assert.Equal(t, tt.wantNotion, bundle.Notion.OK())
			assert.Equal(t, tt.wantWeb, bundle.WebSearch.OK())
			if tt.notionCause != "" {
				assert.Equal(t, tt.notionCause, bundle.Notion.Reason)
			}
		})
	}
}

func TestEnricher_NilSources(t *testing.T) {
	e := NewEnricher(nil, nil, arbor.NewLogger())
	bundle := e.Gather(context.Background(), Request{Query: "q", Notion: true, WebSearch: true})
	assert.False(t, bundle.Notion.OK())
	assert.False(t, bundle.WebSearch.OK())
}
