// Package enrichment gathers optional outside context for a chat turn. Every
// source is best effort: a failure yields an absent result, never an error.
package enrichment

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/notion"
	"github.com/ternarybob/dealdesk/internal/services/websearch"
	"golang.org/x/sync/errgroup"
)

// Result holds a value that may be absent
type Result[T any] struct {
	Value   T
	present bool
	Reason  string // Why the value is absent
}

// Present wraps an available value
func Present[T any](value T) Result[T] {
	return Result[T]{Value: value, present: true}
}

// Absent records why no value is available
func Absent[T any](reason string) Result[T] {
	return Result[T]{Reason: reason}
}

// OK reports whether the value is available
func (r Result[T]) OK() bool {
	return r.present
}

// NotionSearcher looks up workspace pages by keyword
type NotionSearcher interface {
	Search(ctx context.Context, keywords []string) ([]notion.Document, error)
}

// WebSearcher answers a free-text query from the web
type WebSearcher interface {
	Search(ctx context.Context, query string) (*websearch.Answer, error)
}

// Request selects which sources run
type Request struct {
	Query     string
	Keywords  []string
	Notion    bool
	WebSearch bool
}

// Bundle is the outcome of one Gather
type Bundle struct {
	Notion    Result[[]notion.Document]
	WebSearch Result[*websearch.Answer]
}

// Enricher runs the configured sources concurrently
type Enricher struct {
	notion NotionSearcher
	web    WebSearcher
	logger arbor.ILogger
}

// NewEnricher creates an enricher; either source may be nil
func NewEnricher(notionSearcher NotionSearcher, webSearcher WebSearcher, logger arbor.ILogger) *Enricher {
	return &Enricher{notion: notionSearcher, web: webSearcher, logger: logger}
}

// Gather queries every requested source and waits for all of them
func (e *Enricher) Gather(ctx context.Context, req Request) Bundle {
	bundle := Bundle{
		Notion:    Absent[[]notion.Document]("disabled"),
		WebSearch: Absent[*websearch.Answer]("disabled"),
	}

	var g errgroup.Group

	if req.Notion && e.notion != nil {
		g.Go(func() error {
			bundle.Notion = e.lookupNotion(ctx, req.Keywords)
			return nil
		})
	}
	if req.WebSearch && e.web != nil {
		g.Go(func() error {
			bundle.WebSearch = e.lookupWeb(ctx, req.Query)
			return nil
		})
	}

	_ = g.Wait()
	return bundle
}

func (e *Enricher) lookupNotion(ctx context.Context, keywords []string) Result[[]notion.Document] {
	if len(keywords) == 0 {
		return Absent[[]notion.Document]("no keywords")
	}
	docs, err := e.notion.Search(ctx, keywords)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Notion enrichment unavailable")
		return Absent[[]notion.Document](err.Error())
	}
	if len(docs) == 0 {
		return Absent[[]notion.Document]("no matching pages")
	}
	return Present(docs)
}

func (e *Enricher) lookupWeb(ctx context.Context, query string) Result[*websearch.Answer] {
	answer, err := e.web.Search(ctx, query)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Web search enrichment unavailable")
		return Absent[*websearch.Answer](err.Error())
	}
	return Present(answer)
}
