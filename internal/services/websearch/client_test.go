package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
)

func TestClient_SearchSendsRequestAndCaches(t *testing.T) {
	var calls int32
	var got chatRequest
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" NVDA rose 4% "}}],"citations":["https://news.test/1"]}`))
	}))
	defer server.Close()

	client := NewClient(&common.PerplexityConfig{
		APIKey:        "pk",
		BaseURL:       server.URL,
		Model:         "sonar-pro",
		MaxTokens:     300,
		RecencyFilter: "week",
	}, nil, arbor.NewLogger())

	answer, err := client.Search(context.Background(), "NVDA news")
	require.NoError(t, err)
	assert.Equal(t, "NVDA rose 4%", answer.Content)
	assert.Equal(t, []string{"https://news.test/1"}, answer.Citations)

	assert.Equal(t, "Bearer pk", auth)
	assert.Equal(t, "sonar-pro", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.Equal(t, "week", got.SearchRecencyFilter)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "NVDA news", got.Messages[1].Content)

	_, err = client.Search(context.Background(), "NVDA news")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup served from cache")
}

func TestClient_SearchFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer empty":
			w.Write([]byte(`{"choices":[]}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	limited := NewClient(&common.PerplexityConfig{APIKey: "k", BaseURL: server.URL}, nil, arbor.NewLogger())
	_, err := limited.Search(context.Background(), "q")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)

	empty := NewClient(&common.PerplexityConfig{APIKey: "empty", BaseURL: server.URL}, nil, arbor.NewLogger())
	_, err = empty.Search(context.Background(), "q")
	assert.Error(t, err)

	_, err = empty.Search(context.Background(), "  ")
	assert.Error(t, err)
}
