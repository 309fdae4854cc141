package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/models"
)

func TestRenderSummary(t *testing.T) {
	service := NewService(arbor.NewLogger())

	tests := []struct {
		name string
		body string
	}{
		{
			name: "cited bullets",
			body: "## Key Takeaways\n\n- Copper demand is rising. [SOURCE: Macro Wire | URL: https://example.com/a]\n- **Rates** on hold. [SOURCE: Fed Watch | URL: none]\n",
		},
		{
			name: "empty body",
			body: "",
		},
		{
			name: "code, rule and table",
			body: "Intro with `code` and “quotes”.\n\n---\n\n| Ticker | View |\n|---|---|\n| AAPL | Buy [SOURCE: Desk | URL: none] |\n\n```\nraw block\n```\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &models.SummaryHistoryRecord{
				ID:             "sum_1",
				Title:          "Research summary — March",
				FullText:       tt.body,
				CreatedAt:      time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
				ItemCount:      12,
				SourceCount:    3,
				PriorityCounts: map[int]int{5: 8, 3: 4},
				Model:          "gemini-2.5-flash",
			}

			data, err := service.RenderSummary(record)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
			assert.True(t, bytes.Contains(data, []byte("%%EOF")))
		})
	}
}

func TestHeaderLine(t *testing.T) {
	record := &models.SummaryHistoryRecord{
		CreatedAt:      time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
		ItemCount:      12,
		SourceCount:    3,
		PriorityCounts: map[int]int{3: 4, 5: 8},
		Model:          "claude-sonnet-4",
	}
	assert.Equal(t, "5 Mar 2026 09:30  |  12 items from 3 sources  |  P5: 8 P3: 4  |  claude-sonnet-4", headerLine(record))
}
