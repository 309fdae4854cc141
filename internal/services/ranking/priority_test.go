package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/dealdesk/internal/models"
)

func sourceItems(sourceID string, n int) []*models.KnowledgeItem {
	items := make([]*models.KnowledgeItem, n)
	for i := 0; i < n; i++ {
		items[i] = &models.KnowledgeItem{
			ID:          fmt.Sprintf("%s-%02d", sourceID, i),
			SourceID:    sourceID,
			PublishedAt: day(i),
		}
	}
	return items
}

func TestPerGroupCap(t *testing.T) {
	tests := []struct {
		tier int
		want int
	}{
		{5, 12}, {4, 10}, {3, 8}, {2, 6}, {1, 4},
		{0, 8},  // unset means default tier 3
		{9, 12}, // clamped to 5
		{-2, 4}, // clamped to 1
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PerGroupCap(tt.tier), "tier %d", tt.tier)
	}
}

func TestClampGlobalCap(t *testing.T) {
	assert.Equal(t, DefaultGlobalCap, ClampGlobalCap(0))
	assert.Equal(t, 1, ClampGlobalCap(-5))
	assert.Equal(t, 50, ClampGlobalCap(50))
	assert.Equal(t, MaxGlobalCap, ClampGlobalCap(1000))
}

func TestSelectByPriority_HighTierFillsSmallGlobalCap(t *testing.T) {
	sources := []*models.SourceDescriptor{
		{ID: "s5", Name: "Top", PriorityTier: 5},
		{ID: "s3", Name: "Mid", PriorityTier: 3},
		{ID: "s1", Name: "Low", PriorityTier: 1},
	}
	var items []*models.KnowledgeItem
	items = append(items, sourceItems("s1", 20)...)
	items = append(items, sourceItems("s3", 20)...)
	items = append(items, sourceItems("s5", 20)...)

	selection := SelectByPriority(items, sources, 10)

	require.Len(t, selection.Items, 10)
	for i, it := range selection.Items {
		assert.Equal(t, "s5", it.SourceID)
		assert.Equal(t, fmt.Sprintf("s5-%02d", 19-i), it.ID, "newest first")
	}
	assert.Equal(t, map[int]int{5: 10}, selection.PriorityCounts)
	assert.Equal(t, []string{"s5"}, selection.SourceIDs)
}

func TestSelectByPriority_RespectsPerSourceCaps(t *testing.T) {
	sources := []*models.SourceDescriptor{
		{ID: "s5", PriorityTier: 5},
		{ID: "s4", PriorityTier: 4},
		{ID: "s2", PriorityTier: 2},
		{ID: "sx"}, // default tier
	}
	var items []*models.KnowledgeItem
	for _, s := range []string{"s5", "s4", "s2", "sx", "unknown"} {
		items = append(items, sourceItems(s, 30)...)
	}

	selection := SelectByPriority(items, sources, 0)

	counts := map[string]int{}
	for _, it := range selection.Items {
		counts[it.SourceID]++
	}
	assert.Equal(t, map[string]int{"s5": 12, "s4": 10, "s2": 6, "sx": 8, "unknown": 8}, counts)
	assert.Equal(t, map[int]int{5: 12, 4: 10, 3: 16, 2: 6}, selection.PriorityCounts)
	assert.LessOrEqual(t, len(selection.Items), DefaultGlobalCap)

	// Tier ordering holds across the whole selection
	for i := 1; i < len(selection.Items); i++ {
		prev, cur := selection.Items[i-1], selection.Items[i]
		pt, ct := selection.Tiers[prev.ID], selection.Tiers[cur.ID]
		assert.GreaterOrEqual(t, pt, ct)
		if pt == ct {
			assert.False(t, cur.PublishedAt.After(*prev.PublishedAt))
		}
	}
}

func TestSelectByPriority_Empty(t *testing.T) {
	selection := SelectByPriority(nil, nil, 0)
	assert.Empty(t, selection.Items)
	assert.Empty(t, selection.PriorityCounts)
}
