package ranking

import (
	"sort"

	"github.com/ternarybob/dealdesk/internal/models"
)

const (
	// DefaultGlobalCap is the summary selection size when the caller does not override it
	DefaultGlobalCap = 160
	// MaxGlobalCap is the hard ceiling for any override
	MaxGlobalCap = 200
)

// PerGroupCap is the most items one source of the given tier may contribute
func PerGroupCap(tier int) int {
	switch models.ClampTier(tier) {
	case 5:
		return 12
	case 4:
		return 10
	case 3:
		return 8
	case 2:
		return 6
	default:
		return 4
	}
}

// ClampGlobalCap maps a requested cap onto [1, MaxGlobalCap]; zero means default
func ClampGlobalCap(requested int) int {
	switch {
	case requested == 0:
		return DefaultGlobalCap
	case requested < 1:
		return 1
	case requested > MaxGlobalCap:
		return MaxGlobalCap
	default:
		return requested
	}
}

// PrioritySelection is the result of a tier-based selection
type PrioritySelection struct {
	Items          []*models.KnowledgeItem
	Tiers          map[string]int // item id -> effective tier
	SourceIDs      []string       // Distinct sources in admission order
	PriorityCounts map[int]int    // tier -> admitted items
}

// SelectByPriority orders items by (tier desc, published desc, undated last),
// preserving input order among ties, and admits each one while its source is
// under PerGroupCap and the selection is under globalCap. Items whose source is
// unknown inherit the default tier.
func SelectByPriority(items []*models.KnowledgeItem, sources []*models.SourceDescriptor, globalCap int) *PrioritySelection {
	globalCap = ClampGlobalCap(globalCap)

	tierBySource := make(map[string]int, len(sources))
	for _, s := range sources {
		tierBySource[s.ID] = s.Tier()
	}
	tierOf := func(item *models.KnowledgeItem) int {
		if tier, ok := tierBySource[item.SourceID]; ok {
			return tier
		}
		return models.DefaultPriorityTier
	}

	ordered := make([]*models.KnowledgeItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := tierOf(ordered[i]), tierOf(ordered[j])
		if ti != tj {
			return ti > tj
		}
		return newer(ordered[i].PublishedAt, ordered[j].PublishedAt)
	})

	selection := &PrioritySelection{
		Items:          make([]*models.KnowledgeItem, 0, min(globalCap, len(items))),
		Tiers:          make(map[string]int),
		SourceIDs:      []string{},
		PriorityCounts: make(map[int]int),
	}
	usage := make(map[string]int)

	for _, item := range ordered {
		if len(selection.Items) >= globalCap {
			break
		}
		tier := tierOf(item)
		if usage[item.SourceID] >= PerGroupCap(tier) {
			continue
		}
		if usage[item.SourceID] == 0 {
			selection.SourceIDs = append(selection.SourceIDs, item.SourceID)
		}
		usage[item.SourceID]++
		selection.Items = append(selection.Items, item)
		selection.Tiers[item.ID] = tier
		selection.PriorityCounts[tier]++
	}

	return selection
}
