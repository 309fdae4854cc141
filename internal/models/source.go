package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority tier bounds. Tier 5 is the most trusted source.
const (
	MinPriorityTier     = 1
	MaxPriorityTier     = 5
	DefaultPriorityTier = 3
)

// SourceDescriptor describes a knowledge collection (feed, table or workspace).
// Name is emitted verbatim as a citation label, so it must be unique per owner.
type SourceDescriptor struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id" badgerhold:"index"`
	Name         string    `json:"name" validate:"required,max=120"`
	PriorityTier int       `json:"priority_tier" validate:"omitempty,min=1,max=5"`
	Tags         []string  `json:"tags,omitempty"`
	FeedURL      string    `json:"feed_url,omitempty" validate:"omitempty,url"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate validates the source descriptor
func (s *SourceDescriptor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if s.Name != strings.TrimSpace(s.Name) {
		return fmt.Errorf("source name must not have leading or trailing whitespace")
	}
	if s.PriorityTier != 0 && (s.PriorityTier < MinPriorityTier || s.PriorityTier > MaxPriorityTier) {
		return fmt.Errorf("priority tier must be between %d and %d", MinPriorityTier, MaxPriorityTier)
	}
	return nil
}

// Tier returns the effective priority tier: clamped to [1,5], default 3 when unset
func (s *SourceDescriptor) Tier() int {
	if s == nil {
		return DefaultPriorityTier
	}
	return ClampTier(s.PriorityTier)
}

// ClampTier maps any stored tier value onto [1,5]; zero means unset
func ClampTier(tier int) int {
	switch {
	case tier == 0:
		return DefaultPriorityTier
	case tier < MinPriorityTier:
		return MinPriorityTier
	case tier > MaxPriorityTier:
		return MaxPriorityTier
	default:
		return tier
	}
}
