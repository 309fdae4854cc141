package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/storage/badger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	resolver := accounts.NewResolver(&common.AccountsConfig{DefaultAccountID: "alice", SharedAccountID: "shared"}, nil, logger)
	return NewService(manager.SourceStorage(), resolver, logger)
}

func TestCreateSource(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	source := &models.SourceDescriptor{Name: "  Macro Wire ", FeedURL: "https://www.example.com/rss", Enabled: true}
	require.NoError(t, s.CreateSource(ctx, "", source))
	assert.NotEmpty(t, source.ID)
	assert.Equal(t, "alice", source.OwnerID)
	assert.Equal(t, "Macro Wire", source.Name)
	assert.Equal(t, models.DefaultPriorityTier, source.PriorityTier)

	err := s.CreateSource(ctx, "alice", &models.SourceDescriptor{Name: "macro wire"})
	assert.ErrorIs(t, err, interfaces.ErrDuplicateSourceName)

	// Another account may reuse the name
	require.NoError(t, s.CreateSource(ctx, "bob", &models.SourceDescriptor{Name: "Macro Wire"}))

	err = s.CreateSource(ctx, "alice", &models.SourceDescriptor{Name: "Bad Tier", PriorityTier: 9})
	assert.Error(t, err)
}

func TestSourceVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	own := &models.SourceDescriptor{Name: "Own Desk", PriorityTier: 4}
	shared := &models.SourceDescriptor{Name: "House View", PriorityTier: 5}
	other := &models.SourceDescriptor{Name: "Bob Desk"}
	require.NoError(t, s.CreateSource(ctx, "alice", own))
	require.NoError(t, s.CreateSource(ctx, "shared", shared))
	require.NoError(t, s.CreateSource(ctx, "bob", other))

	list, err := s.ListSources(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "House View", list[0].Name)
	assert.Equal(t, "Own Desk", list[1].Name)

	_, err = s.GetSource(ctx, "alice", shared.ID)
	assert.NoError(t, err)
	_, err = s.GetSource(ctx, "alice", other.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	// Shared sources are readable but not writable
	assert.ErrorIs(t, s.DeleteSource(ctx, "alice", shared.ID), interfaces.ErrNotFound)
	require.NoError(t, s.DeleteSource(ctx, "alice", own.ID))
	_, err = s.GetSource(ctx, "alice", own.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestUpdateSource(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	source := &models.SourceDescriptor{Name: "Desk Notes"}
	require.NoError(t, s.CreateSource(ctx, "alice", source))
	created := source.CreatedAt

	update := &models.SourceDescriptor{ID: source.ID, Name: "Desk Research", PriorityTier: 5, Enabled: true, OwnerID: "mallory"}
	require.NoError(t, s.UpdateSource(ctx, "alice", update))
	assert.Equal(t, "Desk Research", update.Name)
	assert.Equal(t, "alice", update.OwnerID)
	assert.Equal(t, 5, update.PriorityTier)
	assert.True(t, created.Equal(update.CreatedAt))

	err := s.UpdateSource(ctx, "bob", &models.SourceDescriptor{ID: source.ID, Name: "Hijack"})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
