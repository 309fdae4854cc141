package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
)

func setupTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestKnowledgeStorage_MarkReadIsIdempotent(t *testing.T) {
	m := setupTestManager(t)
	store := m.KnowledgeStorage()
	ctx := context.Background()

	a := &models.KnowledgeItem{OwnerID: "alice", SourceID: "src_1", Title: "A"}
	b := &models.KnowledgeItem{OwnerID: "alice", SourceID: "src_1", Title: "B"}
	require.NoError(t, store.SaveItem(ctx, a))
	require.NoError(t, store.SaveItem(ctx, b))

	changed, err := store.MarkRead(ctx, []string{a.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	changed, err = store.MarkRead(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, changed, "second mark-read must be a no-op")

	unread, err := store.ListItems(ctx, models.ItemFilter{OwnerIDs: []string{"alice"}, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, b.ID, unread[0].ID)
}

func TestKnowledgeStorage_ListFiltersByOwner(t *testing.T) {
	m := setupTestManager(t)
	store := m.KnowledgeStorage()
	ctx := context.Background()

	for _, owner := range []string{"alice", "shared", "bob"} {
		require.NoError(t, store.SaveItem(ctx, &models.KnowledgeItem{OwnerID: owner, SourceID: "src_1", Title: owner}))
	}

	items, err := store.ListItems(ctx, models.ItemFilter{OwnerIDs: []string{"alice", "shared"}})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.NotEqual(t, "bob", item.OwnerID)
	}

	all, err := store.ListItems(ctx, models.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestKnowledgeStorage_UpsertFeedItemsKeepsReadFlag(t *testing.T) {
	m := setupTestManager(t)
	store := m.KnowledgeStorage()
	ctx := context.Background()

	first := []*models.KnowledgeItem{{OwnerID: "alice", SourceID: "src_1", GUID: "g1", Title: "v1"}}
	created, err := store.UpsertFeedItems(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	_, err = store.MarkRead(ctx, []string{first[0].ID})
	require.NoError(t, err)

	again := []*models.KnowledgeItem{
		{OwnerID: "alice", SourceID: "src_1", GUID: "g1", Title: "v2"},
		{OwnerID: "alice", SourceID: "src_1", GUID: "g2", Title: "new"},
	}
	created, err = store.UpsertFeedItems(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, first[0].ID, again[0].ID)

	got, err := store.GetItem(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.True(t, got.IsRead)
}

func TestSourceStorage_NameUniquePerOwner(t *testing.T) {
	m := setupTestManager(t)
	store := m.SourceStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "alice", Name: "Alpha Feed", PriorityTier: 5}))
	err := store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "alice", Name: "alpha feed"})
	assert.ErrorIs(t, err, interfaces.ErrDuplicateSourceName)

	require.NoError(t, store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "bob", Name: "Alpha Feed"}))

	got, err := store.GetSourceByName(ctx, "alice", "ALPHA FEED")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Tier())

	_, err = store.GetSourceByName(ctx, "carol", "Alpha Feed")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestSourceStorage_ListOrdersByTier(t *testing.T) {
	m := setupTestManager(t)
	store := m.SourceStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "alice", Name: "Zeta", PriorityTier: 5}))
	require.NoError(t, store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "alice", Name: "Beta", PriorityTier: 2}))
	require.NoError(t, store.SaveSource(ctx, &models.SourceDescriptor{OwnerID: "alice", Name: "Alpha", PriorityTier: 5}))

	sources, err := store.ListSources(ctx, []string{"alice"})
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, []string{"Alpha", "Zeta", "Beta"}, []string{sources[0].Name, sources[1].Name, sources[2].Name})
}

func TestHistoryStorage_FavoriteAndList(t *testing.T) {
	m := setupTestManager(t)
	store := m.HistoryStorage()
	ctx := context.Background()

	older := &models.SummaryHistoryRecord{OwnerID: "alice", Title: "older", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.SummaryHistoryRecord{OwnerID: "alice", Title: "newer", PriorityCounts: map[int]int{5: 2}}
	require.NoError(t, store.InsertSummary(ctx, older))
	require.NoError(t, store.InsertSummary(ctx, newer))
	assert.Error(t, store.InsertSummary(ctx, newer), "records are insert-only")

	list, err := store.ListSummaries(ctx, []string{"alice"}, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Title)
	assert.Equal(t, 2, list[0].PriorityCounts[5])

	fav, err := store.ToggleFavorite(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, fav)
	fav, err = store.ToggleFavorite(ctx, older.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	_, err = store.ToggleFavorite(ctx, "sum_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.DeleteSummary(ctx, older.ID))
	_, err = store.GetSummary(ctx, older.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestNoteStorage_ListByKindAndSymbol(t *testing.T) {
	m := setupTestManager(t)
	store := m.NoteStorage()
	ctx := context.Background()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	later := day.AddDate(0, 0, 1)
	require.NoError(t, store.SaveNote(ctx, &models.Note{OwnerID: "alice", Kind: models.NoteKindStock, Symbol: "aapl", Content: "first", Date: &day}))
	require.NoError(t, store.SaveNote(ctx, &models.Note{OwnerID: "alice", Kind: models.NoteKindStock, Symbol: "AAPL", Content: "second", Date: &later}))
	require.NoError(t, store.SaveNote(ctx, &models.Note{OwnerID: "alice", Kind: models.NoteKindDaily, Content: "daily"}))

	notes, err := store.ListNotes(ctx, models.NoteFilter{OwnerIDs: []string{"alice"}, Kind: models.NoteKindStock, Symbol: "aapl"})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Content)
	assert.Equal(t, "AAPL", notes[1].Symbol)

	daily, err := store.ListNotes(ctx, models.NoteFilter{OwnerIDs: []string{"alice"}, Kind: models.NoteKindDaily})
	require.NoError(t, err)
	assert.Len(t, daily, 1)
}

func TestKVStorage_CaseInsensitive(t *testing.T) {
	m := setupTestManager(t)
	kv := m.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "Shared_Account_ID", "team", "shared rows"))
	value, err := kv.Get(ctx, interfaces.KeySharedAccountID)
	require.NoError(t, err)
	assert.Equal(t, "team", value)

	require.NoError(t, kv.Delete(ctx, "SHARED_ACCOUNT_ID"))
	_, err = kv.Get(ctx, interfaces.KeySharedAccountID)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}
