package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/storage/badger"
)

func TestResolver_Owners(t *testing.T) {
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	kv := manager.KeyValueStorage()
	ctx := context.Background()
	r := NewResolver(&common.AccountsConfig{DefaultAccountID: "default", SharedAccountID: "team"}, kv, arbor.NewLogger())

	assert.Equal(t, []string{"alice", "team"}, r.Owners(ctx, "alice"))
	assert.Equal(t, []string{"default", "team"}, r.Owners(ctx, "  "))
	assert.Equal(t, []string{"team"}, r.Owners(ctx, "team"), "shared account is not repeated")

	require.NoError(t, kv.Set(ctx, interfaces.KeySharedAccountID, "desk", "shared account"))
	assert.Equal(t, "desk", r.SharedAccountID(ctx), "settings store overrides config")
	assert.Equal(t, []string{"alice", "desk"}, r.Owners(ctx, "alice"))
}

func TestResolver_NoSharedAccount(t *testing.T) {
	r := NewResolver(&common.AccountsConfig{DefaultAccountID: "default"}, nil, arbor.NewLogger())
	assert.Equal(t, []string{"bob"}, r.Owners(context.Background(), "bob"))
}
