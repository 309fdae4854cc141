package kv

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

func TestSettings(t *testing.T) {
	ctx := context.Background()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	s := NewService(manager.KeyValueStorage(), arbor.NewLogger())

	require.NoError(t, s.Set(ctx, "Claude_API_Key", "sk-ant-1234567890"))
	require.NoError(t, s.Set(ctx, interfaces.KeySharedAccountID, "house"))
	assert.ErrorIs(t, s.Set(ctx, "database_password", "x"), ErrUnknownSetting)
	assert.Error(t, s.Set(ctx, interfaces.KeyNotionAPIKey, "   "))

	list, err := s.List(ctx)
	require.NoError(t, err)
	byKey := map[string]Setting{}
	for _, setting := range list {
		byKey[setting.Key] = setting
	}
	assert.Len(t, list, 5)
	assert.Equal(t, "sk-a...7890", byKey[interfaces.KeyClaudeAPIKey].Value)
	assert.Equal(t, "house", byKey[interfaces.KeySharedAccountID].Value)
	assert.False(t, byKey[interfaces.KeyGeminiAPIKey].IsSet)

	require.NoError(t, s.Delete(ctx, interfaces.KeyClaudeAPIKey))
	assert.ErrorIs(t, s.Delete(ctx, interfaces.KeyClaudeAPIKey), interfaces.ErrKeyNotFound)
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"short", "••••••••"},
		{"12345678", "1234...5678"},
		{"pplx-abcdefghijkl", "pplx...ijkl"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskValue(tt.value))
		})
	}
}
