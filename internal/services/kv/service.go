// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 4:40:51 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package kv

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// ErrUnknownSetting is returned for keys outside the settings whitelist
var ErrUnknownSetting = fmt.Errorf("unknown setting")

// Setting is the API view of one stored setting; secret values are masked
type Setting struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Value       string `json:"value,omitempty"`
	IsSet       bool   `json:"is_set"`
	Secret      bool   `json:"secret"`
}

type settingDef struct {
	description string
	secret      bool
}

var settings = map[string]settingDef{
	interfaces.KeySharedAccountID: {description: "Account whose sources, items and notes every account can read"},
	interfaces.KeyGeminiAPIKey:    {description: "Google Gemini API key", secret: true},
	interfaces.KeyClaudeAPIKey:    {description: "Anthropic Claude API key", secret: true},
	interfaces.KeyNotionAPIKey:    {description: "Notion integration token", secret: true},
	interfaces.KeyPerplexityKey:   {description: "Perplexity API key for web search", secret: true},
}

// Service provides business logic for runtime settings kept in the
// key/value store. Values set here take precedence over the config file.
type Service struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewService creates a new settings service
func NewService(storage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

func lookup(key string) (string, settingDef, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	def, ok := settings[key]
	if !ok {
		return "", settingDef{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return key, def, nil
}

// Set stores or updates a setting
func (s *Service) Set(ctx context.Context, key string, value string) error {
	key, def, err := lookup(key)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}

	if err := s.storage.Set(ctx, key, value, def.description); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Stored setting")
	return nil
}

// Delete removes a setting; the config file value applies again
func (s *Service) Delete(ctx context.Context, key string) error {
	key, _, err := lookup(key)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return err
	}

	s.logger.Info().Str("key", key).Msg("Deleted setting")
	return nil
}

// List returns every known setting, sorted by key
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	pairs, err := s.storage.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list settings")
		return nil, err
	}
	stored := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		stored[strings.ToLower(pair.Key)] = pair.Value
	}

	result := make([]Setting, 0, len(settings))
	for key, def := range settings {
		setting := Setting{Key: key, Description: def.description, Secret: def.secret}
		if value, ok := stored[key]; ok {
			setting.IsSet = true
			setting.Value = value
			if def.secret {
				setting.Value = MaskValue(value)
			}
		}
		result = append(result, setting)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// MaskValue masks sensitive values for API responses
// If length < 8: returns "••••••••"
// Otherwise: returns first 4 chars + "..." + last 4 chars (e.g., "sk-1...xyz9")
func MaskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
