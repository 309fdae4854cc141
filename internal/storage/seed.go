package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
)

// SourceSeed is one entry of a sources seed file
type SourceSeed struct {
	Name         string   `toml:"name" yaml:"name"`
	PriorityTier int      `toml:"priority_tier" yaml:"priority_tier"`
	Tags         []string `toml:"tags" yaml:"tags"`
	FeedURL      string   `toml:"feed_url" yaml:"feed_url"`
	Owner        string   `toml:"owner" yaml:"owner"` // Defaults to the shared account
	Disabled     bool     `toml:"disabled" yaml:"disabled"`
}

type seedFile struct {
	Sources []SourceSeed `toml:"sources" yaml:"sources"`
}

// ParseSourceSeeds decodes a seed document; format is picked from the extension
func ParseSourceSeeds(path string, data []byte) ([]SourceSeed, error) {
	var file seedFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML seed file %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML seed file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed file extension: %s", filepath.Ext(path))
	}
	return file.Sources, nil
}

// LoadSourcesFromFile creates sources listed in the seed file that do not exist yet.
// Existing sources (matched by owner and name) are left untouched so edits made
// through the API survive restarts.
func LoadSourcesFromFile(ctx context.Context, sources interfaces.SourceStorage, path, defaultOwner string, logger arbor.ILogger) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Source seed file not found, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	seeds, err := ParseSourceSeeds(path, data)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, seed := range seeds {
		owner := seed.Owner
		if owner == "" {
			owner = defaultOwner
		}

		_, err := sources.GetSourceByName(ctx, owner, seed.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			return created, err
		}

		source := &models.SourceDescriptor{
			OwnerID:      owner,
			Name:         strings.TrimSpace(seed.Name),
			PriorityTier: seed.PriorityTier,
			Tags:         seed.Tags,
			FeedURL:      seed.FeedURL,
			Enabled:      !seed.Disabled,
		}
		if err := sources.SaveSource(ctx, source); err != nil {
			logger.Warn().Err(err).Str("name", seed.Name).Msg("Skipping invalid source seed")
			continue
		}
		created++
	}

	logger.Info().Str("path", path).Int("seeds", len(seeds)).Int("created", created).Msg("Source seed file loaded")
	return created, nil
}
