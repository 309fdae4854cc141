// Package accounts resolves which owners' rows a request may read.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// Resolver maps a request account onto the owner set it can see: itself plus
// the shared account. The shared account id lives in the settings store and
// falls back to configuration.
type Resolver struct {
	config    *common.AccountsConfig
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewResolver creates an account resolver
func NewResolver(config *common.AccountsConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Resolver {
	return &Resolver{config: config, kvStorage: kvStorage, logger: logger}
}

// AccountID returns the trimmed requested account, or the default account
func (r *Resolver) AccountID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return r.config.DefaultAccountID
}

// SharedAccountID returns the configured shared account, "" when none
func (r *Resolver) SharedAccountID(ctx context.Context) string {
	if r.kvStorage != nil {
		value, err := r.kvStorage.Get(ctx, interfaces.KeySharedAccountID)
		if err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
			r.logger.Warn().Err(err).Msg("Failed to read shared account id, using config")
		}
	}
	return r.config.SharedAccountID
}

// Owners returns the account followed by the shared account, deduplicated
func (r *Resolver) Owners(ctx context.Context, accountID string) []string {
	accountID = r.AccountID(accountID)
	owners := []string{}
	if accountID != "" {
		owners = append(owners, accountID)
	}
	if shared := r.SharedAccountID(ctx); shared != "" && shared != accountID {
		owners = append(owners, shared)
	}
	return owners
}
