package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/services/kv"
)

type ConfigHandler struct {
	logger arbor.ILogger
	config *common.Config
}

func NewConfigHandler(logger arbor.ILogger, config *common.Config) *ConfigHandler {
	return &ConfigHandler{
		logger: logger,
		config: config,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Build   string         `json:"build"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfig handles GET /api/config. Secrets are masked.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	info := common.GetVersionInfo()
	WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: info.Version,
		Build:   info.Build,
		Port:    h.config.Server.Port,
		Host:    h.config.Server.Host,
		Config:  sanitizeConfig(h.config),
	})
}

func sanitizeConfig(config *common.Config) *common.Config {
	clone := *config
	for _, secret := range []*string{
		&clone.Gemini.APIKey,
		&clone.Claude.APIKey,
		&clone.Perplexity.APIKey,
		&clone.Notion.APIKey,
		&clone.Storage.Postgres.DSN,
	} {
		if *secret != "" {
			*secret = kv.MaskValue(*secret)
		}
	}
	return &clone
}
