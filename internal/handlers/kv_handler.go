package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/services/kv"
)

// KVServiceInterface defines the methods needed from the settings service
type KVServiceInterface interface {
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]kv.Setting, error)
}

// KVHandler handles runtime settings (API keys, shared account) kept in the
// key/value store
type KVHandler struct {
	kvService KVServiceInterface
	logger    arbor.ILogger
}

// NewKVHandler creates a new settings handler
func NewKVHandler(kvService KVServiceInterface, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kvService: kvService,
		logger:    logger,
	}
}

type setSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// ListKVHandler handles GET /api/settings - secret values are masked
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.kvService.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// SetKVHandler handles PUT /api/settings/{key}
func (h *KVHandler) SetKVHandler(w http.ResponseWriter, r *http.Request) {
	var req setSettingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := r.PathValue("key")
	if err := h.kvService.Set(r.Context(), key, req.Value); err != nil {
		h.writeKVError(w, err)
		return
	}
	WriteSuccess(w, "Setting saved")
}

// DeleteKVHandler handles DELETE /api/settings/{key}
func (h *KVHandler) DeleteKVHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.kvService.Delete(r.Context(), r.PathValue("key")); err != nil {
		h.writeKVError(w, err)
		return
	}
	WriteSuccess(w, "Setting deleted")
}

func (h *KVHandler) writeKVError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kv.ErrUnknownSetting):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interfaces.ErrKeyNotFound):
		WriteError(w, http.StatusNotFound, "Setting not set")
	default:
		h.logger.Error().Err(err).Msg("Settings update failed")
		WriteError(w, http.StatusBadRequest, err.Error())
	}
}
