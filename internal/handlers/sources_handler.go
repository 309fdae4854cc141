package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/sources"
)

// SourcesHandler handles HTTP requests for source management
type SourcesHandler struct {
	sourceService *sources.Service
	logger        arbor.ILogger
}

// NewSourcesHandler creates a new SourcesHandler
func NewSourcesHandler(sourceService *sources.Service, logger arbor.ILogger) *SourcesHandler {
	return &SourcesHandler{
		sourceService: sourceService,
		logger:        logger,
	}
}

// ListSourcesHandler handles GET /api/sources
func (h *SourcesHandler) ListSourcesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.sourceService.ListSources(r.Context(), AccountID(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sources")
		WriteServiceError(w, err)
		return
	}

	// Return sources array directly (not wrapped in object)
	if list == nil {
		list = []*models.SourceDescriptor{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// GetSourceHandler handles GET /api/sources/{id}
func (h *SourcesHandler) GetSourceHandler(w http.ResponseWriter, r *http.Request) {
	source, err := h.sourceService.GetSource(r.Context(), AccountID(r), PathID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, source)
}

// CreateSourceHandler handles POST /api/sources
func (h *SourcesHandler) CreateSourceHandler(w http.ResponseWriter, r *http.Request) {
	source, ok := h.decodeSource(w, r)
	if !ok {
		return
	}

	if err := h.sourceService.CreateSource(r.Context(), AccountID(r), source); err != nil {
		h.logger.Warn().Err(err).Str("name", source.Name).Msg("Failed to create source")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, source)
}

// UpdateSourceHandler handles PUT /api/sources/{id}
func (h *SourcesHandler) UpdateSourceHandler(w http.ResponseWriter, r *http.Request) {
	source, ok := h.decodeSource(w, r)
	if !ok {
		return
	}

	// Set ID from path to prevent ID mismatch
	source.ID = PathID(r)

	if err := h.sourceService.UpdateSource(r.Context(), AccountID(r), source); err != nil {
		h.logger.Warn().Err(err).Str("id", source.ID).Msg("Failed to update source")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, source)
}

// DeleteSourceHandler handles DELETE /api/sources/{id}
func (h *SourcesHandler) DeleteSourceHandler(w http.ResponseWriter, r *http.Request) {
	id := PathID(r)
	if err := h.sourceService.DeleteSource(r.Context(), AccountID(r), id); err != nil {
		h.logger.Warn().Err(err).Str("id", id).Msg("Failed to delete source")
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SourcesHandler) decodeSource(w http.ResponseWriter, r *http.Request) (*models.SourceDescriptor, bool) {
	var source models.SourceDescriptor
	if err := DecodeJSON(w, r, &source); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := source.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &source, true
}
