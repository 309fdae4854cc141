package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/pdf"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/summary"
	"github.com/ternarybob/dealdesk/internal/sse"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SummaryHandler serves summary generation and history
type SummaryHandler struct {
	summaryService *summary.Service
	pdfService     *pdf.Service
	logger         arbor.ILogger
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(summaryService *summary.Service, pdfService *pdf.Service, logger arbor.ILogger) *SummaryHandler {
	return &SummaryHandler{
		summaryService: summaryService,
		pdfService:     pdfService,
		logger:         logger,
	}
}

// GenerateHandler handles POST /api/summaries. By default the summary
// streams as meta, delta and done events; ?stream=false waits and returns
// the stored record.
func (h *SummaryHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req summary.Request
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountID = AccountID(r)

	if r.URL.Query().Get("stream") == "false" {
		record, err := h.summaryService.GenerateText(r.Context(), &req)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Summary generation failed")
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, record)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.summaryService.Generate(r.Context(), &req, relay.NewSummarySSESink(writer))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error().Err(err).Msg("Failed to start summary stream")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("state", result.Outcome.State.String()).
		Int("deltas", result.Outcome.Deltas).
		Bool("saved", result.Record != nil).
		Msg("Summary stream finished")
}

// ListHandler handles GET /api/summaries
func (h *SummaryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.summaryService.List(r.Context(), AccountID(r), ParseLimit(r, 50, 500))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summaries": records,
		"count":     len(records),
	})
}

// GetHandler handles GET /api/summaries/{id}
func (h *SummaryHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.summaryService.Get(r.Context(), AccountID(r), PathID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// DeleteHandler handles DELETE /api/summaries/{id}
func (h *SummaryHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.summaryService.Delete(r.Context(), AccountID(r), PathID(r)); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Summary deleted")
}

// FavoriteHandler handles POST /api/summaries/{id}/favorite
func (h *SummaryHandler) FavoriteHandler(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.summaryService.ToggleFavorite(r.Context(), AccountID(r), PathID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":          PathID(r),
		"is_favorite": favorite,
	})
}

// PDFHandler handles GET /api/summaries/{id}/pdf
func (h *SummaryHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.summaryService.Get(r.Context(), AccountID(r), PathID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	data, err := h.pdfService.RenderSummary(record)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	filename := unsafeFilename.ReplaceAllString(strings.ToLower(record.Title), "-")
	filename = strings.Trim(filename, "-")
	if filename == "" {
		filename = record.ID
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
