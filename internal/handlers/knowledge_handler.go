package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/knowledge"
)

// KnowledgeHandler serves knowledge items and notes
type KnowledgeHandler struct {
	knowledgeService *knowledge.Service
	logger           arbor.ILogger
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(knowledgeService *knowledge.Service, logger arbor.ILogger) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeService: knowledgeService,
		logger:           logger,
	}
}

type setReadRequest struct {
	Read *bool `json:"read"`
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// ListItemsHandler handles GET /api/items?unread=true&source_id=a,b&limit=n
func (h *KnowledgeHandler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := h.knowledgeService.ListItems(r.Context(), AccountID(r), knowledge.ItemQuery{
		SourceIDs:  splitList(query.Get("source_id")),
		UnreadOnly: query.Get("unread") == "true",
		Limit:      ParseLimit(r, 100, 1000),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if items == nil {
		items = []*models.KnowledgeItem{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// CreateItemHandler handles POST /api/items
func (h *KnowledgeHandler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	var item models.KnowledgeItem
	if err := DecodeJSON(w, r, &item); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Body) == "" {
		WriteError(w, http.StatusBadRequest, "item needs a title or body")
		return
	}

	if err := h.knowledgeService.CreateItem(r.Context(), AccountID(r), &item); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to create item")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// SetReadHandler handles POST /api/items/{id}/read. The body {"read": false}
// marks the item unread again; an empty body marks it read.
func (h *KnowledgeHandler) SetReadHandler(w http.ResponseWriter, r *http.Request) {
	var req setReadRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	read := req.Read == nil || *req.Read

	if err := h.knowledgeService.SetRead(r.Context(), AccountID(r), PathID(r), read); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":      PathID(r),
		"is_read": read,
	})
}

// MarkReadHandler handles POST /api/items/mark-read
func (h *KnowledgeHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := h.knowledgeService.MarkRead(r.Context(), AccountID(r), req.IDs)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requested": len(req.IDs),
		"changed":   changed,
	})
}

// ListNotesHandler handles GET /api/notes?kind=stock&symbol=AAPL
func (h *KnowledgeHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	query := knowledge.NoteQuery{
		Symbol: strings.TrimSpace(r.URL.Query().Get("symbol")),
		Limit:  ParseLimit(r, 100, 1000),
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := models.ParseNoteKind(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		query.Kind = kind
	}

	notes, err := h.knowledgeService.ListNotes(r.Context(), AccountID(r), query)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
		"count": len(notes),
	})
}

// CreateNoteHandler handles POST /api/notes
func (h *KnowledgeHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var note models.Note
	if err := DecodeJSON(w, r, &note); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.knowledgeService.CreateNote(r.Context(), AccountID(r), &note); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to create note")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, note)
}

// DeleteNoteHandler handles DELETE /api/notes/{id}
func (h *KnowledgeHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.knowledgeService.DeleteNote(r.Context(), AccountID(r), PathID(r)); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
