package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/chat"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/sse"
)

// ChatHandler serves streamed chat answers
type ChatHandler struct {
	chatService *chat.Service
	logger      arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *chat.Service, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// StreamHandler handles POST /api/chat. The answer streams as
// `data: {"choices":[{"delta":{"content":...}}]}` frames ending in [DONE].
// Failures before the first frame are plain JSON errors.
func (h *ChatHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req chat.Request
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountID = AccountID(r)

	writer, err := sse.NewWriter(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().
		Int("message_length", len(req.Message)).
		Int("history", len(req.History)).
		Str("symbol", req.Symbol).
		Msg("Processing chat request")

	outcome, err := h.chatService.Stream(r.Context(), &req, relay.NewChatSSESink(writer))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error().Err(err).Msg("Failed to start chat stream")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("state", outcome.State.String()).
		Int("deltas", outcome.Deltas).
		Str("model", outcome.Model).
		Msg("Chat stream finished")
}
