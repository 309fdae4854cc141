package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/services/chat"
	"github.com/ternarybob/dealdesk/internal/services/feeds"
	"github.com/ternarybob/dealdesk/internal/services/llm"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/summary"
)

// AccountHeader carries the caller's account id
const AccountHeader = "X-Account-ID"

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": message,
	})
}

// AccountID returns the caller's account from the request header; empty
// selects the configured default account downstream
func AccountID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(AccountHeader))
}

// DecodeJSON reads a size-limited JSON body into v and validates its struct
// tags. An empty body leaves v at its zero value.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(parts, ", "))
}

// ParseLimit reads the limit query parameter, clamped to [1, max]
func ParseLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, max)
}

// PathID returns the {id} wildcard of the matched route
func PathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}

// StatusForError maps service errors onto HTTP status codes
func StatusForError(err error) int {
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrDuplicateSourceName):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, summary.ErrNothingToSummarize):
		return http.StatusBadRequest
	case errors.Is(err, feeds.ErrSyncRunning):
		return http.StatusConflict
	case llm.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.Is(err, relay.ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status StatusForError assigns
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}
