// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 4:12:09 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/chat"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/summary"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	requestReadTimeout = 30 * time.Second
	maxRequestMessage  = 1 << 20
)

// WebSocketHandler streams chat answers and summaries over WebSocket. The
// client sends one JSON request per connection and receives meta, delta,
// error and done events until the server closes the socket.
type WebSocketHandler struct {
	chatService    *chat.Service
	summaryService *summary.Service
	writeTimeout   time.Duration
	logger         arbor.ILogger
}

// NewWebSocketHandler creates a new WebSocket stream handler
func NewWebSocketHandler(chatService *chat.Service, summaryService *summary.Service, writeTimeout time.Duration, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService:    chatService,
		summaryService: summaryService,
		writeTimeout:   writeTimeout,
		logger:         logger,
	}
}

// ChatHandler handles GET /ws/chat
func (h *WebSocketHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	accountID := AccountID(r)
	h.serve(w, r, "chat", func(ctx context.Context, raw []byte, sink relay.Sink) error {
		var req chat.Request
		if err := decodeMessage(raw, &req); err != nil {
			return err
		}
		req.AccountID = accountID

		outcome, err := h.chatService.Stream(ctx, &req, sink)
		if err != nil {
			return err
		}
		h.logger.Debug().
			Str("state", outcome.State.String()).
			Int("deltas", outcome.Deltas).
			Msg("WebSocket chat finished")
		return nil
	})
}

// SummaryHandler handles GET /ws/summary
func (h *WebSocketHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	accountID := AccountID(r)
	h.serve(w, r, "summary", func(ctx context.Context, raw []byte, sink relay.Sink) error {
		var req summary.Request
		if len(raw) > 0 {
			if err := decodeMessage(raw, &req); err != nil {
				return err
			}
		}
		req.AccountID = accountID

		result, err := h.summaryService.Generate(ctx, &req, sink)
		if err != nil {
			return err
		}
		h.logger.Debug().
			Str("state", result.Outcome.State.String()).
			Bool("saved", result.Record != nil).
			Msg("WebSocket summary finished")
		return nil
	})
}

type streamFunc func(ctx context.Context, raw []byte, sink relay.Sink) error

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, kind string, run streamFunc) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestMessage)
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			h.logger.Warn().Err(err).Str("stream", kind).Msg("WebSocket request read failed")
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	// The hijacked request context outlives the client, so a reader
	// goroutine cancels the stream when the socket closes.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sink := relay.NewWebSocketSink(conn, h.writeTimeout)
	h.logger.Debug().Str("stream", kind).Msg("WebSocket stream started")

	if err := run(ctx, raw, sink); err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn().Err(err).Str("stream", kind).Msg("WebSocket stream rejected")
		_ = sink.Error(err.Error())
		_ = sink.Done()
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func decodeMessage(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}
