package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// ConversationService answers questions within a thread and manages thread state.
type ConversationService interface {
	Invoke(ctx context.Context, threadID, question string) (*models.TurnResult, error)
	History(ctx context.Context, threadID string) ([]models.ConversationTurn, error)
	Forget(ctx context.Context, threadID string) error
}

// --- Request / Response Types ---

// AskRequest is the body of POST /api/threads/{thread_id}/messages.
type AskRequest struct {
	Question string `json:"question"`
}

// CreateThreadResponse is returned by POST /api/threads.
type CreateThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// ThreadHistoryResponse is returned by GET /api/threads/{thread_id}.
type ThreadHistoryResponse struct {
	ThreadID string                    `json:"thread_id"`
	Turns    []models.ConversationTurn `json:"turns"`
}

// ThreadsHandler exposes the conversation API.
type ThreadsHandler struct {
	service ConversationService
	logger  *zap.Logger
}

// NewThreadsHandler creates a ThreadsHandler.
func NewThreadsHandler(service ConversationService, logger *zap.Logger) *ThreadsHandler {
	return &ThreadsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the conversation routes.
func (h *ThreadsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/threads", h.Create)
	mux.HandleFunc("POST /api/threads/{thread_id}/messages", h.Ask)
	mux.HandleFunc("GET /api/threads/{thread_id}", h.Get)
	mux.HandleFunc("DELETE /api/threads/{thread_id}", h.Delete)
}

// Create handles POST /api/threads. Threads are created lazily on the first
// question, so this only mints an ID.
func (h *ThreadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusCreated, CreateThreadResponse{ThreadID: uuid.NewString()}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Ask handles POST /api/threads/{thread_id}/messages
func (h *ThreadsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	threadID, ok := h.threadID(w, r)
	if !ok {
		return
	}

	var req AskRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ctx := audit.WithClientIP(r.Context(), clientIP(r))
	result, err := h.service.Invoke(ctx, threadID, req.Question)
	if err != nil {
		h.logger.Error("Failed to answer question",
			zap.String("thread_id", threadID),
			zap.Error(err))
		writeServiceError(w, err, "ask_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Get handles GET /api/threads/{thread_id}
func (h *ThreadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	threadID, ok := h.threadID(w, r)
	if !ok {
		return
	}

	turns, err := h.service.History(r.Context(), threadID)
	if err != nil {
		writeServiceError(w, err, "get_thread_failed", h.logger)
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}

	if err := WriteJSON(w, http.StatusOK, ThreadHistoryResponse{ThreadID: threadID, Turns: turns}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Delete handles DELETE /api/threads/{thread_id}
func (h *ThreadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	threadID, ok := h.threadID(w, r)
	if !ok {
		return
	}

	if err := h.service.Forget(r.Context(), threadID); err != nil {
		h.logger.Error("Failed to delete thread",
			zap.String("thread_id", threadID),
			zap.Error(err))
		writeServiceError(w, err, "delete_thread_failed", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// threadID reads the thread_id path value. Any non-blank string is a valid
// thread ID, not only the UUIDs minted by Create.
func (h *ThreadsHandler) threadID(w http.ResponseWriter, r *http.Request) (string, bool) {
	threadID := strings.TrimSpace(r.PathValue("thread_id"))
	if threadID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_thread_id", "Thread ID is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return threadID, true
}

// clientIP prefers the first X-Forwarded-For hop and falls back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
