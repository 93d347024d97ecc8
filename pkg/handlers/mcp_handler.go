package handlers

import (
	"mime"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/mcp"
)

// maxMCPBodyBytes caps one JSON-RPC message.
const maxMCPBodyBytes = 1 << 20

// MCPHandler serves the stateless streamable MCP transport at /mcp.
type MCPHandler struct {
	transport *server.StreamableHTTPServer
	logger    *zap.Logger
}

func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		transport: mcpServer.NewStreamableHTTPServer(),
		logger:    logger,
	}
}

func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/mcp", h.guard(h.transport))
}

// guard admits only POSTed JSON bodies up to maxMCPBodyBytes.
func (h *MCPHandler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if ct := r.Header.Get("Content-Type"); ct != "" {
			if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
				h.logger.Debug("Rejected MCP request content type", zap.String("content_type", ct))
				if err := ErrorResponse(w, http.StatusUnsupportedMediaType,
					"unsupported_media_type", "MCP requests must be application/json"); err != nil {
					h.logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxMCPBodyBytes)
		next.ServeHTTP(w, r)
	})
}
