package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// SchemaResponse wraps the discovered schema.
type SchemaResponse struct {
	Tables      models.Schema `json:"tables"`
	TotalTables int           `json:"total_tables"`
}

// invalidator is implemented by introspectors that cache their result.
type invalidator interface {
	Invalidate()
}

// SchemaHandler serves the schema the pipeline sees.
type SchemaHandler struct {
	introspector datasource.SchemaIntrospector
	logger       *zap.Logger
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(introspector datasource.SchemaIntrospector, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{introspector: introspector, logger: logger}
}

// RegisterRoutes registers the schema route.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.Get)
}

// Get handles GET /api/schema
// Query params:
//   - refresh=true drops a cached schema before discovery
//   - format=text returns the prompt rendering instead of JSON
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if inv, ok := h.introspector.(invalidator); ok {
			inv.Invalidate()
		}
	}

	schema, err := h.introspector.Discover(r.Context())
	if err != nil {
		h.logger.Error("Failed to discover schema", zap.Error(err))
		writeServiceError(w, err, "discover_schema_failed", h.logger)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(prompts.FormatSchemaWithValues(schema) + "\n"))
		return
	}

	if schema == nil {
		schema = models.Schema{}
	}
	if err := WriteJSON(w, http.StatusOK, SchemaResponse{Tables: schema, TotalTables: len(schema)}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
