package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/catalog"
)

// CatalogHandler exposes the schema catalog to clients.
type CatalogHandler struct {
	description catalog.Description
	logger      *zap.Logger
}

// NewCatalogHandler creates a catalog handler. The catalog is immutable, so
// its description is built once.
func NewCatalogHandler(cat *catalog.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{description: cat.Describe(), logger: logger}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.Get)
}

// Get handles GET /api/catalog
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.description); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
