package appdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vebops/store/internal/platform/httpx"
)

// Handler serves the bootstrap snapshot.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the appdata handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the appdata route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/app-data", h.handleLoad)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load app data failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
