package bom

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vebops/store/internal/platform/httpx"
)

// Handler wires the allocation JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the allocation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bom", func(r chi.Router) {
		r.Get("/{projectId}", h.listLines)
		r.Post("/", h.assignQuantity)
		r.Delete("/{projectId}/{materialId}", h.removeLine)
	})
}

type assignRequest struct {
	ProjectID  int64   `json:"projectId" validate:"required"`
	MaterialID int64   `json:"materialId" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) listLines(w http.ResponseWriter, r *http.Request) {
	projectID, _ := strconv.ParseInt(chi.URLParam(r, "projectId"), 10, 64)
	lines, err := h.service.ListLines(r.Context(), projectID)
	if err != nil {
		respondError(w, err)
		return
	}
	if lines == nil {
		lines = []Line{}
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) assignQuantity(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.AssignQuantity(r.Context(), Line{
		ProjectID:  req.ProjectID,
		MaterialID: req.MaterialID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.logger.Error("assign allocation failed",
			slog.Int64("project_id", req.ProjectID),
			slog.Int64("material_id", req.MaterialID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	projectID, _ := strconv.ParseInt(chi.URLParam(r, "projectId"), 10, 64)
	materialID, _ := strconv.ParseInt(chi.URLParam(r, "materialId"), 10, 64)
	if err := h.service.RemoveLine(r.Context(), projectID, materialID); err != nil {
		h.logger.Error("remove allocation failed",
			slog.Int64("project_id", projectID),
			slog.Int64("material_id", materialID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrQuantityInUse):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
