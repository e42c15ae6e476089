package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vebops/store/internal/platform/httpx"
)

// Handler wires the procurement JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/procurement/requests", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type createRequest struct {
	Number     string  `json:"number"`
	ProjectID  int64   `json:"projectId" validate:"required"`
	MaterialID int64   `json:"materialId" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	Reason     string  `json:"reason"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.List(r.Context(), RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		respondError(w, err)
		return
	}
	if requests == nil {
		requests = []Request{}
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), pathID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req, err := h.service.Create(r.Context(), CreateInput{
		Number:      body.Number,
		ProjectID:   body.ProjectID,
		MaterialID:  body.MaterialID,
		Quantity:    body.Quantity,
		Reason:      body.Reason,
		RequestedBy: actorID(r),
	})
	if err != nil {
		h.logger.Error("create procurement request failed", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Approve(r.Context(), pathID(r), actorID(r))
	if err != nil {
		h.logger.Error("approve procurement request failed",
			slog.Int64("request_id", pathID(r)),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	h.logger.Info("procurement request approved",
		slog.String("number", req.Number),
		slog.Int64("project_id", req.ProjectID))
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Reject(r.Context(), pathID(r), actorID(r))
	if err != nil {
		h.logger.Error("reject procurement request failed",
			slog.Int64("request_id", pathID(r)),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrAlreadyDecided):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
	return id
}
