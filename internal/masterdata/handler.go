package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vebops/store/internal/platform/httpx"
)

// Handler wires the master data JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the master data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)
		r.Get("/{id}", h.getProject)
		r.Put("/{id}", h.updateProject)
		r.Delete("/{id}", h.deleteProject)
	})
	r.Route("/materials", func(r chi.Router) {
		r.Get("/", h.listMaterials)
		r.Post("/", h.createMaterial)
		r.Get("/{id}", h.getMaterial)
		r.Put("/{id}", h.updateMaterial)
		r.Delete("/{id}", h.deleteMaterial)
	})
}

type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, total, err := h.service.ListProjects(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("list projects failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: projects, Total: total})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.GetProject(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var p Project
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.service.CreateProject(r.Context(), p)
	if err != nil {
		h.logger.Error("create project failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var p Project
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.service.UpdateProject(r.Context(), pathID(r), p); err != nil {
		h.logger.Error("update project failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProject(r.Context(), pathID(r)); err != nil {
		h.logger.Error("delete project failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	materials, total, err := h.service.ListMaterials(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("list materials failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if materials == nil {
		materials = []Material{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: materials, Total: total})
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	material, err := h.service.GetMaterial(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, material)
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var m Material
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.service.CreateMaterial(r.Context(), m)
	if err != nil {
		h.logger.Error("create material failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	var m Material
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.service.UpdateMaterial(r.Context(), pathID(r), m); err != nil {
		h.logger.Error("update material failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMaterial(r.Context(), pathID(r)); err != nil {
		h.logger.Error("delete material failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func filtersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search"), Page: 1, Limit: 50}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 200 {
		filters.Limit = limit
	}
	return filters
}
