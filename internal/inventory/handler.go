package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vebops/store/internal/platform/httpx"
)

// MovementCounter counts committed ledger movements by kind.
type MovementCounter interface {
	IncMovement(kind string)
}

// Handler wires the JSON endpoints for ledger movements.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  MovementCounter
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, metrics MovementCounter) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/codes", h.handleGenerateCodes)
	r.Post("/inwards", h.handleRegisterInward)
	r.Post("/outwards", h.handleRegisterOutward)
	r.Put("/outwards/{id}", h.handleUpdateOutward)
	r.Post("/transfers", h.handleRegisterTransfer)
}

type inwardLineRequest struct {
	MaterialID  int64   `json:"materialId" validate:"required"`
	OrderedQty  float64 `json:"orderedQty"`
	ReceivedQty float64 `json:"receivedQty"`
}

type inwardRequest struct {
	Code         string              `json:"code"`
	ProjectID    int64               `json:"projectId" validate:"required"`
	InwardType   string              `json:"inwardType" validate:"omitempty,oneof=SUPPLY RETURN"`
	SupplierName string              `json:"supplierName"`
	InvoiceNo    string              `json:"invoiceNo"`
	InvoiceDate  string              `json:"invoiceDate" validate:"omitempty,datetime=2006-01-02"`
	DeliveryDate string              `json:"deliveryDate" validate:"omitempty,datetime=2006-01-02"`
	VehicleNo    string              `json:"vehicleNo"`
	Remarks      string              `json:"remarks"`
	RefID        string              `json:"refId" validate:"omitempty,uuid4"`
	Lines        []inwardLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type outwardLineRequest struct {
	MaterialID int64   `json:"materialId" validate:"required"`
	IssueQty   float64 `json:"issueQty"`
}

type outwardRequest struct {
	Code      string               `json:"code"`
	ProjectID int64                `json:"projectId" validate:"required"`
	Date      string               `json:"date" validate:"omitempty,datetime=2006-01-02"`
	IssueTo   string               `json:"issueTo"`
	Status    string               `json:"status" validate:"omitempty,oneof=OPEN CLOSED"`
	CloseDate string               `json:"closeDate" validate:"omitempty,datetime=2006-01-02"`
	RefID     string               `json:"refId" validate:"omitempty,uuid4"`
	Lines     []outwardLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type outwardUpdateLineRequest struct {
	LineID     int64   `json:"lineId"`
	MaterialID int64   `json:"materialId" validate:"required"`
	IssueQty   float64 `json:"issueQty"`
}

type outwardUpdateRequest struct {
	IssueTo   string                     `json:"issueTo"`
	Status    string                     `json:"status" validate:"omitempty,oneof=OPEN CLOSED"`
	CloseDate string                     `json:"closeDate" validate:"omitempty,datetime=2006-01-02"`
	Lines     []outwardUpdateLineRequest `json:"lines" validate:"dive"`
}

type transferLineRequest struct {
	MaterialID int64   `json:"materialId" validate:"required"`
	Qty        float64 `json:"qty"`
}

type transferRequest struct {
	Code          string                `json:"code"`
	FromProjectID int64                 `json:"fromProjectId" validate:"required"`
	ToProjectID   int64                 `json:"toProjectId" validate:"required"`
	FromSite      string                `json:"fromSite"`
	ToSite        string                `json:"toSite"`
	Remarks       string                `json:"remarks"`
	RefID         string                `json:"refId" validate:"omitempty,uuid4"`
	Lines         []transferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.GenerateCodes(r.Context())
	if err != nil {
		h.logger.Error("generate codes failed", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, codes)
}

func (h *Handler) handleRegisterInward(w http.ResponseWriter, r *http.Request) {
	var req inwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := InwardInput{
		Code:         req.Code,
		ProjectID:    req.ProjectID,
		Type:         req.InwardType,
		SupplierName: req.SupplierName,
		InvoiceNo:    req.InvoiceNo,
		InvoiceDate:  parseDate(req.InvoiceDate),
		DeliveryDate: parseDate(req.DeliveryDate),
		VehicleNo:    req.VehicleNo,
		Remarks:      req.Remarks,
		RefID:        req.RefID,
		ActorID:      actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, InwardLineInput{
			MaterialID:  line.MaterialID,
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
		})
	}
	rec, err := h.service.RegisterInward(r.Context(), input)
	if err != nil {
		h.logger.Error("register inward failed",
			slog.Int64("project_id", req.ProjectID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncMovement("inward")
	}
	h.logger.Info("inward registered",
		slog.String("code", rec.Code),
		slog.Int64("project_id", rec.ProjectID),
		slog.Int("lines", len(rec.Lines)))
	httpx.JSON(w, http.StatusCreated, inwardResponse(rec))
}

func (h *Handler) handleRegisterOutward(w http.ResponseWriter, r *http.Request) {
	var req outwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := OutwardInput{
		Code:      req.Code,
		ProjectID: req.ProjectID,
		Date:      parseDate(req.Date),
		IssueTo:   req.IssueTo,
		Status:    req.Status,
		CloseDate: parseDate(req.CloseDate),
		RefID:     req.RefID,
		ActorID:   actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, OutwardLineInput{MaterialID: line.MaterialID, IssueQty: line.IssueQty})
	}
	reg, err := h.service.RegisterOutward(r.Context(), input)
	if err != nil {
		h.logger.Error("register outward failed",
			slog.Int64("project_id", req.ProjectID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncMovement("outward")
	}
	h.logger.Info("outward registered",
		slog.String("code", reg.Code),
		slog.Int64("project_id", reg.ProjectID),
		slog.Int("lines", len(reg.Lines)))
	httpx.JSON(w, http.StatusCreated, outwardResponse(reg))
}

func (h *Handler) handleUpdateOutward(w http.ResponseWriter, r *http.Request) {
	registerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "register id must be numeric")
		return
	}
	var req outwardUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := OutwardUpdateInput{
		IssueTo:   req.IssueTo,
		Status:    req.Status,
		CloseDate: parseDate(req.CloseDate),
		ActorID:   actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, OutwardUpdateLineInput{
			LineID:     line.LineID,
			MaterialID: line.MaterialID,
			IssueQty:   line.IssueQty,
		})
	}
	reg, err := h.service.UpdateOutward(r.Context(), registerID, input)
	if err != nil {
		h.logger.Error("update outward failed",
			slog.Int64("register_id", registerID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncMovement("outward_update")
	}
	h.logger.Info("outward updated",
		slog.String("code", reg.Code),
		slog.Int64("register_id", reg.ID),
		slog.Int("lines", len(reg.Lines)))
	httpx.JSON(w, http.StatusOK, outwardResponse(reg))
}

func (h *Handler) handleRegisterTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := TransferInput{
		Code:          req.Code,
		FromProjectID: req.FromProjectID,
		ToProjectID:   req.ToProjectID,
		FromSite:      req.FromSite,
		ToSite:        req.ToSite,
		Remarks:       req.Remarks,
		RefID:         req.RefID,
		ActorID:       actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, TransferLineInput{MaterialID: line.MaterialID, Qty: line.Qty})
	}
	rec, err := h.service.RegisterTransfer(r.Context(), input)
	if err != nil {
		h.logger.Error("register transfer failed",
			slog.Int64("from_project_id", req.FromProjectID),
			slog.Int64("to_project_id", req.ToProjectID),
			slog.Any("error", err))
		respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncMovement("transfer")
	}
	h.logger.Info("transfer registered",
		slog.String("code", rec.Code),
		slog.Int64("from_project_id", rec.FromProjectID),
		slog.Int64("to_project_id", rec.ToProjectID))
	httpx.JSON(w, http.StatusCreated, transferResponse(rec))
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrNotAllocated),
		errors.Is(err, ErrAllocationExceeded),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrClosedRegister):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
	return id
}
