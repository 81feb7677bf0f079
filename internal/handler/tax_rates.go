package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/middleware"
	"github.com/tillpoint/pos-api/internal/money"
	"github.com/tillpoint/pos-api/internal/service"
)

// TaxRateServicer defines the service methods needed by tax rate handlers.
// Satisfied by *service.TaxRateService; narrow interface for testability.
type TaxRateServicer interface {
	List(ctx context.Context) ([]database.TaxRate, error)
	Get(ctx context.Context, id uuid.UUID) (database.TaxRate, error)
	Default(ctx context.Context) (database.TaxRate, error)
	Create(ctx context.Context, req service.TaxRateRequest) (database.TaxRate, error)
	Update(ctx context.Context, id uuid.UUID, req service.TaxRateRequest) (database.TaxRate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID) (database.TaxRate, error)
}

// TaxRateHandler handles tax rate endpoints.
type TaxRateHandler struct {
	svc    TaxRateServicer
	logger *logrus.Logger
}

// NewTaxRateHandler creates a new TaxRateHandler.
func NewTaxRateHandler(svc TaxRateServicer, logger *logrus.Logger) *TaxRateHandler {
	return &TaxRateHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers tax rate endpoints. Reads are open to any
// authenticated staff; changes need Manager or Admin.
func (h *TaxRateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/default", h.Default)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.StaffRoleManager, enum.StaffRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/default", h.SetDefault)
	})
}

// --- Request / Response types ---

type taxRateRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Rate        *decimal.Decimal `json:"rate" validate:"required"`
	Description string           `json:"description"`
	IsDefault   bool             `json:"isDefault"`
}

type taxRateResponse struct {
	ID          uuid.UUID `json:"_id"`
	Name        string    `json:"name"`
	Rate        string    `json:"rate"`
	Description *string   `json:"description"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTaxRateResponse(t database.TaxRate) taxRateResponse {
	return taxRateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Rate:        money.FromNumeric(t.Rate).String(),
		Description: optionalText(t.Description),
		IsDefault:   t.IsDefault,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (req taxRateRequest) toService() service.TaxRateRequest {
	return service.TaxRateRequest{
		Name:        req.Name,
		Rate:        *req.Rate,
		Description: req.Description,
		IsDefault:   req.IsDefault,
	}
}

// --- Handlers ---

// List handles GET /tax-rates.
func (h *TaxRateHandler) List(w http.ResponseWriter, r *http.Request) {
	rates, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := make([]taxRateResponse, len(rates))
	for i, t := range rates {
		resp[i] = toTaxRateResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Default handles GET /tax-rates/default.
func (h *TaxRateHandler) Default(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.Default(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxRateResponse(rate))
}

// Get handles GET /tax-rates/{id}.
func (h *TaxRateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	rate, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxRateResponse(rate))
}

// Create handles POST /tax-rates.
func (h *TaxRateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taxRateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	rate, err := h.svc.Create(r.Context(), req.toService())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaxRateResponse(rate))
}

// Update handles PUT /tax-rates/{id}.
func (h *TaxRateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req taxRateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	rate, err := h.svc.Update(r.Context(), id, req.toService())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxRateResponse(rate))
}

// Delete handles DELETE /tax-rates/{id}.
func (h *TaxRateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault handles POST /tax-rates/{id}/default.
func (h *TaxRateHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	rate, err := h.svc.SetDefault(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxRateResponse(rate))
}
