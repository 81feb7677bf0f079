package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/middleware"
	"github.com/tillpoint/pos-api/internal/money"
	"github.com/tillpoint/pos-api/internal/pricing"
	"github.com/tillpoint/pos-api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Quote(ctx context.Context, req service.QuoteRequest) (*service.Quote, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	List(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next string) (database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *logrus.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind authentication.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/quote", h.Quote)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type discountRequest struct {
	Type   string           `json:"type" validate:"required,oneof=percentage fixed"`
	Value  *decimal.Decimal `json:"value" validate:"required"`
	Reason string           `json:"reason" validate:"max=200"`
}

type orderItemRequest struct {
	ProductID string           `json:"productId" validate:"required"`
	Name      string           `json:"name" validate:"required"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
	Quantity  int32            `json:"quantity" validate:"min=1"`
	Discount  *discountRequest `json:"discount"`
}

type quoteRequest struct {
	Items            []orderItemRequest `json:"items" validate:"dive"`
	CheckoutDiscount *discountRequest   `json:"checkoutDiscount"`
	TaxRateID        string             `json:"taxRateId" validate:"omitempty,uuid"`
}

type createOrderRequest struct {
	CustomerID       string             `json:"customerId" validate:"max=100"`
	PaymentMethod    string             `json:"paymentMethod" validate:"required,oneof=cash card mobile other"`
	Items            []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	CheckoutDiscount *discountRequest   `json:"checkoutDiscount"`
	TaxRateID        string             `json:"taxRateId" validate:"omitempty,uuid"`
	Subtotal         *decimal.Decimal   `json:"subtotal"`
	Tax              *decimal.Decimal   `json:"tax"`
	Total            *decimal.Decimal   `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type discountResponse struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
	Amount string `json:"amount"`
}

type orderItemResponse struct {
	ID           uuid.UUID         `json:"_id"`
	Position     int32             `json:"position"`
	ProductID    string            `json:"productId"`
	Name         string            `json:"name"`
	Price        string            `json:"price"`
	Quantity     int32             `json:"quantity"`
	Discount     *discountResponse `json:"discount"`
	LineSubtotal string            `json:"lineSubtotal"`
}

type orderResponse struct {
	ID                    uuid.UUID           `json:"_id"`
	OrderNumber           string              `json:"orderNumber"`
	CustomerID            *string             `json:"customerId"`
	StaffID               uuid.UUID           `json:"staffId"`
	PaymentMethod         string              `json:"paymentMethod"`
	Status                string              `json:"status"`
	Subtotal              string              `json:"subtotal"`
	ItemDiscountTotal     string              `json:"itemDiscountTotal"`
	CheckoutDiscount      *discountResponse   `json:"checkoutDiscount"`
	SubtotalAfterDiscount string              `json:"subtotalAfterDiscount"`
	TaxRate               string              `json:"taxRate"`
	Tax                   string              `json:"tax"`
	Total                 string              `json:"total"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
	Items                 []orderItemResponse `json:"items"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type quoteLineResponse struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	Quantity       int32  `json:"quantity"`
	DiscountAmount string `json:"discountAmount"`
	LineSubtotal   string `json:"lineSubtotal"`
}

type quoteResponse struct {
	Items                      []quoteLineResponse `json:"items"`
	Subtotal                   string              `json:"subtotal"`
	ItemDiscountTotal          string              `json:"itemDiscountTotal"`
	SubtotalAfterItemDiscounts string              `json:"subtotalAfterItemDiscounts"`
	CheckoutDiscountAmount     string              `json:"checkoutDiscountAmount"`
	SubtotalAfterDiscount      string              `json:"subtotalAfterDiscount"`
	TaxRateID                  uuid.UUID           `json:"taxRateId"`
	TaxRateName                string              `json:"taxRateName"`
	TaxRate                    string              `json:"taxRate"`
	Tax                        string              `json:"tax"`
	Total                      string              `json:"total"`
}

// --- Conversion helpers ---

func (d *discountRequest) toPricing() *pricing.Discount {
	if d == nil {
		return nil
	}
	return &pricing.Discount{Type: d.Type, Value: *d.Value, Reason: d.Reason}
}

func toPricingItems(items []orderItemRequest) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, item := range items {
		out[i] = pricing.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: *item.Price,
			Quantity:  item.Quantity,
			Discount:  item.Discount.toPricing(),
		}
	}
	return out
}

func parseOptionalUUID(field, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperror.FieldValidation(field, "must be a valid UUID")
	}
	return &id, nil
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:                    o.ID,
		OrderNumber:           o.OrderNumber,
		CustomerID:            optionalText(o.CustomerID),
		StaffID:               o.StaffID,
		PaymentMethod:         o.PaymentMethod,
		Status:                o.Status,
		Subtotal:              numericString(o.Subtotal),
		ItemDiscountTotal:     numericString(o.ItemDiscountTotal),
		SubtotalAfterDiscount: numericString(o.SubtotalAfterDiscount),
		TaxRate:               money.FromNumeric(o.TaxRate).String(),
		Tax:                   numericString(o.TaxAmount),
		Total:                 numericString(o.Total),
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Items:                 make([]orderItemResponse, len(items)),
	}
	if o.DiscountType.Valid {
		resp.CheckoutDiscount = &discountResponse{
			Type:   o.DiscountType.String,
			Value:  money.FromNumeric(o.DiscountValue).String(),
			Reason: o.DiscountReason.String,
			Amount: numericString(o.DiscountAmount),
		}
	}
	for i, item := range items {
		resp.Items[i] = orderItemResponse{
			ID:           item.ID,
			Position:     item.Position,
			ProductID:    item.ProductID,
			Name:         item.Name,
			Price:        numericString(item.UnitPrice),
			Quantity:     item.Quantity,
			LineSubtotal: numericString(item.LineSubtotal),
		}
		if item.DiscountType.Valid {
			resp.Items[i].Discount = &discountResponse{
				Type:   item.DiscountType.String,
				Value:  money.FromNumeric(item.DiscountValue).String(),
				Reason: item.DiscountReason.String,
				Amount: numericString(item.DiscountAmount),
			}
		}
	}
	return resp
}

func toQuoteResponse(q *service.Quote) quoteResponse {
	p := q.Pricing
	resp := quoteResponse{
		Items:                      make([]quoteLineResponse, len(p.Lines)),
		Subtotal:                   money.Format(p.Subtotal),
		ItemDiscountTotal:          money.Format(p.ItemDiscountTotal),
		SubtotalAfterItemDiscounts: money.Format(p.SubtotalAfterItemDiscounts),
		CheckoutDiscountAmount:     money.Format(p.CheckoutDiscountAmount),
		SubtotalAfterDiscount:      money.Format(p.SubtotalAfterDiscount),
		TaxRateID:                  q.TaxRateID,
		TaxRateName:                q.TaxRateName,
		TaxRate:                    p.TaxRate.String(),
		Tax:                        money.Format(p.TaxAmount),
		Total:                      money.Format(p.Total),
	}
	for i, line := range p.Lines {
		resp.Items[i] = quoteLineResponse{
			ProductID:      line.ProductID,
			Name:           line.Name,
			Price:          money.Format(line.UnitPrice),
			Quantity:       line.Quantity,
			DiscountAmount: money.Format(line.DiscountAmount),
			LineSubtotal:   money.Format(line.LineSubtotal),
		}
	}
	return resp
}

// --- Handlers ---

// Create handles POST /orders. Totals are recomputed server-side; client
// figures that disagree are rejected.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	taxRateID, err := parseOptionalUUID("taxRateId", req.TaxRateID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	detail, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		QuoteRequest: service.QuoteRequest{
			Items:            toPricingItems(req.Items),
			CheckoutDiscount: req.CheckoutDiscount.toPricing(),
			TaxRateID:        taxRateID,
		},
		StaffID:       claims.StaffID,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      req.Subtotal,
		Tax:           req.Tax,
		Total:         req.Total,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(detail.Order, detail.Items))
}

// Quote handles POST /orders/quote.
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	taxRateID, err := parseOptionalUUID("taxRateId", req.TaxRateID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	quote, err := h.svc.Quote(r.Context(), service.QuoteRequest{
		Items:            toPricingItems(req.Items),
		CheckoutDiscount: req.CheckoutDiscount.toPricing(),
		TaxRateID:        taxRateID,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v < 0 {
			writeError(w, h.logger, r, apperror.FieldValidation("offset", "must be a non-negative integer"))
			return
		}
		offset = int(v)
	}

	staffID, err := parseOptionalUUID("staffId", r.URL.Query().Get("staffId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	orders, err := h.svc.List(r.Context(), service.ListOrdersRequest{
		Status:  r.URL.Query().Get("status"),
		StaffID: staffID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Limit:  limit,
		Offset: offset,
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(detail.Order, detail.Items))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req updateStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}
