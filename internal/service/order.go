package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/money"
	"github.com/tillpoint/pos-api/internal/pricing"
)

const (
	maxOrderNumberRetries = 3
	orderNumberConstraint = "orders_order_number_key"
)

// Errors returned by the order service.
var (
	ErrEmptyItems           = apperror.FieldValidation("items", "items are required")
	ErrInvalidPaymentMethod = apperror.FieldValidation("paymentMethod", "invalid payment method")
	ErrInvalidOrderStatus   = apperror.FieldValidation("status", "invalid status")
	ErrOrderNotFound        = apperror.NotFound("order")
	ErrOrderStatusRaced     = apperror.StateConflict("order status changed, please retry")
)

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTaxRate(ctx context.Context, id uuid.UUID) (database.TaxRate, error)
	GetDefaultTaxRate(ctx context.Context) (database.TaxRate, error)
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	AddStaffSale(ctx context.Context, arg database.AddStaffSaleParams) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// QuoteRequest is a cart to be priced. A nil TaxRateID selects the
// default tax rate.
type QuoteRequest struct {
	Items            []pricing.Item
	CheckoutDiscount *pricing.Discount
	TaxRateID        *uuid.UUID
}

// Quote is a priced cart together with the tax rate that was applied.
type Quote struct {
	Pricing     *pricing.Result
	TaxRateID   uuid.UUID
	TaxRateName string
}

// CreateOrderRequest is the validated input for creating an order.
// Subtotal, Tax and Total are the client's own figures; when present they
// must agree with the server-side computation.
type CreateOrderRequest struct {
	QuoteRequest
	StaffID       uuid.UUID
	CustomerID    string
	PaymentMethod string
	Subtotal      *decimal.Decimal
	Tax           *decimal.Decimal
	Total         *decimal.Decimal
}

// OrderDetail is an order with its items.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
}

// ListOrdersRequest filters the order listing.
type ListOrdersRequest struct {
	Status  string
	StaffID *uuid.UUID
	Limit   int32
	Offset  int32
}

type orderEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	StaffID     uuid.UUID `json:"staffId"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	At          time.Time `json:"at"`
}

// OrderService handles checkout and the order status machine.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	events   EventPublisher
	logger   *logrus.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, events EventPublisher, logger *logrus.Logger) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		events:   publisherOrNop(events),
		logger:   logger,
	}
}

// Quote prices a cart without persisting anything. An empty cart is valid.
func (s *OrderService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	return quote(ctx, s.store, req)
}

func quote(ctx context.Context, store OrderStore, req QuoteRequest) (*Quote, error) {
	rate, err := resolveTaxRate(ctx, store, req.TaxRateID)
	if err != nil {
		return nil, err
	}
	result, err := pricing.PriceOrder(req.Items, req.CheckoutDiscount, money.FromNumeric(rate.Rate))
	if err != nil {
		return nil, err
	}
	return &Quote{Pricing: result, TaxRateID: rate.ID, TaxRateName: rate.Name}, nil
}

func resolveTaxRate(ctx context.Context, store OrderStore, id *uuid.UUID) (database.TaxRate, error) {
	if id != nil {
		rate, err := store.GetTaxRate(ctx, *id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.TaxRate{}, ErrTaxRateNotFound
			}
			return database.TaxRate{}, fmt.Errorf("get tax rate: %w", err)
		}
		return rate, nil
	}
	rate, err := store.GetDefaultTaxRate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.TaxRate{}, ErrNoDefaultTaxRate
		}
		return database.TaxRate{}, fmt.Errorf("get default tax rate: %w", err)
	}
	return rate, nil
}

// CreateOrder prices the cart server-side and persists the order with its
// items atomically. Retries up to maxOrderNumberRetries times on
// order_number unique violations (concurrent transactions reading the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"order_id":     result.Order.ID,
				"order_number": result.Order.OrderNumber,
				"staff_id":     result.Order.StaffID,
				"total":        money.Format(money.FromNumeric(result.Order.Total)),
			}).Info("order created")
			s.events.Publish(enum.TopicOrders, enum.EventOrderCreated, newOrderEvent(result.Order))
			return result, nil
		}
		if isUniqueViolation(err, orderNumberConstraint) {
			s.logger.WithField("attempt", attempt+1).Warn("order number conflict, retrying")
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create order: %w", lastErr)
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	q, err := quote(ctx, store, req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	priced := q.Pricing

	if err := checkClientTotals(req, priced); err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	params := database.CreateOrderParams{
		OrderNumber:           fmt.Sprintf("ORD-%05d", nextNum),
		CustomerID:            textOrNull(req.CustomerID),
		StaffID:               req.StaffID,
		PaymentMethod:         req.PaymentMethod,
		Status:                enum.OrderStatusPending,
		Subtotal:              money.ToNumeric(priced.Subtotal),
		ItemDiscountTotal:     money.ToNumeric(priced.ItemDiscountTotal),
		DiscountAmount:        money.ToNumeric(priced.CheckoutDiscountAmount),
		SubtotalAfterDiscount: money.ToNumeric(priced.SubtotalAfterDiscount),
		TaxRate:               money.ToNumeric(priced.TaxRate),
		TaxAmount:             money.ToNumeric(priced.TaxAmount),
		Total:                 money.ToNumeric(priced.Total),
	}
	if d := priced.CheckoutDiscount; d != nil {
		params.DiscountType = pgtype.Text{String: d.Type, Valid: true}
		params.DiscountValue = money.ToNumeric(d.Value)
		params.DiscountReason = textOrNull(d.Reason)
	}

	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(priced.Lines))
	for i, line := range priced.Lines {
		itemParams := database.CreateOrderItemParams{
			OrderID:        order.ID,
			Position:       int32(i),
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPrice:      money.ToNumeric(line.UnitPrice),
			Quantity:       line.Quantity,
			DiscountAmount: money.ToNumeric(line.DiscountAmount),
			LineSubtotal:   money.ToNumeric(line.LineSubtotal),
		}
		if d := line.Discount; d != nil {
			itemParams.DiscountType = pgtype.Text{String: d.Type, Valid: true}
			itemParams.DiscountValue = money.ToNumeric(d.Value)
			itemParams.DiscountReason = textOrNull(d.Reason)
		}
		item, err := store.CreateOrderItem(ctx, itemParams)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: create order item: %w", i, err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: order, Items: items}, nil
}

// checkClientTotals rejects client-supplied figures that disagree with
// the computed ones.
func checkClientTotals(req CreateOrderRequest, priced *pricing.Result) error {
	checks := []struct {
		field  string
		client *decimal.Decimal
		server decimal.Decimal
	}{
		{"subtotal", req.Subtotal, priced.Subtotal},
		{"tax", req.Tax, priced.TaxAmount},
		{"total", req.Total, priced.Total},
	}
	for _, c := range checks {
		if c.client == nil {
			continue
		}
		if !money.Round2(*c.client).Equal(c.server) {
			return apperror.FieldValidation(c.field, fmt.Sprintf(
				"%s %s does not match computed %s",
				c.field, money.Format(*c.client), money.Format(c.server),
			))
		}
	}
	return nil
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	params := database.ListOrdersParams{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.Status != "" {
		if !isValidOrderStatus(req.Status) {
			return nil, ErrInvalidOrderStatus
		}
		params.Status = pgtype.Text{String: req.Status, Valid: true}
	}
	if req.StaffID != nil {
		params.StaffID = pgtype.UUID{Bytes: *req.StaffID, Valid: true}
	}

	orders, err := s.store.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order along pending → processing → completed or
// pending → cancelled. Completing an order credits the staff member's sales
// totals in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next string) (database.Order, error) {
	if !isValidOrderStatus(next) {
		return database.Order{}, ErrInvalidOrderStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := validateStatusTransition(current.Status, next); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            id,
		Status:        next,
		CurrentStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between the read and the write.
			return database.Order{}, ErrOrderStatusRaced
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if next == enum.OrderStatusCompleted {
		if err := store.AddStaffSale(ctx, database.AddStaffSaleParams{
			ID:     updated.StaffID,
			Amount: updated.Total,
		}); err != nil {
			return database.Order{}, fmt.Errorf("add staff sale: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       next,
	}).Info("order status changed")
	s.events.Publish(enum.TopicOrders, enum.EventOrderStatusChanged, newOrderEvent(updated))

	return updated, nil
}

func newOrderEvent(o database.Order) orderEvent {
	return orderEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		StaffID:     o.StaffID,
		Status:      o.Status,
		Total:       money.Format(money.FromNumeric(o.Total)),
		At:          o.UpdatedAt,
	}
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:    {enum.OrderStatusProcessing, enum.OrderStatusCancelled},
	enum.OrderStatusProcessing: {enum.OrderStatusCompleted},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return apperror.StateConflict(fmt.Sprintf("cannot transition from %s", current))
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return apperror.StateConflict(fmt.Sprintf("cannot transition from %s to %s", current, next))
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusProcessing,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard,
		enum.PaymentMethodMobile, enum.PaymentMethodOther:
		return true
	}
	return false
}
