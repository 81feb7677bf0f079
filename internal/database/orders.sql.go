package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, staff_id, payment_method, status, subtotal,
       item_discount_total, discount_type, discount_value, discount_reason, discount_amount,
       subtotal_after_discount, tax_rate, tax_amount, total, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerID,
		&i.StaffID,
		&i.PaymentMethod,
		&i.Status,
		&i.Subtotal,
		&i.ItemDiscountTotal,
		&i.DiscountType,
		&i.DiscountValue,
		&i.DiscountReason,
		&i.DiscountAmount,
		&i.SubtotalAfterDiscount,
		&i.TaxRate,
		&i.TaxAmount,
		&i.Total,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const orderItemColumns = `id, order_id, position, product_id, name, unit_price, quantity, discount_type,
       discount_value, discount_reason, discount_amount, line_subtotal`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Position,
		&i.ProductID,
		&i.Name,
		&i.UnitPrice,
		&i.Quantity,
		&i.DiscountType,
		&i.DiscountValue,
		&i.DiscountReason,
		&i.DiscountAmount,
		&i.LineSubtotal,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(CAST(substring(order_number FROM 5) AS INTEGER)), 0) + 1)::integer
FROM orders`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, customer_id, staff_id, payment_method, status, subtotal, item_discount_total,
    discount_type, discount_value, discount_reason, discount_amount, subtotal_after_discount,
    tax_rate, tax_amount, total
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber           string         `json:"order_number"`
	CustomerID            pgtype.Text    `json:"customer_id"`
	StaffID               uuid.UUID      `json:"staff_id"`
	PaymentMethod         string         `json:"payment_method"`
	Status                string         `json:"status"`
	Subtotal              pgtype.Numeric `json:"subtotal"`
	ItemDiscountTotal     pgtype.Numeric `json:"item_discount_total"`
	DiscountType          pgtype.Text    `json:"discount_type"`
	DiscountValue         pgtype.Numeric `json:"discount_value"`
	DiscountReason        pgtype.Text    `json:"discount_reason"`
	DiscountAmount        pgtype.Numeric `json:"discount_amount"`
	SubtotalAfterDiscount pgtype.Numeric `json:"subtotal_after_discount"`
	TaxRate               pgtype.Numeric `json:"tax_rate"`
	TaxAmount             pgtype.Numeric `json:"tax_amount"`
	Total                 pgtype.Numeric `json:"total"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.StaffID,
		arg.PaymentMethod,
		arg.Status,
		arg.Subtotal,
		arg.ItemDiscountTotal,
		arg.DiscountType,
		arg.DiscountValue,
		arg.DiscountReason,
		arg.DiscountAmount,
		arg.SubtotalAfterDiscount,
		arg.TaxRate,
		arg.TaxAmount,
		arg.Total,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, position, product_id, name, unit_price, quantity, discount_type,
    discount_value, discount_reason, discount_amount, line_subtotal
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID        uuid.UUID      `json:"order_id"`
	Position       int32          `json:"position"`
	ProductID      string         `json:"product_id"`
	Name           string         `json:"name"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	Quantity       int32          `json:"quantity"`
	DiscountType   pgtype.Text    `json:"discount_type"`
	DiscountValue  pgtype.Numeric `json:"discount_value"`
	DiscountReason pgtype.Text    `json:"discount_reason"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	LineSubtotal   pgtype.Numeric `json:"line_subtotal"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.Position,
		arg.ProductID,
		arg.Name,
		arg.UnitPrice,
		arg.Quantity,
		arg.DiscountType,
		arg.DiscountValue,
		arg.DiscountReason,
		arg.DiscountAmount,
		arg.LineSubtotal,
	)
	return scanOrderItem(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
  AND ($2::uuid IS NULL OR staff_id = $2::uuid)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	Status  pgtype.Text `json:"status"`
	StaffID pgtype.UUID `json:"staff_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.StaffID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY position`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	CurrentStatus string    `json:"current_status"`
}

// UpdateOrderStatus is a compare-and-swap: it returns pgx.ErrNoRows when
// the order is no longer in CurrentStatus.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.CurrentStatus))
}
