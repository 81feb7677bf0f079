package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Staff struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	Role              string             `json:"role"`
	PinHash           string             `json:"-"`
	Email             string             `json:"email"`
	Phone             pgtype.Text        `json:"phone"`
	Status            string             `json:"status"`
	IsLoggedIn        bool               `json:"is_logged_in"`
	LoginSessionID    pgtype.Text        `json:"login_session_id"`
	LastLogin         pgtype.Timestamptz `json:"last_login"`
	LastLogout        pgtype.Timestamptz `json:"last_logout"`
	TotalSales        pgtype.Numeric     `json:"total_sales"`
	TotalTransactions int32              `json:"total_transactions"`
	Notes             pgtype.Text        `json:"notes"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type StaffSession struct {
	ID        string             `json:"id"`
	StaffID   uuid.UUID          `json:"staff_id"`
	UserAgent pgtype.Text        `json:"user_agent"`
	CreatedAt time.Time          `json:"created_at"`
	RevokedAt pgtype.Timestamptz `json:"revoked_at"`
}

type TaxRate struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Rate        pgtype.Numeric `json:"rate"`
	Description pgtype.Text    `json:"description"`
	IsDefault   bool           `json:"is_default"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Order struct {
	ID                    uuid.UUID      `json:"id"`
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
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID             uuid.UUID      `json:"id"`
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
