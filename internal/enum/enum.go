package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	StaffStatusActive    = "active"
	StaffStatusInactive  = "inactive"
	StaffStatusSuspended = "suspended"
)

// ── Roles (CHECK constrained in DB) ──

const (
	StaffRoleCashier    = "Cashier"
	StaffRoleManager    = "Manager"
	StaffRoleSupervisor = "Supervisor"
	StaffRoleAdmin      = "Admin"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodMobile = "mobile"
	PaymentMethodOther  = "other"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// ── Websocket topics and event types ──

const (
	TopicOrders = "orders"
	TopicStaff  = "staff"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventStaffLoggedIn      = "staff.logged_in"
	EventStaffLoggedOut     = "staff.logged_out"
)
