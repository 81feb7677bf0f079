package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/middleware"
	"github.com/tillpoint/pos-api/internal/money"
	"github.com/tillpoint/pos-api/internal/service"
)

// StaffServicer defines the service methods needed by staff handlers.
// Satisfied by *service.StaffService; narrow interface for testability.
type StaffServicer interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.Session, error)
	Logout(ctx context.Context, staffID uuid.UUID) (database.Staff, error)
	ChangePin(ctx context.Context, staffID uuid.UUID, oldPin, newPin string) error
	List(ctx context.Context) ([]database.Staff, error)
	Get(ctx context.Context, id uuid.UUID) (database.Staff, error)
	Create(ctx context.Context, req service.CreateStaffRequest) (database.Staff, error)
	Update(ctx context.Context, req service.UpdateStaffRequest) (database.Staff, error)
	Deactivate(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

// StaffHandler handles staff session and staff management endpoints.
type StaffHandler struct {
	svc       StaffServicer
	jwtSecret string
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(svc StaffServicer, jwtSecret string, tokenTTL time.Duration, logger *logrus.Logger) *StaffHandler {
	return &StaffHandler{svc: svc, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

// RegisterLoginRoute registers the public login endpoint. The router wraps
// it in the login rate limiter.
func (h *StaffHandler) RegisterLoginRoute(r chi.Router) {
	r.Post("/login", h.Login)
}

// RegisterSessionRoutes registers the authenticated session endpoints.
func (h *StaffHandler) RegisterSessionRoutes(r chi.Router) {
	r.Post("/logout", h.Logout)
	r.Post("/change-pin", h.ChangePin)
}

// RegisterManagementRoutes registers staff CRUD. Expected to be mounted
// behind a Manager/Admin role gate.
func (h *StaffHandler) RegisterManagementRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type loginRequest struct {
	Email string `json:"email" validate:"required"`
	Pin   string `json:"pin" validate:"required"`
}

type loginResponse struct {
	ID          uuid.UUID `json:"_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	SessionID   string    `json:"sessionId"`
	LoginTime   time.Time `json:"loginTime"`
	AccessToken string    `json:"accessToken"`
}

type logoutRequest struct {
	StaffID string `json:"staffId" validate:"omitempty,uuid"`
}

type changePinRequest struct {
	StaffID string `json:"staffId" validate:"omitempty,uuid"`
	OldPin  string `json:"oldPin" validate:"required"`
	NewPin  string `json:"newPin" validate:"required"`
}

type staffRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Role   string `json:"role" validate:"required,oneof=Cashier Manager Supervisor Admin"`
	Pin    string `json:"pin"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"max=30"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	Notes  string `json:"notes"`
}

// updateStaffRequest replaces a profile, so status is required.
type updateStaffRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Role   string `json:"role" validate:"required,oneof=Cashier Manager Supervisor Admin"`
	Pin    string `json:"pin"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"max=30"`
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
	Notes  string `json:"notes"`
}

type staffResponse struct {
	ID                uuid.UUID  `json:"_id"`
	Name              string     `json:"name"`
	Role              string     `json:"role"`
	Email             string     `json:"email"`
	Phone             *string    `json:"phone"`
	Status            string     `json:"status"`
	IsLoggedIn        bool       `json:"isLoggedIn"`
	LastLogin         *time.Time `json:"lastLogin"`
	LastLogout        *time.Time `json:"lastLogout"`
	TotalSales        string     `json:"totalSales"`
	TotalTransactions int32      `json:"totalTransactions"`
	Notes             *string    `json:"notes"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toStaffResponse(s database.Staff) staffResponse {
	resp := staffResponse{
		ID:                s.ID,
		Name:              s.Name,
		Role:              s.Role,
		Email:             s.Email,
		Phone:             optionalText(s.Phone),
		Status:            s.Status,
		IsLoggedIn:        s.IsLoggedIn,
		TotalSales:        money.Format(money.FromNumeric(s.TotalSales)),
		TotalTransactions: s.TotalTransactions,
		Notes:             optionalText(s.Notes),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.LastLogin.Valid {
		resp.LastLogin = &s.LastLogin.Time
	}
	if s.LastLogout.Valid {
		resp.LastLogout = &s.LastLogout.Time
	}
	return resp
}

// --- Session handlers ---

// Login handles POST /staff/login.
func (h *StaffHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), service.LoginRequest{
		Email:     req.Email,
		Pin:       req.Pin,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, h.tokenTTL, session.Staff.ID, session.SessionID, session.Staff.Role)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		ID:          session.Staff.ID,
		Name:        session.Staff.Name,
		Role:        session.Staff.Role,
		SessionID:   session.SessionID,
		LoginTime:   session.LoginTime,
		AccessToken: token,
	})
}

// Logout handles POST /staff/logout. Without a staffId the caller logs
// themselves out; ending another member's sessions needs Manager or Admin.
func (h *StaffHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req logoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	staffID := claims.StaffID
	if req.StaffID != "" {
		staffID = uuid.MustParse(req.StaffID)
	}
	if staffID != claims.StaffID && !middleware.HasRole(claims, enum.StaffRoleManager, enum.StaffRoleAdmin) {
		writeError(w, h.logger, r, apperror.Forbidden("cannot log out another staff member"))
		return
	}

	staff, err := h.svc.Logout(r.Context(), staffID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out successfully",
		"staff":   toStaffResponse(staff),
	})
}

// ChangePin handles POST /staff/change-pin. Staff may only change their
// own PIN.
func (h *StaffHandler) ChangePin(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req changePinRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.StaffID != "" && uuid.MustParse(req.StaffID) != claims.StaffID {
		writeError(w, h.logger, r, apperror.Forbidden("cannot change another staff member's PIN"))
		return
	}

	if err := h.svc.ChangePin(r.Context(), claims.StaffID, req.OldPin, req.NewPin); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN changed successfully"})
}

// --- Management handlers ---

// List handles GET /staff.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	staff, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := make([]staffResponse, len(staff))
	for i, s := range staff {
		resp[i] = toStaffResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /staff/{id}.
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	staff, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}

// Create handles POST /staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	staff, err := h.svc.Create(r.Context(), service.CreateStaffRequest{
		Name:   req.Name,
		Role:   req.Role,
		Pin:    req.Pin,
		Email:  req.Email,
		Phone:  req.Phone,
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(staff))
}

// Update handles PUT /staff/{id}. An empty pin keeps the current one.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req updateStaffRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	staff, err := h.svc.Update(r.Context(), service.UpdateStaffRequest{
		ID:     id,
		Name:   req.Name,
		Role:   req.Role,
		Pin:    req.Pin,
		Email:  req.Email,
		Phone:  req.Phone,
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}

// Delete handles DELETE /staff/{id}. Staff are deactivated rather than
// removed so their orders keep a valid owner.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	staff, err := h.svc.Deactivate(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}
