package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
)

// Errors returned by the staff service.
var (
	ErrStaffNotFound      = apperror.NotFound("staff")
	ErrEmailTaken         = apperror.Conflict("email already exists")
	ErrInvalidPin         = apperror.FieldValidation("pin", "PIN must be 4-6 digits")
	ErrInvalidNewPin      = apperror.FieldValidation("newPin", "PIN must be 4-6 digits")
	ErrPinUnchanged       = apperror.FieldValidation("newPin", "new PIN must differ from the current PIN")
	ErrInvalidRole        = apperror.FieldValidation("role", "invalid role")
	ErrInvalidStaffStatus = apperror.FieldValidation("status", "invalid status")
	ErrStaffNameRequired  = apperror.FieldValidation("name", "name is required")
	ErrStaffEmailRequired = apperror.FieldValidation("email", "email is required")
	ErrSessionInvalid     = &apperror.Error{Kind: apperror.KindAuthentication, Message: "session expired or revoked"}
)

// StaffStore defines the DB methods needed by the staff service.
// Satisfied by *database.Queries (and its WithTx variant).
type StaffStore interface {
	GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (database.Staff, error)
	ListStaff(ctx context.Context) ([]database.Staff, error)
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	UpdateStaff(ctx context.Context, arg database.UpdateStaffParams) (database.Staff, error)
	UpdateStaffPin(ctx context.Context, arg database.UpdateStaffPinParams) error
	MarkStaffLoggedIn(ctx context.Context, arg database.MarkStaffLoggedInParams) (database.Staff, error)
	MarkStaffLoggedOut(ctx context.Context, arg database.MarkStaffLoggedOutParams) (database.Staff, error)
	CreateStaffSession(ctx context.Context, arg database.CreateStaffSessionParams) (database.StaffSession, error)
	GetActiveStaffSession(ctx context.Context, id string) (database.StaffSession, error)
	RevokeStaffSessions(ctx context.Context, arg database.RevokeStaffSessionsParams) (int64, error)
}

// NewStaffStore creates a StaffStore from a DBTX (pool or tx).
type NewStaffStore func(db database.DBTX) StaffStore

// LoginRequest carries the credentials presented at the till.
type LoginRequest struct {
	Email     string
	Pin       string
	UserAgent string
}

// Session is the result of a successful login.
type Session struct {
	Staff     database.Staff
	SessionID string
	LoginTime time.Time
}

// CreateStaffRequest is the input for adding a staff member.
type CreateStaffRequest struct {
	Name   string
	Role   string
	Pin    string
	Email  string
	Phone  string
	Status string
	Notes  string
}

// UpdateStaffRequest replaces a staff member's profile. Pin is optional;
// when set it resets the PIN without requiring the old one.
type UpdateStaffRequest struct {
	ID     uuid.UUID
	Name   string
	Role   string
	Pin    string
	Email  string
	Phone  string
	Status string
	Notes  string
}

type staffEvent struct {
	StaffID uuid.UUID `json:"staffId"`
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	At      time.Time `json:"at"`
}

// StaffService owns the staff session lifecycle and staff records.
type StaffService struct {
	pool     TxBeginner
	store    StaffStore
	newStore NewStaffStore
	verifier auth.CredentialVerifier
	events   EventPublisher
	logger   *logrus.Logger

	now          func() time.Time
	newSessionID func() (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewStaffService creates a new StaffService. store serves reads outside a
// transaction; newStore binds the same queries to a transaction.
func NewStaffService(pool TxBeginner, store StaffStore, newStore NewStaffStore, verifier auth.CredentialVerifier, events EventPublisher, logger *logrus.Logger) *StaffService {
	return &StaffService{
		pool:         pool,
		store:        store,
		newStore:     newStore,
		verifier:     verifier,
		events:       publisherOrNop(events),
		logger:       logger,
		now:          time.Now,
		newSessionID: auth.NewSessionID,
	}
}

// Login authenticates an active staff member by email and PIN and opens a
// new session. Any mismatch yields the same authentication error and leaves
// the staff record untouched.
func (s *StaffService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Pin == "" {
		return nil, apperror.Authentication()
	}

	staff, err := s.store.GetStaffByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.burnVerify(req.Pin)
			return nil, apperror.Authentication()
		}
		return nil, fmt.Errorf("get staff by email: %w", err)
	}
	if staff.Status != enum.StaffStatusActive {
		s.burnVerify(req.Pin)
		return nil, apperror.Authentication()
	}
	if err := s.verifier.Verify(staff.PinHash, req.Pin); err != nil {
		if errors.Is(err, auth.ErrPinMismatch) {
			return nil, apperror.Authentication()
		}
		return nil, err
	}

	sessionID, err := s.newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.CreateStaffSession(ctx, database.CreateStaffSessionParams{
		ID:        sessionID,
		StaffID:   staff.ID,
		UserAgent: textOrNull(req.UserAgent),
		CreatedAt: pgtype.Timestamptz{Time: now, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	updated, err := store.MarkStaffLoggedIn(ctx, database.MarkStaffLoggedInParams{
		ID:             staff.ID,
		LoginSessionID: pgtype.Text{String: sessionID, Valid: true},
		LastLogin:      pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("mark logged in: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"staff_id": updated.ID,
		"role":     updated.Role,
	}).Info("staff logged in")
	s.events.Publish(enum.TopicStaff, enum.EventStaffLoggedIn, staffEvent{
		StaffID: updated.ID,
		Name:    updated.Name,
		Role:    updated.Role,
		At:      now,
	})

	return &Session{Staff: updated, SessionID: sessionID, LoginTime: now}, nil
}

// burnVerify runs a PIN check against a throwaway hash so failed logins
// for unknown or inactive staff cost the same as a wrong PIN.
func (s *StaffService) burnVerify(pin string) {
	s.dummyOnce.Do(func() {
		hashed, err := s.verifier.Hash("000000")
		if err != nil {
			s.logger.WithError(err).Warn("hash placeholder pin")
			return
		}
		s.dummyHash = hashed
	})
	if s.dummyHash != "" {
		_ = s.verifier.Verify(s.dummyHash, pin)
	}
}

// Logout revokes every open session of the staff member and clears the
// logged-in flag. Logging out an already logged-out member is a no-op.
func (s *StaffService) Logout(ctx context.Context, staffID uuid.UUID) (database.Staff, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Staff{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	staff, err := store.GetStaffByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Staff{}, ErrStaffNotFound
		}
		return database.Staff{}, fmt.Errorf("get staff: %w", err)
	}

	now := s.now()
	revoked, err := store.RevokeStaffSessions(ctx, database.RevokeStaffSessionsParams{
		StaffID:   staffID,
		RevokedAt: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return database.Staff{}, fmt.Errorf("revoke sessions: %w", err)
	}

	if !staff.IsLoggedIn && revoked == 0 {
		return staff, nil
	}

	updated, err := store.MarkStaffLoggedOut(ctx, database.MarkStaffLoggedOutParams{
		ID:         staffID,
		LastLogout: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return database.Staff{}, fmt.Errorf("mark logged out: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Staff{}, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"staff_id":         staffID,
		"revoked_sessions": revoked,
	}).Info("staff logged out")
	s.events.Publish(enum.TopicStaff, enum.EventStaffLoggedOut, staffEvent{
		StaffID: updated.ID,
		Name:    updated.Name,
		Role:    updated.Role,
		At:      now,
	})

	return updated, nil
}

// ChangePin replaces the staff member's PIN after verifying the old one.
func (s *StaffService) ChangePin(ctx context.Context, staffID uuid.UUID, oldPin, newPin string) error {
	staff, err := s.store.GetStaffByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaffNotFound
		}
		return fmt.Errorf("get staff: %w", err)
	}

	if err := s.verifier.Verify(staff.PinHash, oldPin); err != nil {
		if errors.Is(err, auth.ErrPinMismatch) {
			return apperror.Authentication()
		}
		return err
	}

	if !auth.ValidPin(newPin) {
		return ErrInvalidNewPin
	}
	if newPin == oldPin {
		return ErrPinUnchanged
	}

	hashed, err := s.verifier.Hash(newPin)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStaffPin(ctx, database.UpdateStaffPinParams{
		ID:      staffID,
		PinHash: hashed,
	}); err != nil {
		return fmt.Errorf("update pin: %w", err)
	}

	s.logger.WithField("staff_id", staffID).Info("staff PIN changed")
	return nil
}

// ValidateSession returns the open session with the given id. Revoked or
// unknown sessions, and sessions of staff who are no longer active, fail
// with an authentication error.
func (s *StaffService) ValidateSession(ctx context.Context, sessionID string) (database.StaffSession, error) {
	if sessionID == "" {
		return database.StaffSession{}, ErrSessionInvalid
	}

	session, err := s.store.GetActiveStaffSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.StaffSession{}, ErrSessionInvalid
		}
		return database.StaffSession{}, fmt.Errorf("get session: %w", err)
	}

	staff, err := s.store.GetStaffByID(ctx, session.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.StaffSession{}, ErrSessionInvalid
		}
		return database.StaffSession{}, fmt.Errorf("get staff: %w", err)
	}
	if staff.Status != enum.StaffStatusActive {
		return database.StaffSession{}, ErrSessionInvalid
	}

	return session, nil
}

// List returns every staff record ordered by name.
func (s *StaffService) List(ctx context.Context) ([]database.Staff, error) {
	staff, err := s.store.ListStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// Get returns one staff record.
func (s *StaffService) Get(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	staff, err := s.store.GetStaffByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Staff{}, ErrStaffNotFound
		}
		return database.Staff{}, fmt.Errorf("get staff: %w", err)
	}
	return staff, nil
}

// Create adds a staff member with a hashed PIN.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (database.Staff, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	status := req.Status
	if status == "" {
		status = enum.StaffStatusActive
	}

	switch {
	case name == "":
		return database.Staff{}, ErrStaffNameRequired
	case email == "":
		return database.Staff{}, ErrStaffEmailRequired
	case !isValidRole(req.Role):
		return database.Staff{}, ErrInvalidRole
	case !isValidStaffStatus(status):
		return database.Staff{}, ErrInvalidStaffStatus
	case !auth.ValidPin(req.Pin):
		return database.Staff{}, ErrInvalidPin
	}

	hashed, err := s.verifier.Hash(req.Pin)
	if err != nil {
		return database.Staff{}, err
	}

	staff, err := s.store.CreateStaff(ctx, database.CreateStaffParams{
		Name:    name,
		Role:    req.Role,
		PinHash: hashed,
		Email:   email,
		Phone:   textOrNull(req.Phone),
		Status:  status,
		Notes:   textOrNull(req.Notes),
	})
	if err != nil {
		if isUniqueViolation(err, "") {
			return database.Staff{}, ErrEmailTaken
		}
		return database.Staff{}, fmt.Errorf("create staff: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"staff_id": staff.ID,
		"role":     staff.Role,
	}).Info("staff created")
	return staff, nil
}

// Update replaces a staff profile. Changing the role or moving a member
// out of the active status ends their sessions in the same transaction.
func (s *StaffService) Update(ctx context.Context, req UpdateStaffRequest) (database.Staff, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)

	switch {
	case name == "":
		return database.Staff{}, ErrStaffNameRequired
	case email == "":
		return database.Staff{}, ErrStaffEmailRequired
	case !isValidRole(req.Role):
		return database.Staff{}, ErrInvalidRole
	case !isValidStaffStatus(req.Status):
		return database.Staff{}, ErrInvalidStaffStatus
	case req.Pin != "" && !auth.ValidPin(req.Pin):
		return database.Staff{}, ErrInvalidPin
	}

	var hashed string
	if req.Pin != "" {
		h, err := s.verifier.Hash(req.Pin)
		if err != nil {
			return database.Staff{}, err
		}
		hashed = h
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Staff{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetStaffByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Staff{}, ErrStaffNotFound
		}
		return database.Staff{}, fmt.Errorf("get staff: %w", err)
	}

	staff, err := store.UpdateStaff(ctx, database.UpdateStaffParams{
		ID:     req.ID,
		Name:   name,
		Role:   req.Role,
		Email:  email,
		Phone:  textOrNull(req.Phone),
		Status: req.Status,
		Notes:  textOrNull(req.Notes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Staff{}, ErrStaffNotFound
		}
		if isUniqueViolation(err, "") {
			return database.Staff{}, ErrEmailTaken
		}
		return database.Staff{}, fmt.Errorf("update staff: %w", err)
	}

	if hashed != "" {
		if err := store.UpdateStaffPin(ctx, database.UpdateStaffPinParams{ID: req.ID, PinHash: hashed}); err != nil {
			return database.Staff{}, fmt.Errorf("update pin: %w", err)
		}
	}

	// Tokens carry the role, so a role change must invalidate them too.
	if staff.Status != enum.StaffStatusActive || staff.Role != current.Role {
		staff, err = s.endSessions(ctx, store, staff)
		if err != nil {
			return database.Staff{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Staff{}, fmt.Errorf("commit tx: %w", err)
	}
	return staff, nil
}

// Deactivate sets the staff member inactive and ends their sessions. Staff
// rows are never hard-deleted because orders reference them.
func (s *StaffService) Deactivate(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Staff{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetStaffByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Staff{}, ErrStaffNotFound
		}
		return database.Staff{}, fmt.Errorf("get staff: %w", err)
	}

	staff, err := store.UpdateStaff(ctx, database.UpdateStaffParams{
		ID:     current.ID,
		Name:   current.Name,
		Role:   current.Role,
		Email:  current.Email,
		Phone:  current.Phone,
		Status: enum.StaffStatusInactive,
		Notes:  current.Notes,
	})
	if err != nil {
		return database.Staff{}, fmt.Errorf("deactivate staff: %w", err)
	}

	staff, err = s.endSessions(ctx, store, staff)
	if err != nil {
		return database.Staff{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Staff{}, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.WithField("staff_id", id).Info("staff deactivated")
	return staff, nil
}

func (s *StaffService) endSessions(ctx context.Context, store StaffStore, staff database.Staff) (database.Staff, error) {
	now := pgtype.Timestamptz{Time: s.now(), Valid: true}
	revoked, err := store.RevokeStaffSessions(ctx, database.RevokeStaffSessionsParams{
		StaffID:   staff.ID,
		RevokedAt: now,
	})
	if err != nil {
		return database.Staff{}, fmt.Errorf("revoke sessions: %w", err)
	}
	if !staff.IsLoggedIn && revoked == 0 {
		return staff, nil
	}
	staff, err = store.MarkStaffLoggedOut(ctx, database.MarkStaffLoggedOutParams{
		ID:         staff.ID,
		LastLogout: now,
	})
	if err != nil {
		return database.Staff{}, fmt.Errorf("mark logged out: %w", err)
	}
	return staff, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidRole(role string) bool {
	switch role {
	case enum.StaffRoleCashier, enum.StaffRoleManager,
		enum.StaffRoleSupervisor, enum.StaffRoleAdmin:
		return true
	}
	return false
}

func isValidStaffStatus(status string) bool {
	switch status {
	case enum.StaffStatusActive, enum.StaffStatusInactive, enum.StaffStatusSuspended:
		return true
	}
	return false
}
