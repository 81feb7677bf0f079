package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// fakeStaffStore is an in-memory StaffStore. Writes are recorded so tests
// can assert that a failed login touched nothing.
type fakeStaffStore struct {
	staff    map[uuid.UUID]database.Staff
	sessions map[string]database.StaffSession
	writes   []string

	markLoggedInErr error
}

func newFakeStaffStore() *fakeStaffStore {
	return &fakeStaffStore{
		staff:    make(map[uuid.UUID]database.Staff),
		sessions: make(map[string]database.StaffSession),
	}
}

func (f *fakeStaffStore) GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	s, ok := f.staff[id]
	if !ok {
		return database.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStaffStore) GetStaffByEmail(ctx context.Context, email string) (database.Staff, error) {
	for _, s := range f.staff {
		if s.Email == email {
			return s, nil
		}
	}
	return database.Staff{}, pgx.ErrNoRows
}

func (f *fakeStaffStore) ListStaff(ctx context.Context) ([]database.Staff, error) {
	out := make([]database.Staff, 0, len(f.staff))
	for _, s := range f.staff {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStaffStore) CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error) {
	for _, s := range f.staff {
		if s.Email == arg.Email {
			return database.Staff{}, &pgconn.PgError{Code: "23505", ConstraintName: "staff_email_key"}
		}
	}
	f.writes = append(f.writes, "CreateStaff")
	s := database.Staff{
		ID:      uuid.New(),
		Name:    arg.Name,
		Role:    arg.Role,
		PinHash: arg.PinHash,
		Email:   arg.Email,
		Phone:   arg.Phone,
		Status:  arg.Status,
		Notes:   arg.Notes,
	}
	f.staff[s.ID] = s
	return s, nil
}

func (f *fakeStaffStore) UpdateStaff(ctx context.Context, arg database.UpdateStaffParams) (database.Staff, error) {
	s, ok := f.staff[arg.ID]
	if !ok {
		return database.Staff{}, pgx.ErrNoRows
	}
	f.writes = append(f.writes, "UpdateStaff")
	s.Name, s.Role, s.Email, s.Phone, s.Status, s.Notes = arg.Name, arg.Role, arg.Email, arg.Phone, arg.Status, arg.Notes
	f.staff[arg.ID] = s
	return s, nil
}

func (f *fakeStaffStore) UpdateStaffPin(ctx context.Context, arg database.UpdateStaffPinParams) error {
	s, ok := f.staff[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	f.writes = append(f.writes, "UpdateStaffPin")
	s.PinHash = arg.PinHash
	f.staff[arg.ID] = s
	return nil
}

func (f *fakeStaffStore) MarkStaffLoggedIn(ctx context.Context, arg database.MarkStaffLoggedInParams) (database.Staff, error) {
	if f.markLoggedInErr != nil {
		return database.Staff{}, f.markLoggedInErr
	}
	s := f.staff[arg.ID]
	f.writes = append(f.writes, "MarkStaffLoggedIn")
	s.IsLoggedIn = true
	s.LoginSessionID = arg.LoginSessionID
	s.LastLogin = arg.LastLogin
	f.staff[arg.ID] = s
	return s, nil
}

func (f *fakeStaffStore) MarkStaffLoggedOut(ctx context.Context, arg database.MarkStaffLoggedOutParams) (database.Staff, error) {
	s := f.staff[arg.ID]
	f.writes = append(f.writes, "MarkStaffLoggedOut")
	s.IsLoggedIn = false
	s.LoginSessionID = pgtype.Text{}
	s.LastLogout = arg.LastLogout
	f.staff[arg.ID] = s
	return s, nil
}

func (f *fakeStaffStore) CreateStaffSession(ctx context.Context, arg database.CreateStaffSessionParams) (database.StaffSession, error) {
	f.writes = append(f.writes, "CreateStaffSession")
	sess := database.StaffSession{
		ID:        arg.ID,
		StaffID:   arg.StaffID,
		UserAgent: arg.UserAgent,
		CreatedAt: arg.CreatedAt.Time,
	}
	f.sessions[arg.ID] = sess
	return sess, nil
}

func (f *fakeStaffStore) GetActiveStaffSession(ctx context.Context, id string) (database.StaffSession, error) {
	sess, ok := f.sessions[id]
	if !ok || sess.RevokedAt.Valid {
		return database.StaffSession{}, pgx.ErrNoRows
	}
	return sess, nil
}

func (f *fakeStaffStore) RevokeStaffSessions(ctx context.Context, arg database.RevokeStaffSessionsParams) (int64, error) {
	var n int64
	for id, sess := range f.sessions {
		if sess.StaffID == arg.StaffID && !sess.RevokedAt.Valid {
			sess.RevokedAt = arg.RevokedAt
			f.sessions[id] = sess
			n++
		}
	}
	if n > 0 {
		f.writes = append(f.writes, "RevokeStaffSessions")
	}
	return n, nil
}

// --- Test helpers ---

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestStaffService(t *testing.T, store *fakeStaffStore) (*StaffService, *mockTx, *recordingPublisher) {
	t.Helper()
	tx := &mockTx{}
	events := &recordingPublisher{}
	svc := NewStaffService(
		&mockTxBeginner{tx: tx},
		store,
		func(db database.DBTX) StaffStore { return store },
		auth.NewBcryptVerifier(bcrypt.MinCost),
		events,
		testLogger,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, tx, events
}

func seedStaff(t *testing.T, store *fakeStaffStore, email, pin, status string) database.Staff {
	t.Helper()
	hashed, err := auth.NewBcryptVerifier(bcrypt.MinCost).Hash(pin)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	s := database.Staff{
		ID:      uuid.New(),
		Name:    "Dana",
		Role:    enum.StaffRoleCashier,
		PinHash: hashed,
		Email:   email,
		Status:  status,
	}
	store.staff[s.ID] = s
	return s
}

// =====================
// Login
// =====================

func TestLogin_Success(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, tx, events := newTestStaffService(t, store)
	svc.newSessionID = func() (string, error) { return "session-1", nil }

	sess, err := svc.Login(context.Background(), LoginRequest{Email: " Dana@Example.com ", Pin: "1234", UserAgent: "till-01"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if sess.SessionID != "session-1" {
		t.Errorf("session id: got %q", sess.SessionID)
	}
	if !sess.LoginTime.Equal(fixedNow) {
		t.Errorf("login time: got %v, want %v", sess.LoginTime, fixedNow)
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}

	got := store.staff[staff.ID]
	if !got.IsLoggedIn || got.LoginSessionID.String != "session-1" || !got.LastLogin.Time.Equal(fixedNow) {
		t.Errorf("staff session fields not set: %+v", got)
	}
	if _, ok := store.sessions["session-1"]; !ok {
		t.Error("session row not created")
	}
	if evs := events.types(); len(evs) != 1 || evs[0] != enum.EventStaffLoggedIn {
		t.Errorf("events: got %v", evs)
	}
}

// Scenario D: wrong PIN leaves the staff record unchanged.
func TestLogin_WrongPin(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, tx, events := newTestStaffService(t, store)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "9999"})
	if !errors.Is(err, apperror.ErrAuthentication) {
		t.Fatalf("expected authentication error, got: %v", err)
	}

	if len(store.writes) != 0 {
		t.Errorf("expected no writes, got %v", store.writes)
	}
	if store.staff[staff.ID] != staff {
		t.Error("staff record changed after failed login")
	}
	if tx.committed {
		t.Error("no transaction should commit")
	}
	if len(events.types()) != 0 {
		t.Error("no events expected")
	}
}

func TestLogin_UnknownEmailAndWrongPinLookAlike(t *testing.T) {
	store := newFakeStaffStore()
	seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	_, errEmail := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Pin: "1234"})
	_, errPin := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "0000"})

	if errEmail == nil || errPin == nil {
		t.Fatal("expected both logins to fail")
	}
	if errEmail.Error() != errPin.Error() {
		t.Errorf("messages differ: %q vs %q", errEmail, errPin)
	}
}

func TestLogin_InactiveStaff(t *testing.T) {
	for _, status := range []string{enum.StaffStatusInactive, enum.StaffStatusSuspended} {
		t.Run(status, func(t *testing.T) {
			store := newFakeStaffStore()
			seedStaff(t, store, "dana@example.com", "1234", status)
			svc, _, _ := newTestStaffService(t, store)

			_, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
			if !errors.Is(err, apperror.ErrAuthentication) {
				t.Fatalf("expected authentication error, got: %v", err)
			}
			if len(store.writes) != 0 {
				t.Errorf("expected no writes, got %v", store.writes)
			}
		})
	}
}

func TestLogin_EmptyCredentials(t *testing.T) {
	svc, _, _ := newTestStaffService(t, newFakeStaffStore())

	_, err := svc.Login(context.Background(), LoginRequest{})
	if !errors.Is(err, apperror.ErrAuthentication) {
		t.Fatalf("expected authentication error, got: %v", err)
	}
}

func TestLogin_StoreFailureDoesNotCommit(t *testing.T) {
	store := newFakeStaffStore()
	seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	store.markLoggedInErr = errors.New("connection reset")
	svc, tx, events := newTestStaffService(t, store)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperror.HTTPStatus(err) != 500 {
		t.Errorf("expected an internal error, got %v", err)
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
	if len(events.types()) != 0 {
		t.Error("no events expected")
	}
}

func TestLogin_BeginError(t *testing.T) {
	store := newFakeStaffStore()
	seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)
	svc.pool = &mockTxBeginner{err: errors.New("pool closed")}

	_, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err == nil {
		t.Fatal("expected error")
	}
}

// =====================
// Logout
// =====================

func TestLogout_ClearsSession(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, events := newTestStaffService(t, store)

	sess, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Logout(context.Background(), staff.ID)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got.IsLoggedIn || got.LoginSessionID.Valid {
		t.Errorf("session fields not cleared: %+v", got)
	}
	if !got.LastLogout.Valid || !got.LastLogout.Time.Equal(fixedNow) {
		t.Errorf("last logout: got %+v", got.LastLogout)
	}
	if _, err := svc.ValidateSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("session should be revoked, got: %v", err)
	}

	want := []string{enum.EventStaffLoggedIn, enum.EventStaffLoggedOut}
	if evs := events.types(); len(evs) != 2 || evs[0] != want[0] || evs[1] != want[1] {
		t.Errorf("events: got %v, want %v", evs, want)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, events := newTestStaffService(t, store)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	first, err := svc.Logout(context.Background(), staff.ID)
	if err != nil {
		t.Fatalf("first logout: %v", err)
	}
	svc.now = func() time.Time { return fixedNow.Add(time.Hour) }
	second, err := svc.Logout(context.Background(), staff.ID)
	if err != nil {
		t.Fatalf("second logout: %v", err)
	}

	if first != second {
		t.Errorf("second logout changed state:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if second.IsLoggedIn || second.LoginSessionID.Valid {
		t.Errorf("expected logged out state, got %+v", second)
	}
	if n := len(events.types()); n != 2 {
		t.Errorf("expected one login and one logout event, got %d", n)
	}
}

func TestLogout_NeverLoggedIn(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	got, err := svc.Logout(context.Background(), staff.ID)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got.IsLoggedIn {
		t.Error("expected logged out")
	}
}

func TestLogout_UnknownStaff(t *testing.T) {
	svc, _, _ := newTestStaffService(t, newFakeStaffStore())

	_, err := svc.Logout(context.Background(), uuid.New())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

// =====================
// ChangePin
// =====================

func TestChangePin_RoundTrip(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)
	ctx := context.Background()

	if err := svc.ChangePin(ctx, staff.ID, "1234", "567890"); err != nil {
		t.Fatalf("change pin: %v", err)
	}

	if store.staff[staff.ID].PinHash == "567890" {
		t.Fatal("PIN stored in plaintext")
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "dana@example.com", Pin: "567890"}); err != nil {
		t.Fatalf("login with new pin: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "dana@example.com", Pin: "1234"}); !errors.Is(err, apperror.ErrAuthentication) {
		t.Fatalf("login with old pin: expected authentication error, got %v", err)
	}
}

func TestChangePin_Errors(t *testing.T) {
	tests := []struct {
		name    string
		oldPin  string
		newPin  string
		wantErr error
	}{
		{"wrong old pin", "0000", "5678", apperror.ErrAuthentication},
		{"new pin too short", "1234", "123", ErrInvalidNewPin},
		{"new pin too long", "1234", "1234567", ErrInvalidNewPin},
		{"new pin not digits", "1234", "12ab", ErrInvalidNewPin},
		{"new pin equals old", "1234", "1234", ErrPinUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStaffStore()
			staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
			svc, _, _ := newTestStaffService(t, store)

			err := svc.ChangePin(context.Background(), staff.ID, tt.oldPin, tt.newPin)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(store.writes) != 0 {
				t.Errorf("expected no writes, got %v", store.writes)
			}
		})
	}
}

func TestChangePin_UnknownStaff(t *testing.T) {
	svc, _, _ := newTestStaffService(t, newFakeStaffStore())

	err := svc.ChangePin(context.Background(), uuid.New(), "1234", "5678")
	if !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got: %v", err)
	}
}

// =====================
// ValidateSession
// =====================

func TestValidateSession(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	sess, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.ValidateSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.StaffID != staff.ID {
		t.Errorf("staff id: got %v, want %v", got.StaffID, staff.ID)
	}

	if _, err := svc.ValidateSession(context.Background(), "unknown"); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("unknown session: got %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), ""); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("empty session: got %v", err)
	}
}

func TestValidateSession_DeactivatedStaff(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	sess, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Deactivate(context.Background(), staff.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got.Status != enum.StaffStatusInactive || got.IsLoggedIn {
		t.Errorf("unexpected staff after deactivate: %+v", got)
	}
	if _, err := svc.ValidateSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("expected session invalid, got %v", err)
	}
}

// =====================
// Staff CRUD
// =====================

func TestCreateStaff(t *testing.T) {
	store := newFakeStaffStore()
	svc, _, _ := newTestStaffService(t, store)

	staff, err := svc.Create(context.Background(), CreateStaffRequest{
		Name:  " Ari ",
		Role:  enum.StaffRoleManager,
		Pin:   "4321",
		Email: "ARI@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if staff.Name != "Ari" || staff.Email != "ari@example.com" {
		t.Errorf("fields not normalized: %+v", staff)
	}
	if staff.Status != enum.StaffStatusActive {
		t.Errorf("status: got %q, want active", staff.Status)
	}
	if staff.PinHash == "4321" || staff.PinHash == "" {
		t.Error("PIN must be stored hashed")
	}

	_, err = svc.Create(context.Background(), CreateStaffRequest{
		Name:  "Other",
		Role:  enum.StaffRoleCashier,
		Pin:   "1111",
		Email: "ari@example.com",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if apperror.HTTPStatus(err) != 400 {
		t.Errorf("uniqueness conflicts map to 400, got %d", apperror.HTTPStatus(err))
	}
}

func TestCreateStaff_Validation(t *testing.T) {
	base := CreateStaffRequest{Name: "Ari", Role: enum.StaffRoleCashier, Pin: "1234", Email: "ari@example.com"}

	tests := []struct {
		name    string
		mutate  func(r *CreateStaffRequest)
		wantErr error
	}{
		{"missing name", func(r *CreateStaffRequest) { r.Name = "  " }, ErrStaffNameRequired},
		{"missing email", func(r *CreateStaffRequest) { r.Email = "" }, ErrStaffEmailRequired},
		{"bad role", func(r *CreateStaffRequest) { r.Role = "Owner" }, ErrInvalidRole},
		{"bad status", func(r *CreateStaffRequest) { r.Status = "away" }, ErrInvalidStaffStatus},
		{"bad pin", func(r *CreateStaffRequest) { r.Pin = "12" }, ErrInvalidPin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestStaffService(t, newFakeStaffStore())
			req := base
			tt.mutate(&req)
			if _, err := svc.Create(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateStaff_SuspendEndsSessions(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Update(context.Background(), UpdateStaffRequest{
		ID:     staff.ID,
		Name:   staff.Name,
		Role:   staff.Role,
		Email:  staff.Email,
		Status: enum.StaffStatusSuspended,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.IsLoggedIn {
		t.Error("suspended staff should be logged out")
	}
}

func TestUpdateStaff_ResetPin(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	if _, err := svc.Update(context.Background(), UpdateStaffRequest{
		ID:     staff.ID,
		Name:   staff.Name,
		Role:   staff.Role,
		Email:  staff.Email,
		Status: enum.StaffStatusActive,
		Pin:    "8888",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "8888"}); err != nil {
		t.Fatalf("login with reset pin: %v", err)
	}
}

func TestUpdateStaff_NotFound(t *testing.T) {
	svc, _, _ := newTestStaffService(t, newFakeStaffStore())

	_, err := svc.Update(context.Background(), UpdateStaffRequest{
		ID:     uuid.New(),
		Name:   "Ghost",
		Role:   enum.StaffRoleCashier,
		Email:  "ghost@example.com",
		Status: enum.StaffStatusActive,
	})
	if !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}

func TestUpdateStaff_RoleChangeEndsSessions(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	staff.Role = enum.StaffRoleManager
	store.staff[staff.ID] = staff
	svc, _, _ := newTestStaffService(t, store)

	sess, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Update(context.Background(), UpdateStaffRequest{
		ID:     staff.ID,
		Name:   staff.Name,
		Role:   enum.StaffRoleCashier,
		Email:  staff.Email,
		Status: enum.StaffStatusActive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.IsLoggedIn {
		t.Error("demoted staff should be logged out")
	}
	if _, err := svc.ValidateSession(context.Background(), sess.SessionID); !errors.Is(err, apperror.ErrAuthentication) {
		t.Fatalf("session issued under the old role should be revoked, got %v", err)
	}
}

func TestUpdateStaff_SameRoleKeepsSessions(t *testing.T) {
	store := newFakeStaffStore()
	staff := seedStaff(t, store, "dana@example.com", "1234", enum.StaffStatusActive)
	svc, _, _ := newTestStaffService(t, store)

	sess, err := svc.Login(context.Background(), LoginRequest{Email: "dana@example.com", Pin: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Update(context.Background(), UpdateStaffRequest{
		ID:     staff.ID,
		Name:   "Dana Renamed",
		Role:   staff.Role,
		Email:  staff.Email,
		Status: enum.StaffStatusActive,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("session should survive a profile edit: %v", err)
	}
}

// countingVerifier counts Verify calls on top of a real bcrypt verifier.
type countingVerifier struct {
	*auth.BcryptVerifier
	verifies int
}

func (c *countingVerifier) Verify(hash, pin string) error {
	c.verifies++
	return c.BcryptVerifier.Verify(hash, pin)
}

func TestLogin_FailuresAlwaysVerifyPin(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		status string
	}{
		{"unknown email", "nobody@example.com", enum.StaffStatusActive},
		{"inactive staff", "dana@example.com", enum.StaffStatusInactive},
		{"suspended staff", "dana@example.com", enum.StaffStatusSuspended},
		{"wrong pin", "dana@example.com", enum.StaffStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStaffStore()
			seedStaff(t, store, "dana@example.com", "1234", tt.status)
			svc, _, _ := newTestStaffService(t, store)
			verifier := &countingVerifier{BcryptVerifier: auth.NewBcryptVerifier(bcrypt.MinCost)}
			svc.verifier = verifier

			if _, err := svc.Login(context.Background(), LoginRequest{Email: tt.email, Pin: "0000"}); !errors.Is(err, apperror.ErrAuthentication) {
				t.Fatalf("expected authentication error, got %v", err)
			}
			if verifier.verifies != 1 {
				t.Errorf("verify calls: got %d, want 1", verifier.verifies)
			}
		})
	}
}
