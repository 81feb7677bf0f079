package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStaffSession = `-- name: CreateStaffSession :one
INSERT INTO staff_sessions (id, staff_id, user_agent, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, staff_id, user_agent, created_at, revoked_at`

type CreateStaffSessionParams struct {
	ID        string             `json:"id"`
	StaffID   uuid.UUID          `json:"staff_id"`
	UserAgent pgtype.Text        `json:"user_agent"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateStaffSession(ctx context.Context, arg CreateStaffSessionParams) (StaffSession, error) {
	row := q.db.QueryRow(ctx, createStaffSession, arg.ID, arg.StaffID, arg.UserAgent, arg.CreatedAt)
	var i StaffSession
	err := row.Scan(
		&i.ID,
		&i.StaffID,
		&i.UserAgent,
		&i.CreatedAt,
		&i.RevokedAt,
	)
	return i, err
}

const getActiveStaffSession = `-- name: GetActiveStaffSession :one
SELECT id, staff_id, user_agent, created_at, revoked_at
FROM staff_sessions
WHERE id = $1 AND revoked_at IS NULL`

func (q *Queries) GetActiveStaffSession(ctx context.Context, id string) (StaffSession, error) {
	row := q.db.QueryRow(ctx, getActiveStaffSession, id)
	var i StaffSession
	err := row.Scan(
		&i.ID,
		&i.StaffID,
		&i.UserAgent,
		&i.CreatedAt,
		&i.RevokedAt,
	)
	return i, err
}

const revokeStaffSessions = `-- name: RevokeStaffSessions :execrows
UPDATE staff_sessions
SET revoked_at = $2
WHERE staff_id = $1 AND revoked_at IS NULL`

type RevokeStaffSessionsParams struct {
	StaffID   uuid.UUID          `json:"staff_id"`
	RevokedAt pgtype.Timestamptz `json:"revoked_at"`
}

func (q *Queries) RevokeStaffSessions(ctx context.Context, arg RevokeStaffSessionsParams) (int64, error) {
	result, err := q.db.Exec(ctx, revokeStaffSessions, arg.StaffID, arg.RevokedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
