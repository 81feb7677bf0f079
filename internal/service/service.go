// Package service holds the business rules that span more than one query:
// staff sessions, the tax rate registry and order checkout. Every
// multi-row invariant is written inside a single pgx transaction.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EventPublisher fans out domain events to realtime subscribers.
// Satisfied by *ws.Hub.
type EventPublisher interface {
	Publish(topic, eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// isUniqueViolation reports whether err is a Postgres unique_violation,
// optionally restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func textOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
