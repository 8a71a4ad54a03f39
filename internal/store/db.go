package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNegativeBalance is returned when an adjustment would drive a balance
	// column below zero. Nothing is written in that case.
	ErrNegativeBalance = errors.New("balance would become negative")
	// ErrConflict reports a unique constraint violation (duplicate email or
	// replayed client request id).
	ErrConflict = errors.New("conflict")
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

// Tx is the handle passed to work running inside a transaction.
type Tx interface {
	Execer
	Getter
	Selecter
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}
