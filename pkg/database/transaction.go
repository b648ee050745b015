package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey string

const txKey = txContextKey("tx-context-key")

type Tx interface {
	IsOpen() bool
	IsNested() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

// Transaction wraps sqlx.Tx. A transaction joined from the context is nested:
// Commit and Rollback on it are no-ops and the owner decides the outcome.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
	nested   bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

// GetTx joins the transaction stored on ctx or begins a new one. The returned
// context carries the transaction so repositories called with it share it.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if ctxTx, ok := ctx.Value(txKey).(*Transaction); ok && ctxTx != nil && ctxTx.IsOpen() {
		return ctx, &Transaction{Tx: ctxTx.Tx, logger: logger, nested: true}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction: %w", err)
	}

	newTx := NewTx(tx, logger)
	return context.WithValue(ctx, txKey, newTx), newTx, nil
}

// TxFromContext returns the open transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txKey).(*Transaction)
	if !ok || tx == nil || !tx.IsOpen() {
		return nil, false
	}
	return tx, true
}

func (t *Transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *Transaction) IsNested() bool {
	return t.nested
}

// Rollback is safe to defer after Commit.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed || t.nested {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}

	t.isClosed = true
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed || t.nested {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}

	t.isClosed = true
	return nil
}
