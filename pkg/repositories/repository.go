package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// Conflict returns a 409 HTTP error
func Conflict(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is a 404 HTTP error.
func IsNotFound(err error) bool {
	return err != nil && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// Repository provides common database operations
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// Conn returns the transaction carried by ctx or the database.
func (r *Repository) Conn(ctx context.Context) database.Queryer {
	return database.Conn(ctx, r.db)
}

// InTx runs fn inside a transaction. A transaction already on ctx is joined and left to
// its owner to commit.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// getOne runs query into dest and maps no rows to a 404 naming what.
func (r *Repository) getOne(ctx context.Context, dest any, what string, query string, args ...any) error {
	err := r.Conn(ctx).GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("%s not found", what)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to load %s", what)
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load %s", what)
	}
	return nil
}
