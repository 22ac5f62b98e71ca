// Package dbexec provides database query execution abstractions.
// Resolvers depend on QueryExecutor rather than *sql.DB so page fetches
// can run inside a single read transaction and tests can substitute
// fakes.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts read-query execution.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

// ReadScope runs fn with an executor bound to one read-only transaction,
// so every query inside observes a consistent snapshot. A keyset page
// fetch reads the cursor row's ordering values and then the page itself;
// both must see the same view or a concurrent write between the two
// queries could skip or duplicate rows.
func (e *StandardExecutor) ReadScope(ctx context.Context, fn func(QueryExecutor) error) error {
	if e.db == nil {
		return sql.ErrConnDone
	}
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read scope: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txExecutor{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ScopedExecutor is an executor that can open consistent read scopes.
type ScopedExecutor interface {
	QueryExecutor
	ReadScope(ctx context.Context, fn func(QueryExecutor) error) error
}

type txExecutor struct {
	tx *sql.Tx
}

func (e *txExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return e.tx.QueryContext(ctx, query, args...)
}
