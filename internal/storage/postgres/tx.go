package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a repository call happens before Connect.
var ErrNotConnected = errors.New("database connection not established")

type txKey struct{}

// WithinTx runs fn inside a single transaction on the primary database. The
// transaction travels through the context, so every repository call made from
// fn joins it. Any error from fn rolls everything back.
func (conn *Connection) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	conn.mu.RLock()
	primary := conn.primary
	conn.mu.RUnlock()

	if primary == nil {
		return ErrNotConnected
	}

	tx, err := primary.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// executor is the subset of database operations shared by *sql.Tx and the
// resolver.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// executor returns the ambient transaction when one is present in the
// context, otherwise the primary/replica resolver.
func (conn *Connection) executor(ctx context.Context) (executor, error) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx, nil
	}

	conn.mu.RLock()
	defer conn.mu.RUnlock()

	if conn.resolver == nil {
		return nil, ErrNotConnected
	}

	return conn.resolver, nil
}
