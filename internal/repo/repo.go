// Package repo contains all database access logic for the admission core.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/splitbuy/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Repos bundles the repositories that share one connection or transaction.
type Repos struct {
	Groups       GroupRepo
	Participants ParticipantRepo
}

// NewRepos builds Postgres repositories over db.
func NewRepos(db db) Repos {
	return Repos{
		Groups:       NewGroupRepo(db),
		Participants: NewParticipantRepo(db),
	}
}

// TxRunner runs fn inside one atomic unit of work. The Repos passed to fn are
// bound to that unit; fn's changes are committed only if it returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx (where Begin
// opens a savepoint), so tests can nest a runner inside a rolled-back tx.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgTxRunner is the Postgres TxRunner.
type PgTxRunner struct {
	db beginner
}

// NewTxRunner constructs a PgTxRunner. In production pass *pgxpool.Pool.
func NewTxRunner(db beginner) *PgTxRunner {
	return &PgTxRunner{db: db}
}

// InTx implements TxRunner. Serialization failures and deadlocks detected by
// Postgres are reported as domain.ErrConflict so the caller can retry.
func (r *PgTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, NewRepos(tx)); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: commit: %w", mapPgError(err))
	}
	return nil
}

// Postgres SQLSTATE codes the repo layer translates.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapPgError turns retryable Postgres failures into domain.ErrConflict and
// leaves everything else untouched.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
	}
	return err
}

// pgCode returns the SQLSTATE of err, or "" when err is not a Postgres error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
