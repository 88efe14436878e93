// Package txn implements the resource store's transaction layer
// (SPEC_FULL §5 "transactions (engine/store/txn)"), wrapping pgx.Tx with
// named savepoints so a multi-step store operation (e.g. config selector
// merge followed by a run insert) can roll back part of itself without
// aborting the whole transaction.
package txn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx is a transaction that supports nested savepoints.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// Savepoint begins a nested savepoint named name. RELEASE/ROLLBACK TO
	// happen through the returned handle's Release/Rollback.
	Savepoint(ctx context.Context, name string) (Savepoint, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Savepoint is a named point within a transaction that can be released
// (keeping its work) or rolled back to (discarding it) independently of
// the outer transaction.
type Savepoint interface {
	Release(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pgxTx struct {
	tx pgx.Tx
}

// Wrap adapts a pgx.Tx to Tx.
func Wrap(tx pgx.Tx) Tx {
	return &pgxTx{tx: tx}
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return err
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *pgxTx) Savepoint(ctx context.Context, name string) (Savepoint, error) {
	ident := sanitizeSavepointName(name)
	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+ident); err != nil {
		return nil, fmt.Errorf("begin savepoint %s: %w", ident, err)
	}
	return &pgxSavepoint{tx: t.tx, name: ident}, nil
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type pgxSavepoint struct {
	tx   pgx.Tx
	name string
}

func (s *pgxSavepoint) Release(ctx context.Context) error {
	_, err := s.tx.Exec(ctx, "RELEASE SAVEPOINT "+s.name)
	return err
}

func (s *pgxSavepoint) Rollback(ctx context.Context) error {
	_, err := s.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+s.name)
	return err
}

// sanitizeSavepointName restricts a caller-supplied label to
// identifier-safe characters, since it's interpolated directly into SQL
// (Postgres doesn't support parameter binding for identifiers).
func sanitizeSavepointName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "sp_default"
	}
	return "sp_" + string(out)
}
