// Package migrate implements the resource store's migration runner
// (SPEC_FULL §5 "a migration runner (engine/store/migrate)"), adapted
// from the pressly/goose idiom used elsewhere in this repo
// (engine/infra/postgres/migrations.go) but generalized from goose's
// strictly-linear timestamp ordering to a revision-chain graph: each
// migration names the revisions it Requires, and the runner computes
// application order via a breadth-first topological sort so migrations
// authored on parallel feature branches merge without a manual rebase of
// migration numbers.
package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migration is one schema change. ID must be unique; Requires lists the
// IDs that must already be applied before this one runs (usually a
// single parent, but a merge migration may name more than one).
type Migration struct {
	ID       string
	Requires []string
	Up       func(ctx context.Context, tx pgx.Tx) error
}

const trackingTable = "schema_migrations"

// Runner applies a fixed set of Migrations in revision-chain order.
type Runner struct {
	migrations map[string]Migration
}

// NewRunner indexes migrations by ID, erroring on duplicate IDs or a
// Requires reference to an unknown ID.
func NewRunner(migrations []Migration) (*Runner, error) {
	byID := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		if _, exists := byID[m.ID]; exists {
			return nil, fmt.Errorf("migrate: duplicate migration id %q", m.ID)
		}
		byID[m.ID] = m
	}
	for _, m := range byID {
		for _, req := range m.Requires {
			if _, ok := byID[req]; !ok {
				return nil, fmt.Errorf("migrate: %q requires unknown migration %q", m.ID, req)
			}
		}
	}
	return &Runner{migrations: byID}, nil
}

// Order returns every migration ID in a valid application order: a
// breadth-first walk of the dependency graph starting from migrations
// with no Requires, visiting a migration only once all of its Requires
// have been visited. Ties (migrations simultaneously ready) break by ID
// for a deterministic, reproducible order.
func (r *Runner) Order() ([]string, error) {
	indegree := make(map[string]int, len(r.migrations))
	dependents := make(map[string][]string)
	for id, m := range r.migrations {
		indegree[id] = len(m.Requires)
		for _, req := range m.Requires {
			dependents[req] = append(dependents[req], id)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortStrings(ready)

	order := make([]string, 0, len(r.migrations))
	for len(ready) > 0 {
		sortStrings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(r.migrations) {
		return nil, fmt.Errorf("migrate: revision chain has a cycle or an unreachable migration")
	}
	return order, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Up applies every not-yet-applied migration in Order() within its own
// transaction, recording it in schema_migrations on success.
func (r *Runner) Up(ctx context.Context, conn DB) error {
	if err := r.ensureTrackingTable(ctx, conn); err != nil {
		return err
	}
	applied, err := r.appliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	order, err := r.Order()
	if err != nil {
		return err
	}
	for _, id := range order {
		if applied[id] {
			continue
		}
		if err := r.applyOne(ctx, conn, r.migrations[id]); err != nil {
			return fmt.Errorf("migrate: apply %q: %w", id, err)
		}
	}
	return nil
}

// DB is the minimal pool/conn seam migrate needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Runner) ensureTrackingTable(ctx context.Context, conn DB) error {
	_, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+trackingTable+` (
		id TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

func (r *Runner) appliedIDs(ctx context.Context, conn DB) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT id FROM `+trackingTable)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func (r *Runner) applyOne(ctx context.Context, conn DB, m Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := m.Up(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO `+trackingTable+` (id) VALUES ($1)`, m.ID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}
