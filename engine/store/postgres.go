package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fluxweave/fluxweave/engine/store/query"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool (or pgxmock's equivalent) the
// Postgres backend needs, grounded on engine/infra/postgres's own DB
// seam so both drivers share the same withTransaction idiom.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type resourceRow struct {
	Namespace string `db:"namespace"`
	Type      string `db:"type"`
	ID        string `db:"id"`
	Etag      int64  `db:"etag"`
	Data      []byte `db:"data"`
}

// Postgres is the BaseStorage backend for production deployments,
// grounded on engine/infra/postgres/store.go's Store/Config/withTransaction
// pattern and workflowrepo.go's scany/squirrel usage, adapted here to the
// single generic "resources" table this package's query model targets
// instead of per-entity tables.
type Postgres struct {
	db DB
}

// NewPostgres wraps an already-connected DB (typically a
// engine/infra/postgres.Store's Pool(), or a pgxmock pool in tests).
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

const resourcesTable = "resources"

func (p *Postgres) Put(ctx context.Context, key ResourceKey, value any, expectedETag string) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal resource: %w", err)
	}
	var etag int64
	err = p.withTransaction(ctx, func(tx pgx.Tx) error {
		var current int64
		scanErr := tx.QueryRow(ctx,
			`SELECT etag FROM `+resourcesTable+` WHERE namespace=$1 AND type=$2 AND id=$3`,
			key.Namespace, string(key.Type), key.ID,
		).Scan(&current)
		exists := scanErr == nil
		if scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("read current etag: %w", scanErr)
		}
		if expectedETag != "" {
			if !exists || etagString(current) != expectedETag {
				return ErrConflict
			}
		}
		etag = current + 1
		_, execErr := tx.Exec(ctx,
			`INSERT INTO `+resourcesTable+` (namespace, type, id, etag, data)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (namespace, type, id) DO UPDATE SET etag=$4, data=$5`,
			key.Namespace, string(key.Type), key.ID, etag, data,
		)
		return execErr
	})
	if err != nil {
		return "", err
	}
	return etagString(etag), nil
}

func (p *Postgres) Get(ctx context.Context, key ResourceKey) (any, string, error) {
	var row resourceRow
	err := pgxscan.Get(ctx, p.db, &row,
		`SELECT namespace, type, id, etag, data FROM `+resourcesTable+`
		 WHERE namespace=$1 AND type=$2 AND id=$3`,
		key.Namespace, string(key.Type), key.ID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("get resource: %w", err)
	}
	var value any
	if err := json.Unmarshal(row.Data, &value); err != nil {
		return nil, "", fmt.Errorf("unmarshal resource: %w", err)
	}
	return value, etagString(row.Etag), nil
}

func (p *Postgres) Delete(ctx context.Context, key ResourceKey) error {
	_, err := p.db.Exec(ctx,
		`DELETE FROM `+resourcesTable+` WHERE namespace=$1 AND type=$2 AND id=$3`,
		key.Namespace, string(key.Type), key.ID,
	)
	return err
}

func (p *Postgres) List(ctx context.Context, namespace string, typ ResourceType) ([]ResourceKey, error) {
	return p.ListWhere(ctx, namespace, typ, nil)
}

// ListWhere additionally filters by a query.Expr, compiled to SQL via
// Masterminds/squirrel (SPEC_FULL §5's query expression tree).
func (p *Postgres) ListWhere(
	ctx context.Context,
	namespace string,
	typ ResourceType,
	filter query.Expr,
) ([]ResourceKey, error) {
	sel := squirrel.Select("namespace", "type", "id").
		From(resourcesTable).
		Where(squirrel.Eq{"namespace": namespace, "type": string(typ)}).
		PlaceholderFormat(squirrel.Dollar)
	sel = query.Compile(sel, filter)

	sqlStr, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("compile list query: %w", err)
	}
	var rows []resourceRow
	if err := pgxscan.Select(ctx, p.db, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	keys := make([]ResourceKey, len(rows))
	for i, r := range rows {
		keys[i] = ResourceKey{Namespace: r.Namespace, Type: ResourceType(r.Type), ID: r.ID}
	}
	return keys, nil
}

// Watch has no Postgres-native implementation in this package (no LISTEN/
// NOTIFY wiring); callers needing change notifications against Postgres
// should layer that on separately. Returning a closed channel keeps the
// BaseStorage contract satisfiable without pretending to stream events
// this backend doesn't produce.
func (p *Postgres) Watch(ctx context.Context, _ string, _ ResourceType) (<-chan Event, error) {
	ch := make(chan Event)
	close(ch)
	return ch, nil
}

func (p *Postgres) Close() error { return nil }

func (p *Postgres) withTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
