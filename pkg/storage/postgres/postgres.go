// Package postgres provides a PostgreSQL implementation of storage.EntityStore.
// It uses pgx/v5 for connection pooling and JSONB for domain payloads.
//
// Every operation runs inside a transaction that first binds the active
// tenant with a transaction-local set_config('app.tenant_id', ...). Row-level
// security policies and the tenant validation trigger (installed by the
// contract migration phase) read that setting, so the binding can never
// survive into another unit of work on a pooled connection.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/storage"
	"github.com/renum/agentstore/pkg/tenancy"
)

// Store is a PostgreSQL-backed EntityStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.EntityStore at compile time.
var _ storage.EntityStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If BootstrapOnStart is true, base schema migrations are applied.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.BootstrapOnStart {
		if err := s.bootstrap(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running bootstrap migrations: %w", err)
		}
	}

	return s, nil
}

// tableFor resolves the table name for a kind from the fixed registry.
// Identifiers are never built from caller input.
func tableFor(kind api.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
	return kind.Table(), nil
}

// withTenantTx runs fn inside a transaction whose first statement binds the
// tenant for the transaction's duration. set_config with is_local=true
// guarantees the setting dies with the transaction, even on rollback.
func (s *Store) withTenantTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return fmt.Errorf("binding tenant: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create persists a new record.
func (s *Store) Create(ctx context.Context, kind api.Kind, rec *api.Record) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, table)

	err = s.withTenantTx(ctx, active, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query, rec.ID, rec.TenantID, dataJSON, createdAt, now)
		return err
	})
	if err != nil {
		return translateError(err)
	}

	rec.CreatedAt = createdAt
	rec.UpdatedAt = now
	return nil
}

// Get retrieves a record by ID within the active tenant's scope.
func (s *Store) Get(ctx context.Context, kind api.Kind, id string) (*api.Record, error) {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return nil, err
	}
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, data, created_at, updated_at
		FROM %s
		WHERE id = $1 AND tenant_id = $2
	`, table)

	var rec api.Record
	var dataJSON []byte

	err = s.withTenantTx(ctx, active, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, id, active).Scan(
			&rec.ID, &rec.TenantID, &dataJSON, &rec.CreatedAt, &rec.UpdatedAt,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", translateError(err))
	}

	if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
		return nil, fmt.Errorf("unmarshaling data: %w", err)
	}

	return &rec, nil
}

// List returns the active tenant's records with keyset pagination on
// (created_at, id), newest first by default.
func (s *Store) List(ctx context.Context, kind api.Kind, opts storage.ListOptions) (*storage.RecordList, error) {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return nil, err
	}
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	opts = storage.NormalizeListOptions(opts)

	cmp, dir := "<", "DESC"
	if opts.Order == "asc" {
		cmp, dir = ">", "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, data, created_at, updated_at
		FROM %s
		WHERE tenant_id = $1
	`, table)
	args := []any{active}

	if opts.After != "" {
		query += fmt.Sprintf(`
			AND (created_at, id) %s (
				SELECT created_at, id FROM %s WHERE id = $2 AND tenant_id = $1
			)
		`, cmp, table)
		args = append(args, opts.After)
	}

	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %d", dir, dir, opts.Limit+1)

	var records []*api.Record
	err = s.withTenantTx(ctx, active, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec api.Record
			var dataJSON []byte
			if err := rows.Scan(&rec.ID, &rec.TenantID, &dataJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
				return err
			}
			if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
				return fmt.Errorf("unmarshaling data: %w", err)
			}
			records = append(records, &rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", translateError(err))
	}

	hasMore := len(records) > opts.Limit
	if hasMore {
		records = records[:opts.Limit]
	}

	result := &storage.RecordList{
		Object:  "list",
		Data:    records,
		HasMore: hasMore,
	}
	if len(records) > 0 {
		result.FirstID = records[0].ID
		result.LastID = records[len(records)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Record{}
	}

	return result, nil
}

// Update replaces the domain payload of an existing record. The tenant_id
// column is never part of the SET clause, so re-parenting is impossible at
// the statement level; the validation trigger additionally rejects any
// tenant change on update.
func (s *Store) Update(ctx context.Context, kind api.Kind, rec *api.Record) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	if err := storage.CheckWrite(active, rec, kind); err != nil {
		return err
	}

	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE %s
		SET data = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4
	`, table)

	err = s.withTenantTx(ctx, active, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, dataJSON, now, rec.ID, rec.TenantID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return translateError(err)
	}

	rec.UpdatedAt = now
	return nil
}

// Delete removes a record by ID within the active tenant's scope.
func (s *Store) Delete(ctx context.Context, kind api.Kind, id string) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND tenant_id = $2", table)

	err = s.withTenantTx(ctx, active, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, id, active)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	return translateError(err)
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// translateError maps PostgreSQL errors to the shared sentinel errors.
// The validation trigger raises check violations (23514) whose message
// distinguishes a missing identifier from a mismatch; RLS rejections (42501)
// and not-null violations on tenant_id (23502) map to the same taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505":
		return storage.ErrConflict
	case "23502":
		if pgErr.ColumnName == "tenant_id" {
			return tenancy.ErrTenantIdentifierMissing
		}
	case "23514":
		if strings.Contains(pgErr.Message, "tenant identifier missing") {
			return tenancy.ErrTenantIdentifierMissing
		}
		if strings.Contains(pgErr.Message, "tenant mismatch") {
			return tenancy.ErrTenantMismatch
		}
	case "42501":
		return tenancy.ErrTenantMismatch
	}
	return err
}
