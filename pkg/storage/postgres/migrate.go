package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/observability"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrMigrationPartial is returned when the contract phase is invoked while
// rows without a tenant identifier remain. The phase fails loudly and leaves
// the schema unchanged; silently defaulting legacy rows would assign them to
// the wrong tenant.
var ErrMigrationPartial = errors.New("migration incomplete: rows without tenant identifier remain")

// PhaseOutcome reports what a migration phase did for one entity kind.
// Phases communicate through result values, not control-flow errors; finding
// the target state already present is a success, not a failure.
type PhaseOutcome string

const (
	// PhaseApplied means the phase changed schema or data.
	PhaseApplied PhaseOutcome = "applied"

	// PhaseAlreadyApplied means the target state was already present and the
	// phase was a no-op.
	PhaseAlreadyApplied PhaseOutcome = "already_applied"

	// PhaseBlocked means the phase could not proceed; for contract this
	// accompanies ErrMigrationPartial.
	PhaseBlocked PhaseOutcome = "blocked"
)

// PhaseResult describes the outcome of one phase for one entity kind.
type PhaseResult struct {
	Kind      api.Kind     `json:"kind"`
	Outcome   PhaseOutcome `json:"outcome"`
	Rows      int64        `json:"rows"`      // rows touched by this phase
	Remaining int64        `json:"remaining"` // rows still lacking a tenant identifier
}

// TenantAssignment maps one legacy record to its tenant. The correct tenant
// for legacy rows cannot be inferred automatically; assignments are supplied
// by the operator.
type TenantAssignment struct {
	Kind     api.Kind `yaml:"kind"`
	RecordID string   `yaml:"record_id"`
	TenantID string   `yaml:"tenant_id"`
}

// bootstrap applies the base schema migrations. It reads embedded SQL files,
// tracks applied versions in the schema_migrations table, and applies any
// that haven't been run yet.
func (s *Store) bootstrap(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	// Sort by filename (which starts with version number).
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		// Check if already applied. If schema_migrations doesn't exist yet,
		// this fails, which is fine for the first migration that creates it.
		var exists bool
		err = s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			exists = false
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		slog.Info("applying migration", "file", entry.Name(), "version", version)

		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", entry.Name(), err)
		}

		if _, err := s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
			version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Expand adds the tenant_id column, nullable, to every entity kind that does
// not already have it. Re-running is a no-op per kind; the column's presence
// is checked via schema introspection.
func (s *Store) Expand(ctx context.Context) ([]PhaseResult, error) {
	results := make([]PhaseResult, 0, len(api.Kinds()))

	for _, kind := range api.Kinds() {
		hasColumn, err := s.hasTenantColumn(ctx, kind)
		if err != nil {
			return results, err
		}

		if hasColumn {
			results = append(results, s.recordPhase("expand", PhaseResult{Kind: kind, Outcome: PhaseAlreadyApplied}))
			continue
		}

		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN tenant_id TEXT", kind.Table())
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return results, fmt.Errorf("expanding %s: %w", kind, err)
		}

		slog.Info("expand applied", "kind", kind)
		results = append(results, s.recordPhase("expand", PhaseResult{Kind: kind, Outcome: PhaseApplied}))
	}

	return results, nil
}

// Backfill applies explicit record-to-tenant assignments to rows that lack a
// tenant identifier. Assignments only fill NULLs; a row that already has a
// tenant is never overwritten. The result reports how many rows per kind
// still await assignment; contract refuses until that count reaches zero.
func (s *Store) Backfill(ctx context.Context, assignments []TenantAssignment) ([]PhaseResult, error) {
	for _, a := range assignments {
		if !a.Kind.Valid() {
			return nil, fmt.Errorf("assignment for unknown entity kind %q", a.Kind)
		}
		if a.RecordID == "" || a.TenantID == "" {
			return nil, fmt.Errorf("assignment for %s needs both record_id and tenant_id", a.Kind)
		}
	}

	byKind := make(map[api.Kind][]TenantAssignment)
	for _, a := range assignments {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	results := make([]PhaseResult, 0, len(api.Kinds()))

	for _, kind := range api.Kinds() {
		var assigned int64

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			stmt := fmt.Sprintf(
				"UPDATE %s SET tenant_id = $1 WHERE id = $2 AND tenant_id IS NULL",
				kind.Table(),
			)
			for _, a := range byKind[kind] {
				result, err := tx.Exec(ctx, stmt, a.TenantID, a.RecordID)
				if err != nil {
					return err
				}
				assigned += result.RowsAffected()
			}
			return nil
		})
		if err != nil {
			return results, fmt.Errorf("backfilling %s: %w", kind, err)
		}

		remaining, err := s.countUnassigned(ctx, kind)
		if err != nil {
			return results, err
		}

		res := PhaseResult{Kind: kind, Rows: assigned, Remaining: remaining}
		switch {
		case remaining > 0:
			res.Outcome = PhaseBlocked
		case assigned > 0:
			res.Outcome = PhaseApplied
		default:
			res.Outcome = PhaseAlreadyApplied
		}

		if assigned > 0 || remaining > 0 {
			slog.Info("backfill progress", "kind", kind, "assigned", assigned, "remaining", remaining)
		}
		results = append(results, s.recordPhase("backfill", res))
	}

	return results, nil
}

// Contract tightens the schema once backfill is verified complete: the
// tenant_id column becomes NOT NULL, an equality index is added, and the
// row-level security policies and validation trigger are installed. Invoked
// while any row still lacks a tenant identifier, it fails with
// ErrMigrationPartial and changes nothing.
func (s *Store) Contract(ctx context.Context) ([]PhaseResult, error) {
	results := make([]PhaseResult, 0, len(api.Kinds()))

	// Verify every kind first; no DDL runs unless all kinds are ready.
	blocked := false
	for _, kind := range api.Kinds() {
		hasColumn, err := s.hasTenantColumn(ctx, kind)
		if err != nil {
			return nil, err
		}
		if !hasColumn {
			results = append(results, PhaseResult{Kind: kind, Outcome: PhaseBlocked})
			blocked = true
			continue
		}

		remaining, err := s.countUnassigned(ctx, kind)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			results = append(results, PhaseResult{Kind: kind, Outcome: PhaseBlocked, Remaining: remaining})
			blocked = true
			continue
		}
		results = append(results, PhaseResult{Kind: kind})
	}

	if blocked {
		for i := range results {
			if results[i].Outcome == "" {
				results[i].Outcome = PhaseBlocked
			}
			results[i] = s.recordPhase("contract", results[i])
		}
		return results, ErrMigrationPartial
	}

	if err := s.installTriggerFunction(ctx); err != nil {
		return nil, err
	}

	for i, kind := range api.Kinds() {
		applied, err := s.contractKind(ctx, kind)
		if err != nil {
			return results, fmt.Errorf("contracting %s: %w", kind, err)
		}

		if applied {
			results[i].Outcome = PhaseApplied
			slog.Info("contract applied", "kind", kind)
		} else {
			results[i].Outcome = PhaseAlreadyApplied
		}
		results[i] = s.recordPhase("contract", results[i])
	}

	return results, nil
}

// contractKind applies the contract DDL for one kind. Every statement is
// individually idempotent, so interrupted runs can be repeated safely.
// Returns true if any state changed.
func (s *Store) contractKind(ctx context.Context, kind api.Kind) (bool, error) {
	table := kind.Table()

	nullable, err := s.tenantColumnNullable(ctx, kind)
	if err != nil {
		return false, err
	}
	hasTrigger, err := s.hasValidationTrigger(ctx, kind)
	if err != nil {
		return false, err
	}
	hasPolicy, err := s.hasTenantPolicy(ctx, kind)
	if err != nil {
		return false, err
	}

	applied := false

	if nullable {
		if _, err := s.pool.Exec(ctx,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN tenant_id SET NOT NULL", table),
		); err != nil {
			return applied, err
		}
		applied = true
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_tenant_id ON %s (tenant_id)", table, table,
	)); err != nil {
		return applied, err
	}

	if !hasTrigger {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
			CREATE TRIGGER trg_tenant_binding
			BEFORE INSERT OR UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION enforce_tenant_binding()
		`, table)); err != nil {
			return applied, err
		}
		applied = true
	}

	if !hasPolicy {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table)); err != nil {
			return applied, err
		}
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", table)); err != nil {
			return applied, err
		}
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
			CREATE POLICY tenant_isolation ON %s
			USING (tenant_id = current_setting('app.tenant_id', true))
			WITH CHECK (tenant_id = current_setting('app.tenant_id', true))
		`, table)); err != nil {
			return applied, err
		}
		applied = true
	}

	return applied, nil
}

// installTriggerFunction creates the shared validation trigger function.
// One routine serves all entity kinds; the state machine per write is
// null-check, then mismatch-check, then commit. Updates additionally reject
// any change to the tenant identifier.
func (s *Store) installTriggerFunction(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE OR REPLACE FUNCTION enforce_tenant_binding() RETURNS trigger AS $$
		BEGIN
			IF NEW.tenant_id IS NULL THEN
				RAISE EXCEPTION 'tenant identifier missing' USING ERRCODE = '23514';
			END IF;
			IF NEW.tenant_id IS DISTINCT FROM current_setting('app.tenant_id', true) THEN
				RAISE EXCEPTION 'tenant mismatch' USING ERRCODE = '23514';
			END IF;
			IF TG_OP = 'UPDATE' AND NEW.tenant_id IS DISTINCT FROM OLD.tenant_id THEN
				RAISE EXCEPTION 'tenant mismatch' USING ERRCODE = '23514';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		return fmt.Errorf("installing trigger function: %w", err)
	}
	return nil
}

func (s *Store) hasTenantColumn(ctx context.Context, kind api.Kind) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.columns
			WHERE table_name = $1 AND column_name = 'tenant_id'
		)
	`, kind.Table()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("introspecting %s: %w", kind, err)
	}
	return exists, nil
}

func (s *Store) tenantColumnNullable(ctx context.Context, kind api.Kind) (bool, error) {
	var nullable string
	err := s.pool.QueryRow(ctx, `
		SELECT is_nullable FROM information_schema.columns
		WHERE table_name = $1 AND column_name = 'tenant_id'
	`, kind.Table()).Scan(&nullable)
	if err != nil {
		return false, fmt.Errorf("introspecting %s: %w", kind, err)
	}
	return nullable == "YES", nil
}

func (s *Store) hasValidationTrigger(ctx context.Context, kind api.Kind) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pg_trigger
			WHERE tgname = 'trg_tenant_binding' AND tgrelid = $1::regclass
		)
	`, kind.Table()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking trigger on %s: %w", kind, err)
	}
	return exists, nil
}

func (s *Store) hasTenantPolicy(ctx context.Context, kind api.Kind) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pg_policies
			WHERE tablename = $1 AND policyname = 'tenant_isolation'
		)
	`, kind.Table()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking policy on %s: %w", kind, err)
	}
	return exists, nil
}

func (s *Store) countUnassigned(ctx context.Context, kind api.Kind) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id IS NULL", kind.Table())
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unassigned rows in %s: %w", kind, err)
	}
	return count, nil
}

func (s *Store) recordPhase(phase string, res PhaseResult) PhaseResult {
	observability.MigrationPhasesTotal.WithLabelValues(phase, string(res.Outcome)).Inc()
	return res
}
