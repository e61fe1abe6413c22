// Command migrate drives the three-phase tenant migration against a
// PostgreSQL database: expand adds nullable tenant columns, backfill assigns
// tenants to legacy rows from an operator-supplied YAML file, and contract
// locks enforcement in (NOT NULL, validation trigger, row-level security).
//
// Usage:
//
//	migrate -dsn postgres://... expand
//	migrate -dsn postgres://... backfill -assignments assignments.yaml
//	migrate -dsn postgres://... contract
//
// Each phase is idempotent; re-running a completed phase reports
// already_applied and changes nothing. Contract exits non-zero without
// touching the schema while any rows still lack a tenant identifier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/renum/agentstore/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	dsn := flag.String("dsn", os.Getenv("AGENTSTORE_STORAGE_DSN"), "PostgreSQL connection string")
	assignmentsPath := flag.String("assignments", "", "YAML file mapping legacy records to tenants (backfill only)")
	bootstrap := flag.Bool("bootstrap", false, "apply base schema migrations before the phase")
	flag.Parse()

	phase := flag.Arg(0)
	if phase == "" {
		return fmt.Errorf("usage: migrate [flags] expand|backfill|contract")
	}
	if *dsn == "" {
		return fmt.Errorf("-dsn or AGENTSTORE_STORAGE_DSN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:              *dsn,
		BootstrapOnStart: *bootstrap,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	var results []postgres.PhaseResult
	switch phase {
	case "expand":
		results, err = store.Expand(ctx)
	case "backfill":
		assignments, loadErr := loadAssignments(*assignmentsPath)
		if loadErr != nil {
			return loadErr
		}
		results, err = store.Backfill(ctx, assignments)
	case "contract":
		results, err = store.Contract(ctx)
	default:
		return fmt.Errorf("unknown phase %q (expected expand, backfill, or contract)", phase)
	}

	printResults(phase, results)

	if errors.Is(err, postgres.ErrMigrationPartial) {
		slog.Warn("contract blocked: rows without tenant identifier remain, schema unchanged")
		os.Exit(2)
	}
	return err
}

// loadAssignments reads the operator-supplied tenant assignments. Backfill
// with no assignments file is valid: it reports the remaining counts without
// assigning anything.
func loadAssignments(path string) ([]postgres.TenantAssignment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading assignments: %w", err)
	}
	var assignments []postgres.TenantAssignment
	if err := yaml.Unmarshal(data, &assignments); err != nil {
		return nil, fmt.Errorf("parsing assignments: %w", err)
	}
	return assignments, nil
}

func printResults(phase string, results []postgres.PhaseResult) {
	for _, res := range results {
		fmt.Printf("%-9s %-22s %-16s rows=%d remaining=%d\n",
			phase, res.Kind, res.Outcome, res.Rows, res.Remaining)
	}
}
