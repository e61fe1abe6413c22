package storage

import (
	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/observability"
	"github.com/renum/agentstore/pkg/tenancy"
)

// CheckWrite is the storage-boundary validation applied immediately before a
// write commits. It is a second, independent enforcement point: even a code
// path that bypasses the policy guard cannot commit a record without a
// matching tenant identifier.
//
// The Postgres adapter enforces the same state machine inside the database
// with a trigger installed by the contract migration phase; this function is
// the in-process equivalent used by the memory adapter.
func CheckWrite(activeTenant string, rec *api.Record, kind api.Kind) error {
	if rec.TenantID == "" {
		observability.TriggerRejectionsTotal.WithLabelValues(string(kind), "missing").Inc()
		return tenancy.ErrTenantIdentifierMissing
	}
	if rec.TenantID != activeTenant {
		observability.TriggerRejectionsTotal.WithLabelValues(string(kind), "mismatch").Inc()
		return tenancy.ErrTenantMismatch
	}
	return nil
}
