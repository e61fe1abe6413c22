package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/renum/agentstore/pkg/api"
)

func boundContext(t *testing.T, tenantID string) context.Context {
	t.Helper()
	b := NewBinding()
	if err := b.Activate(tenantID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(b.Clear)
	return Bind(context.Background(), b)
}

func TestPolicyGuardAuthorize(t *testing.T) {
	guard := NewPolicyGuard()

	tests := []struct {
		name         string
		ctx          context.Context
		verb         Verb
		recordTenant string
		wantErr      error
	}{
		{"create matching tenant", boundContext(t, "tenant-a"), VerbCreate, "tenant-a", nil},
		{"update matching tenant", boundContext(t, "tenant-a"), VerbUpdate, "tenant-a", nil},
		{"create foreign tenant", boundContext(t, "tenant-a"), VerbCreate, "tenant-b", ErrTenantMismatch},
		{"update foreign tenant", boundContext(t, "tenant-a"), VerbUpdate, "tenant-b", ErrTenantMismatch},
		{"create empty tenant", boundContext(t, "tenant-a"), VerbCreate, "", ErrTenantIdentifierMissing},
		{"update empty tenant", boundContext(t, "tenant-a"), VerbUpdate, "", ErrTenantIdentifierMissing},
		{"read with binding", boundContext(t, "tenant-a"), VerbRead, "", nil},
		{"delete with binding", boundContext(t, "tenant-a"), VerbDelete, "", nil},
		{"create unbound", context.Background(), VerbCreate, "tenant-a", ErrContextMissing},
		{"read unbound", context.Background(), VerbRead, "", ErrContextMissing},
		{"update unbound", context.Background(), VerbUpdate, "tenant-a", ErrContextMissing},
		{"delete unbound", context.Background(), VerbDelete, "", ErrContextMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize(tt.ctx, api.KindAgents, tt.verb, tt.recordTenant)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPolicyGuardAllKinds(t *testing.T) {
	guard := NewPolicyGuard()
	ctx := boundContext(t, "tenant-a")

	// The equality predicate is shared: every kind behaves identically.
	for _, kind := range api.Kinds() {
		if err := guard.Authorize(ctx, kind, VerbCreate, "tenant-a"); err != nil {
			t.Errorf("kind %s: matching create rejected: %v", kind, err)
		}
		if err := guard.Authorize(ctx, kind, VerbCreate, "tenant-b"); !errors.Is(err, ErrTenantMismatch) {
			t.Errorf("kind %s: foreign create: got %v, want ErrTenantMismatch", kind, err)
		}
	}
}

func TestPolicyGuardUnknownVerb(t *testing.T) {
	guard := NewPolicyGuard()
	ctx := boundContext(t, "tenant-a")

	if err := guard.Authorize(ctx, api.KindAgents, Verb("purge"), ""); err == nil {
		t.Fatal("unknown verb must be rejected")
	}
}
