package storage

import (
	"errors"
	"testing"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/tenancy"
)

func TestCheckWrite(t *testing.T) {
	tests := []struct {
		name    string
		active  string
		tenant  string
		wantErr error
	}{
		{"matching", "tenant-a", "tenant-a", nil},
		{"missing identifier", "tenant-a", "", tenancy.ErrTenantIdentifierMissing},
		{"mismatched identifier", "tenant-a", "tenant-b", tenancy.ErrTenantMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &api.Record{ID: "agt_x", TenantID: tt.tenant}
			err := CheckWrite(tt.active, rec, api.KindAgents)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckWrite = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// The null check runs before the mismatch check: a record with no tenant
// identifier reports the missing identifier even though it also differs from
// the active tenant.
func TestCheckWriteNullBeforeMismatch(t *testing.T) {
	rec := &api.Record{ID: "agt_x", TenantID: ""}
	err := CheckWrite("tenant-a", rec, api.KindAgents)
	if !errors.Is(err, tenancy.ErrTenantIdentifierMissing) {
		t.Fatalf("CheckWrite = %v, want ErrTenantIdentifierMissing", err)
	}
}

func TestNormalizeListOptions(t *testing.T) {
	tests := []struct {
		name string
		in   ListOptions
		want ListOptions
	}{
		{"defaults", ListOptions{}, ListOptions{Limit: 20, Order: "desc"}},
		{"cap limit", ListOptions{Limit: 500}, ListOptions{Limit: 100, Order: "desc"}},
		{"negative limit", ListOptions{Limit: -1}, ListOptions{Limit: 20, Order: "desc"}},
		{"asc preserved", ListOptions{Limit: 5, Order: "asc"}, ListOptions{Limit: 5, Order: "asc"}},
		{"bogus order", ListOptions{Limit: 5, Order: "sideways"}, ListOptions{Limit: 5, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeListOptions(tt.in); got != tt.want {
				t.Errorf("NormalizeListOptions = %+v, want %+v", got, tt.want)
			}
		})
	}
}
