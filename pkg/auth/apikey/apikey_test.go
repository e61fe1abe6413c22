package apikey

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/renum/agentstore/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	authn := New([]Entry{
		{Key: "key-alpha", Subject: "svc-alpha", TenantID: "tenant-a"},
		{Key: "key-beta", Subject: "svc-beta", TenantID: "tenant-b"},
	})

	tests := []struct {
		name       string
		header     string
		value      string
		want       auth.Decision
		wantTenant string
	}{
		{"bearer match", "Authorization", "Bearer key-alpha", auth.Yes, "tenant-a"},
		{"x-api-key match", "X-API-Key", "key-beta", auth.Yes, "tenant-b"},
		{"unknown key", "X-API-Key", "key-gamma", auth.No, ""},
		{"unknown bearer", "Authorization", "Bearer nope", auth.No, ""},
		{"no credential", "", "", auth.Abstain, ""},
		{"basic scheme ignored", "Authorization", "Basic dXNlcjpwYXNz", auth.Abstain, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/agents", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}

			result := authn.Authenticate(context.Background(), r)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %v, want %v", result.Decision, tt.want)
			}
			if tt.want == auth.Yes && result.Identity.TenantID != tt.wantTenant {
				t.Errorf("TenantID = %q, want %q", result.Identity.TenantID, tt.wantTenant)
			}
			if tt.want == auth.No && result.Err == nil {
				t.Error("No decision must carry an error")
			}
		})
	}
}
