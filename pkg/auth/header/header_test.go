package header

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/renum/agentstore/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	authn := New()

	t.Run("tenant and subject", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/agents", nil)
		r.Header.Set(TenantHeader, "tenant-a")
		r.Header.Set(SubjectHeader, "user-1")

		result := authn.Authenticate(context.Background(), r)
		if result.Decision != auth.Yes {
			t.Fatalf("Decision = %v", result.Decision)
		}
		if result.Identity.TenantID != "tenant-a" || result.Identity.Subject != "user-1" {
			t.Errorf("Identity = %+v", result.Identity)
		}
	})

	t.Run("subject defaults to gateway", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/agents", nil)
		r.Header.Set(TenantHeader, "tenant-a")

		result := authn.Authenticate(context.Background(), r)
		if result.Decision != auth.Yes || result.Identity.Subject != "gateway" {
			t.Fatalf("result = %+v", result)
		}
	})

	t.Run("no tenant header abstains", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/agents", nil)
		result := authn.Authenticate(context.Background(), r)
		if result.Decision != auth.Abstain {
			t.Fatalf("Decision = %v, want Abstain", result.Decision)
		}
	})
}
