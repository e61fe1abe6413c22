package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/storage"
	"github.com/renum/agentstore/pkg/tenancy"
)

func boundContext(t *testing.T, tenantID string) context.Context {
	t.Helper()
	b := tenancy.NewBinding()
	if err := b.Activate(tenantID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(b.Clear)
	return tenancy.Bind(context.Background(), b)
}

func mustCreate(t *testing.T, s *Store, ctx context.Context, kind api.Kind, tenantID string, data map[string]any) *api.Record {
	t.Helper()
	rec := &api.Record{
		ID:       api.NewRecordID(kind),
		TenantID: tenantID,
		Data:     data,
	}
	if err := s.Create(ctx, kind, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")

	rec := mustCreate(t, s, ctx, api.KindAgents, "tenant-a", map[string]any{"name": "support-bot"})

	got, err := s.Get(ctx, api.KindAgents, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID || got.TenantID != "tenant-a" {
		t.Errorf("Get = %+v", got)
	}
	if got.Data["name"] != "support-bot" {
		t.Errorf("Data = %v", got.Data)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps must be set on create")
	}
}

func TestCreateRequiresBinding(t *testing.T) {
	s := New()
	rec := &api.Record{ID: api.NewRecordID(api.KindAgents), TenantID: "tenant-a"}

	err := s.Create(context.Background(), api.KindAgents, rec)
	if !errors.Is(err, tenancy.ErrContextMissing) {
		t.Fatalf("Create unbound: got %v, want ErrContextMissing", err)
	}

	// Nothing was persisted.
	ctx := boundContext(t, "tenant-a")
	if _, err := s.Get(ctx, api.KindAgents, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after rejected create: got %v, want ErrNotFound", err)
	}
}

func TestCreateWriteValidation(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")

	t.Run("missing tenant identifier", func(t *testing.T) {
		rec := &api.Record{ID: api.NewRecordID(api.KindCredentials)}
		if err := s.Create(ctx, api.KindCredentials, rec); !errors.Is(err, tenancy.ErrTenantIdentifierMissing) {
			t.Fatalf("Create: got %v, want ErrTenantIdentifierMissing", err)
		}
	})

	t.Run("foreign tenant identifier", func(t *testing.T) {
		rec := &api.Record{ID: api.NewRecordID(api.KindCredentials), TenantID: "tenant-b"}
		if err := s.Create(ctx, api.KindCredentials, rec); !errors.Is(err, tenancy.ErrTenantMismatch) {
			t.Fatalf("Create: got %v, want ErrTenantMismatch", err)
		}
	})
}

func TestCreateConflict(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")
	rec := mustCreate(t, s, ctx, api.KindTools, "tenant-a", nil)

	dup := &api.Record{ID: rec.ID, TenantID: "tenant-a"}
	if err := s.Create(ctx, api.KindTools, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate Create: got %v, want ErrConflict", err)
	}
}

func TestCrossTenantInvisibility(t *testing.T) {
	s := New()
	ctxA := boundContext(t, "tenant-a")
	ctxB := boundContext(t, "tenant-b")

	recA := mustCreate(t, s, ctxA, api.KindAgents, "tenant-a", map[string]any{"name": "a-bot"})

	// Tenant B cannot read, update, or delete tenant A's record; the record
	// is indistinguishable from one that does not exist.
	if _, err := s.Get(ctxB, api.KindAgents, recA.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign Get: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctxB, api.KindAgents, recA.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign Delete: got %v, want ErrNotFound", err)
	}

	upd := &api.Record{ID: recA.ID, TenantID: "tenant-b", Data: map[string]any{"name": "hijacked"}}
	if err := s.Update(ctxB, api.KindAgents, upd); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign Update: got %v, want ErrNotFound", err)
	}

	// Lists never include foreign records.
	list, err := s.List(ctxB, api.KindAgents, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Data) != 0 {
		t.Errorf("foreign List returned %d records", len(list.Data))
	}

	// Record is untouched for its owner.
	got, err := s.Get(ctxA, api.KindAgents, recA.ID)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if got.Data["name"] != "a-bot" {
		t.Errorf("record mutated by foreign tenant: %v", got.Data)
	}
}

func TestUpdatePreservesCreatedAtAndTenant(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")
	rec := mustCreate(t, s, ctx, api.KindAgents, "tenant-a", map[string]any{"name": "v1"})
	created := rec.CreatedAt

	time.Sleep(time.Millisecond)

	upd := &api.Record{ID: rec.ID, TenantID: "tenant-a", Data: map[string]any{"name": "v2"}}
	if err := s.Update(ctx, api.KindAgents, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, api.KindAgents, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v -> %v", created, got.CreatedAt)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt not advanced: %v", got.UpdatedAt)
	}
	if got.Data["name"] != "v2" {
		t.Errorf("Data = %v", got.Data)
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")
	rec := mustCreate(t, s, ctx, api.KindKnowledgeDocuments, "tenant-a", nil)

	if err := s.Delete(ctx, api.KindKnowledgeDocuments, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, api.KindKnowledgeDocuments, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, api.KindKnowledgeDocuments, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("double Delete: got %v, want ErrNotFound", err)
	}
}

func TestListPagination(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")

	var ids []string
	for i := 0; i < 5; i++ {
		rec := &api.Record{
			ID:        api.NewRecordID(api.KindAgentExecutions),
			TenantID:  "tenant-a",
			Data:      map[string]any{"seq": i},
			CreatedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}
		if err := s.Create(ctx, api.KindAgentExecutions, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	// Default order is newest first.
	page, err := s.List(ctx, api.KindAgentExecutions, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 2 || !page.HasMore {
		t.Fatalf("page 1: len=%d hasMore=%v", len(page.Data), page.HasMore)
	}
	if page.Data[0].ID != ids[4] || page.Data[1].ID != ids[3] {
		t.Errorf("page 1 order: %s, %s", page.Data[0].ID, page.Data[1].ID)
	}

	// Cursor continues from the last ID.
	page2, err := s.List(ctx, api.KindAgentExecutions, storage.ListOptions{Limit: 2, After: page.LastID})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2.Data) != 2 || !page2.HasMore {
		t.Fatalf("page 2: len=%d hasMore=%v", len(page2.Data), page2.HasMore)
	}
	if page2.Data[0].ID != ids[2] {
		t.Errorf("page 2 first = %s, want %s", page2.Data[0].ID, ids[2])
	}

	page3, err := s.List(ctx, api.KindAgentExecutions, storage.ListOptions{Limit: 2, After: page2.LastID})
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3.Data) != 1 || page3.HasMore {
		t.Fatalf("page 3: len=%d hasMore=%v", len(page3.Data), page3.HasMore)
	}

	// Ascending order.
	asc, err := s.List(ctx, api.KindAgentExecutions, storage.ListOptions{Order: "asc"})
	if err != nil {
		t.Fatalf("List asc: %v", err)
	}
	if asc.Data[0].ID != ids[0] {
		t.Errorf("asc first = %s, want %s", asc.Data[0].ID, ids[0])
	}
}

func TestKindsAreIsolatedCollections(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")

	agent := mustCreate(t, s, ctx, api.KindAgents, "tenant-a", nil)

	// The same ID in another kind's collection is a different record.
	if _, err := s.Get(ctx, api.KindTools, agent.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get across kinds: got %v, want ErrNotFound", err)
	}
}

func TestStoredRecordsAreIsolatedFromCallers(t *testing.T) {
	s := New()
	ctx := boundContext(t, "tenant-a")
	rec := mustCreate(t, s, ctx, api.KindAgents, "tenant-a", map[string]any{"name": "orig"})

	// Mutating the caller's copy after create must not affect stored state.
	rec.Data["name"] = "mutated"

	got, err := s.Get(ctx, api.KindAgents, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Data["name"] != "orig" {
		t.Errorf("stored record mutated through caller copy: %v", got.Data)
	}

	// Mutating a returned copy must not affect stored state either.
	got.Data["name"] = "mutated-again"
	got2, _ := s.Get(ctx, api.KindAgents, rec.ID)
	if got2.Data["name"] != "orig" {
		t.Errorf("stored record mutated through returned copy: %v", got2.Data)
	}
}

func TestConcurrentTenantsStayIsolated(t *testing.T) {
	s := New()
	const perTenant = 20

	var wg sync.WaitGroup
	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		wg.Add(1)
		go func(tenant string) {
			defer wg.Done()
			for i := 0; i < perTenant; i++ {
				err := tenancy.Scope(context.Background(), tenant, func(ctx context.Context) error {
					rec := &api.Record{
						ID:       api.NewRecordID(api.KindAgents),
						TenantID: tenant,
						Data:     map[string]any{"n": fmt.Sprintf("%s-%d", tenant, i)},
					}
					return s.Create(ctx, api.KindAgents, rec)
				})
				if err != nil {
					t.Errorf("Create for %s: %v", tenant, err)
					return
				}
			}
		}(tenant)
	}
	wg.Wait()

	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		err := tenancy.Scope(context.Background(), tenant, func(ctx context.Context) error {
			list, err := s.List(ctx, api.KindAgents, storage.ListOptions{Limit: 100})
			if err != nil {
				return err
			}
			if len(list.Data) != perTenant {
				t.Errorf("%s sees %d records, want %d", tenant, len(list.Data), perTenant)
			}
			for _, rec := range list.Data {
				if rec.TenantID != tenant {
					t.Errorf("%s sees foreign record %s (tenant %s)", tenant, rec.ID, rec.TenantID)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("List for %s: %v", tenant, err)
		}
	}
}

// A cleared binding cannot leak into subsequent work on the same resources.
func TestClearedBindingDeniesAccess(t *testing.T) {
	s := New()
	b := tenancy.NewBinding()
	if err := b.Activate("tenant-a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	ctx := tenancy.Bind(context.Background(), b)

	rec := &api.Record{ID: api.NewRecordID(api.KindAgents), TenantID: "tenant-a"}
	if err := s.Create(ctx, api.KindAgents, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b.Clear()

	if _, err := s.Get(ctx, api.KindAgents, rec.ID); !errors.Is(err, tenancy.ErrContextMissing) {
		t.Fatalf("Get after Clear: got %v, want ErrContextMissing", err)
	}
	if err := s.Create(ctx, api.KindAgents, &api.Record{ID: api.NewRecordID(api.KindAgents), TenantID: "tenant-a"}); !errors.Is(err, tenancy.ErrContextMissing) {
		t.Fatalf("Create after Clear: got %v, want ErrContextMissing", err)
	}
}
