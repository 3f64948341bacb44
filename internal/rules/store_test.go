package rules

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "rules.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndGet(t *testing.T) {
	store := newTestStore(t)

	added, err := store.Add("orçamento", "resposta de orçamento")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID == 0 || !added.Active {
		t.Errorf("added rule = %+v, want assigned id and active", added)
	}

	got, err := store.Get("ORÇAMENTO")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Keyword != "orçamento" {
		t.Errorf("case-insensitive Get = %+v, want orçamento rule", got)
	}
}

func TestAddRejectsEmpty(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Add("", "resposta"); err == nil {
		t.Error("Add with empty keyword succeeded, want error")
	}
	if _, err := store.Add("orçamento", "   "); err == nil {
		t.Error("Add with blank response succeeded, want error")
	}
}

func TestAddUpsertsByKeyword(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Add("suporte", "resposta antiga"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Deactivate("suporte"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	// Re-adding with different casing updates in place and reactivates.
	updated, err := store.Add("Suporte", "resposta nova")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if updated.Response != "resposta nova" || !updated.Active {
		t.Errorf("upserted rule = %+v, want new response and active", updated)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSnapshotActiveInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	for _, kw := range []string{"orçamento", "suporte", "entrega"} {
		if _, err := store.Add(kw, "resposta "+kw); err != nil {
			t.Fatalf("Add(%q): %v", kw, err)
		}
	}
	if err := store.Deactivate("suporte"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	snapshot, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := []string{"orçamento", "entrega"}
	if len(snapshot) != len(want) {
		t.Fatalf("Snapshot has %d rules, want %d: %v", len(snapshot), len(want), snapshot)
	}
	for i, kw := range want {
		if snapshot[i].Keyword != kw {
			t.Errorf("snapshot[%d] = %q, want %q", i, snapshot[i].Keyword, kw)
		}
	}
}

func TestDeactivateUnknownKeyword(t *testing.T) {
	store := newTestStore(t)

	if err := store.Deactivate("inexistente"); err == nil {
		t.Error("Deactivate of unknown keyword succeeded, want error")
	}
}

func TestSeedDefaults(t *testing.T) {
	store := newTestStore(t)

	if err := store.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	snapshot, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("seeded %d rules, want 2", len(snapshot))
	}
	if snapshot[0].Keyword != "orçamento" || snapshot[1].Keyword != "suporte" {
		t.Errorf("seeded keywords = %q, %q", snapshot[0].Keyword, snapshot[1].Keyword)
	}

	// Seeding a non-empty store is a no-op.
	if _, err := store.Add("entrega", "resposta"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count after reseed = %d, want 3", n)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Add("orçamento", "resposta de orçamento"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := store.ExportFile(path); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}

	other := newTestStore(t)
	if err := other.ImportFile(path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	got, err := other.Get("orçamento")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Response != "resposta de orçamento" {
		t.Errorf("imported rule = %+v", got)
	}
}
