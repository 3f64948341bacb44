package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndRecent(t *testing.T) {
	store := newTestStore(t)

	first := &Entry{Sender: "a@example.com", Subject: "Orçamento", MatchedKeyword: "orçamento", ResponseSent: "resposta", ProcessedAt: time.Now().Add(-time.Hour)}
	second := &Entry{Sender: "b@example.com", Subject: "Dúvida", ResponseSent: "fallback"}
	for _, e := range []*Entry{first, second} {
		if err := store.Add(e); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if e.ID == 0 {
			t.Errorf("Add left ID unset for %+v", e)
		}
	}

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	if entries[0].Sender != "b@example.com" {
		t.Errorf("newest first: got %q", entries[0].Sender)
	}
	if entries[1].MatchedKeyword != "orçamento" {
		t.Errorf("matched keyword = %q, want orçamento", entries[1].MatchedKeyword)
	}
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t)

	entries := []*Entry{
		{Sender: "a@example.com", MatchedKeyword: "orçamento", ResponseSent: "r"},
		{Sender: "b@example.com", MatchedKeyword: "suporte", ResponseSent: "r"},
		{Sender: "c@example.com", ResponseSent: "fallback"},
	}
	for _, e := range entries {
		if err := store.Add(e); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Total != 3 || stats.Replied != 2 || stats.Fallback != 1 {
		t.Errorf("stats = %+v, want total 3, replied 2, fallback 1", stats)
	}
	if stats.ThisMonth != 3 {
		t.Errorf("ThisMonth = %d, want 3", stats.ThisMonth)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)

	old := &Entry{Sender: "old@example.com", ResponseSent: "r", ProcessedAt: time.Now().AddDate(0, -2, 0)}
	fresh := &Entry{Sender: "new@example.com", ResponseSent: "r"}
	for _, e := range []*Entry{old, fresh} {
		if err := store.Add(e); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	deleted, err := store.DeleteOlderThan(time.Now().AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Sender != "new@example.com" {
		t.Errorf("remaining entries = %v", entries)
	}
}
