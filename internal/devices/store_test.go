package devices

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func devicesEqual(t *testing.T, got []RememberedDevice, wantIDs ...string) {
	t.Helper()
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d devices, got %d: %+v", len(wantIDs), len(got), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %q, got %q", i, id, got[i].ID)
		}
	}
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T, cap int) Store) {
	ctx := context.Background()

	t.Run("upsert is idempotent and moves to front", func(t *testing.T) {
		s := newStore(t, 5)
		defer s.Close()

		for _, id := range []string{"dev-a", "dev-b", "dev-c"} {
			if err := s.Upsert(ctx, RememberedDevice{ID: id, Name: id}); err != nil {
				t.Fatalf("upsert %s: %v", id, err)
			}
		}
		if err := s.Upsert(ctx, RememberedDevice{ID: "dev-a", Name: "dev-a renamed"}); err != nil {
			t.Fatalf("re-upsert: %v", err)
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		devicesEqual(t, got, "dev-a", "dev-c", "dev-b")
		if got[0].Name != "dev-a renamed" {
			t.Fatalf("expected name to be updated, got %q", got[0].Name)
		}
	})

	t.Run("evicts least recently connected beyond cap", func(t *testing.T) {
		s := newStore(t, 3)
		defer s.Close()

		for _, id := range []string{"d1", "d2", "d3", "d4"} {
			if err := s.Upsert(ctx, RememberedDevice{ID: id, Name: id}); err != nil {
				t.Fatalf("upsert %s: %v", id, err)
			}
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		devicesEqual(t, got, "d4", "d3", "d2")
	})

	t.Run("remove unknown id is a no-op", func(t *testing.T) {
		s := newStore(t, 5)
		defer s.Close()

		if err := s.Upsert(ctx, RememberedDevice{ID: "dev-a", Name: "A"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.Remove(ctx, "nope"); err != nil {
			t.Fatalf("remove unknown: %v", err)
		}
		got, _ := s.Load(ctx)
		devicesEqual(t, got, "dev-a")

		if err := s.Remove(ctx, "dev-a"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		got, _ = s.Load(ctx)
		devicesEqual(t, got)
	})
}

func TestInMemoryStore(t *testing.T) {
	runStoreSuite(t, func(_ *testing.T, cap int) Store {
		return NewInMemoryStore(cap)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, cap int) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "devices.db"), cap)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		return s
	})
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.db")

	s, err := NewSQLiteStore(path, 5)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := s.Upsert(ctx, RememberedDevice{ID: "dev-a", Name: "OBD Reader", LastConnectedAt: when}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, RememberedDevice{ID: "dev-b", Name: "Dash Cam"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := NewSQLiteStore(path, 5)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	got, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	devicesEqual(t, got, "dev-b", "dev-a")
	if !got[1].LastConnectedAt.Equal(when) {
		t.Fatalf("expected timestamp to round-trip, got %v", got[1].LastConnectedAt)
	}
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	s, err := NewStore("  ", 5)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("expected in-memory store, got %T", s)
	}
}
