package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Worker{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewRepository(db)
}

func TestFindByAPIKey(t *testing.T) {
	repo := setupRepo(t)
	w := &Worker{OwnerID: uuid.New(), Name: "box", APIKey: "wk_abc"}
	if err := repo.Create(w); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.FindByAPIKey("wk_abc")
	if err != nil {
		t.Fatalf("FindByAPIKey: %v", err)
	}
	if found.ID != w.ID {
		t.Errorf("found worker %s, want %s", found.ID, w.ID)
	}

	if _, err := repo.FindByAPIKey("wk_nope"); err == nil {
		t.Error("unknown api key resolved to a worker")
	}
}

func TestMarkStaleOffline(t *testing.T) {
	repo := setupRepo(t)
	now := time.Now()

	stale := &Worker{OwnerID: uuid.New(), Name: "stale", APIKey: "wk_stale", Status: StatusOnline, LastSeenAt: now.Add(-5 * time.Minute)}
	fresh := &Worker{OwnerID: uuid.New(), Name: "fresh", APIKey: "wk_fresh", Status: StatusOnline, LastSeenAt: now}
	for _, w := range []*Worker{stale, fresh} {
		if err := repo.Create(w); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := repo.MarkStaleOffline(now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("MarkStaleOffline: %v", err)
	}
	if n != 1 {
		t.Fatalf("marked %d workers offline, want 1", n)
	}

	got, _ := repo.FindByID(stale.ID)
	if got.Status != StatusOffline {
		t.Errorf("stale worker status = %s, want offline", got.Status)
	}
	got, _ = repo.FindByID(fresh.ID)
	if got.Status != StatusOnline {
		t.Errorf("fresh worker status = %s, want online", got.Status)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := setupRepo(t)
	w := &Worker{OwnerID: uuid.New(), Name: "box", APIKey: "wk_s"}
	if err := repo.Create(w); err != nil {
		t.Fatalf("Create: %v", err)
	}

	seen := time.Now()
	if err := repo.UpdateStatus(w.ID, StatusOnline, seen); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.FindByID(w.ID)
	if got.Status != StatusOnline {
		t.Errorf("status = %s, want online", got.Status)
	}
}
