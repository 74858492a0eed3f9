package session

import (
	"testing"

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
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewRepository(db)
}

func TestSaveNameCreatesAndUpdates(t *testing.T) {
	repo := setupRepo(t)
	workerID := uuid.New()

	if err := repo.SaveName(workerID, "main", "build watcher"); err != nil {
		t.Fatalf("SaveName: %v", err)
	}
	name, err := repo.FindName(workerID, "main")
	if err != nil {
		t.Fatalf("FindName: %v", err)
	}
	if name != "build watcher" {
		t.Errorf("name = %q, want %q", name, "build watcher")
	}

	if err := repo.SaveName(workerID, "main", "deploy log"); err != nil {
		t.Fatalf("SaveName update: %v", err)
	}
	name, err = repo.FindName(workerID, "main")
	if err != nil {
		t.Fatalf("FindName after update: %v", err)
	}
	if name != "deploy log" {
		t.Errorf("name = %q, want %q", name, "deploy log")
	}
}

func TestFindNameMissingIsEmpty(t *testing.T) {
	repo := setupRepo(t)

	name, err := repo.FindName(uuid.New(), "nope")
	if err != nil {
		t.Fatalf("FindName: %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
}

func TestNamesAreScopedToWorker(t *testing.T) {
	repo := setupRepo(t)
	a, b := uuid.New(), uuid.New()

	if err := repo.SaveName(a, "main", "alpha"); err != nil {
		t.Fatalf("SaveName: %v", err)
	}
	if err := repo.SaveName(b, "main", "beta"); err != nil {
		t.Fatalf("SaveName: %v", err)
	}

	if name, _ := repo.FindName(a, "main"); name != "alpha" {
		t.Errorf("worker a name = %q, want alpha", name)
	}
	if name, _ := repo.FindName(b, "main"); name != "beta" {
		t.Errorf("worker b name = %q, want beta", name)
	}
}

func TestDeleteRemovesName(t *testing.T) {
	repo := setupRepo(t)
	workerID := uuid.New()

	if err := repo.SaveName(workerID, "tmp", "scratch"); err != nil {
		t.Fatalf("SaveName: %v", err)
	}
	if err := repo.Delete(workerID, "tmp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if name, _ := repo.FindName(workerID, "tmp"); name != "" {
		t.Errorf("name = %q after delete, want empty", name)
	}
}
