package contests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/audithq/contest-engine/internal/storage"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	repo := storage.NewMemoryRepository()
	loader := NewLoader(repo)
	ctx := context.Background()

	writeFixture(t, dir, "spring.yaml", `
name: spring-audit-2026
start_date: 2026-03-01T00:00:00Z
end_date: 2026-03-15T00:00:00Z
`)
	writeFixture(t, dir, "summer.yml", `
name: summer-audit-2026
start_date: 2026-06-01T00:00:00Z
end_date: 2026-06-21T00:00:00Z
`)
	// Missing dates: logged and skipped, must not block the rest
	writeFixture(t, dir, "broken.yaml", `
name: broken-contest
`)
	// Non-YAML extension is ignored entirely
	writeFixture(t, dir, "notes.txt", "not a fixture")

	created, err := loader.LoadFromDir(ctx, dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if created != 2 {
		t.Errorf("expected 2 contests created, got %d", created)
	}

	spring, err := repo.GetContestByName(ctx, "spring-audit-2026")
	if err != nil {
		t.Fatalf("GetContestByName failed: %v", err)
	}
	if spring == nil {
		t.Fatal("spring contest was not seeded")
	}
	if spring.EndDate.Sub(spring.StartDate).Hours() != 14*24 {
		t.Errorf("unexpected contest window: %v to %v", spring.StartDate, spring.EndDate)
	}

	if broken, _ := repo.GetContestByName(ctx, "broken-contest"); broken != nil {
		t.Error("invalid fixture must not create a contest")
	}

	// Reloading the same directory creates nothing new
	created, err = loader.LoadFromDir(ctx, dir)
	if err != nil {
		t.Fatalf("second LoadFromDir failed: %v", err)
	}
	if created != 0 {
		t.Errorf("expected 0 contests on reload, got %d", created)
	}
}

func TestLoadFromDirRejectsBackwardsWindow(t *testing.T) {
	dir := t.TempDir()
	repo := storage.NewMemoryRepository()
	loader := NewLoader(repo)

	writeFixture(t, dir, "backwards.yaml", `
name: backwards
start_date: 2026-03-15T00:00:00Z
end_date: 2026-03-01T00:00:00Z
`)

	created, err := loader.LoadFromDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if created != 0 {
		t.Errorf("expected 0 contests created, got %d", created)
	}
}

func TestLoadFromDirMissingDir(t *testing.T) {
	repo := storage.NewMemoryRepository()
	loader := NewLoader(repo)

	created, err := loader.LoadFromDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing directory should not error, got %v", err)
	}
	if created != 0 {
		t.Errorf("expected 0 contests created, got %d", created)
	}
}
