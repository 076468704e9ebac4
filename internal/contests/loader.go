// Package contests seeds contest definitions from YAML fixture files so
// contests can be managed declaratively alongside deployment config.
package contests

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

// fixture mirrors the on-disk YAML contest definition
type fixture struct {
	Name      string    `yaml:"name"`
	StartDate time.Time `yaml:"start_date"`
	EndDate   time.Time `yaml:"end_date"`
}

// Loader creates contests from a fixtures directory, skipping ones that
// already exist by name
type Loader struct {
	repo storage.Repository
}

// NewLoader creates a contest fixture loader
func NewLoader(repo storage.Repository) *Loader {
	return &Loader{repo: repo}
}

// LoadFromDir reads every .yaml/.yml file in dir and creates the contests
// that do not exist yet. Invalid files are logged and skipped so one bad
// fixture does not block startup. Returns the number of contests created.
func (l *Loader) LoadFromDir(ctx context.Context, dir string) (int, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	created := 0
	for _, file := range files {
		ok, err := l.loadFromFile(ctx, file)
		if err != nil {
			slog.Warn("failed to load contest fixture", "file", file, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	slog.Info("contest fixtures loaded", "dir", dir, "created", created, "total_files", len(files))
	return created, nil
}

func (l *Loader) loadFromFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return false, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if fx.Name == "" {
		return false, fmt.Errorf("contest name is required")
	}
	if fx.StartDate.IsZero() || fx.EndDate.IsZero() {
		return false, fmt.Errorf("start_date and end_date are required")
	}
	if fx.EndDate.Before(fx.StartDate) {
		return false, fmt.Errorf("end_date is before start_date")
	}

	existing, err := l.repo.GetContestByName(ctx, fx.Name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil // already seeded
	}

	contest := &models.Contest{
		Name:      fx.Name,
		StartDate: fx.StartDate.UTC(),
		EndDate:   fx.EndDate.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.CreateContest(ctx, contest); err != nil {
		return false, err
	}

	slog.Info("contest seeded from fixture", "name", fx.Name, "contest_id", contest.ID)
	return true, nil
}
