package project

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// seedEntry is one author-entered project in the seed file.
type seedEntry struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	TechStack    []string `yaml:"techStack"`
	DisplayOrder int      `yaml:"displayOrder"`
	Publication  string   `yaml:"publication"`
	RepoURL      string   `yaml:"repoUrl"`
	Homepage     string   `yaml:"homepage"`
}

// Seed loads author-entered records from a YAML file into the store, but only
// when the persisted collection is empty. Sync-derived fields are left blank
// for the sync engine to fill.
func Seed(ctx context.Context, store Store, path string, logger zerolog.Logger) error {
	existing, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug().Int("count", len(existing)).Msg("project collection not empty, skipping seed")
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var entries []seedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	now := time.Now().UTC()
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("seed entry %d has no id", i)
		}
		p := Project{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			TechStack:    e.TechStack,
			DisplayOrder: e.DisplayOrder,
			Publication:  e.Publication,
			RepoURL:      e.RepoURL,
			Homepage:     e.Homepage,
			CreatedAt:    now,
		}
		if err := store.Put(ctx, p); err != nil {
			return fmt.Errorf("seeding project %s: %w", e.ID, err)
		}
	}

	logger.Info().Int("count", len(entries)).Str("path", path).Msg("seeded project collection")
	return nil
}
