package gitsync

import (
	"strings"
	"time"

	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/project"
)

// maxDescriptionRunes caps descriptions filled from upstream.
const maxDescriptionRunes = 400

// reconcile projects a snapshot onto an existing record. Pure function of
// (existing, snap, now): author-entered fields follow fill-if-empty,
// sync-derived fields are overwritten wholesale. Re-running with the same
// snapshot changes nothing but LastSyncedAt.
func reconcile(existing project.Project, snap *github.Snapshot, now time.Time) project.Project {
	updated := existing

	// Author fields: only fill when empty.
	if updated.Title == "" {
		updated.Title = snap.Name
	}
	if updated.Description == "" && snap.Description != nil {
		updated.Description = formatDescription(*snap.Description)
	}
	if updated.Homepage == "" && snap.Homepage != nil {
		updated.Homepage = *snap.Homepage
	}
	if len(updated.TechStack) == 0 && len(snap.Languages) > 0 {
		stack := make([]string, 0, len(snap.Languages))
		for _, lang := range snap.Languages {
			stack = append(stack, lang.Name)
		}
		updated.TechStack = stack
	}

	// Sync-derived fields: always replaced.
	stats := &project.RepoStats{
		Stars:       snap.Stars,
		Forks:       snap.Forks,
		Watchers:    snap.Watchers,
		OpenIssues:  snap.OpenIssues,
		CommitCount: snap.CommitCount,
		SizeKB:      snap.SizeKB,
	}
	if snap.Language != nil {
		stats.PrimaryLanguage = *snap.Language
	}
	updated.Stats = stats
	updated.Topics = snap.Topics
	updated.Languages = snap.Languages
	updated.Contributors = snap.Contributors
	updated.LatestRelease = snap.LatestRelease
	updated.Branches = snap.Branches
	updated.Tree = snap.Tree
	updated.Issues = snap.Issues
	updated.PullRequests = snap.PullRequests

	synced := now.UTC()
	updated.LastSyncedAt = &synced

	return updated
}

// formatDescription trims and truncates an upstream description before it is
// used to fill an empty author field.
func formatDescription(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxDescriptionRunes {
		return s
	}
	return string(runes[:maxDescriptionRunes])
}
