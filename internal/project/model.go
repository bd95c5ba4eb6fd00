// Package project defines the persisted portfolio project records and their store.
package project

import (
	"time"

	"github.com/foliolab/folio/internal/github"
)

// RepoStats is the sync-derived numeric summary of a repository.
type RepoStats struct {
	Stars           int    `json:"stars"`
	Forks           int    `json:"forks"`
	Watchers        int    `json:"watchers"`
	OpenIssues      int    `json:"openIssues"`
	CommitCount     int    `json:"commitCount"`
	SizeKB          int    `json:"sizeKb"`
	PrimaryLanguage string `json:"primaryLanguage,omitempty"`
}

// Project is a persisted portfolio record. Author-entered fields (Title,
// Description, TechStack, DisplayOrder, Publication) follow the fill-if-empty
// policy on sync; everything under the sync-derived section is overwritten
// wholesale on every successful sync.
type Project struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	TechStack    []string `json:"techStack,omitempty"`
	DisplayOrder int      `json:"displayOrder,omitempty"`
	Publication  string   `json:"publication,omitempty"`
	RepoURL      string   `json:"repoUrl,omitempty"`
	Homepage     string   `json:"homepage,omitempty"`

	// Sync-derived fields.
	Stats         *RepoStats            `json:"stats,omitempty"`
	Topics        []string              `json:"topics,omitempty"`
	Languages     []github.LanguageStat `json:"languages,omitempty"`
	Contributors  []github.Contributor  `json:"contributors,omitempty"`
	LatestRelease *github.Release       `json:"latestRelease,omitempty"`
	Branches      []github.Branch       `json:"branches,omitempty"`
	Tree          []github.TreeEntry    `json:"tree,omitempty"`
	Issues        github.IssueCounts    `json:"issues"`
	PullRequests  github.PRCounts       `json:"pullRequests"`

	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// StaleBefore reports whether the project is a sync candidate: it has a
// repository URL and has either never synced or last synced before cutoff.
func (p *Project) StaleBefore(cutoff time.Time) bool {
	if p.RepoURL == "" {
		return false
	}
	return p.LastSyncedAt == nil || p.LastSyncedAt.Before(cutoff)
}
