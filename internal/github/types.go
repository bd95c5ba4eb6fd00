package github

import "time"

// Snapshot is a point-in-time read of a repository's public metadata.
// It is built fresh on every fetch and never persisted verbatim.
// Fields the API may omit are pointers; absent secondary data (branches,
// release, tree) is represented as nil/empty, not as an error.
type Snapshot struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`

	Description *string `json:"description,omitempty"`
	Homepage    *string `json:"homepage,omitempty"`
	Language    *string `json:"language,omitempty"`

	Stars      int      `json:"stars"`
	Forks      int      `json:"forks"`
	Watchers   int      `json:"watchers"`
	OpenIssues int      `json:"openIssues"`
	SizeKB     int      `json:"sizeKb"`
	Topics     []string `json:"topics,omitempty"`

	Languages     []LanguageStat `json:"languages,omitempty"`
	Contributors  []Contributor  `json:"contributors,omitempty"`
	LatestRelease *Release       `json:"latestRelease,omitempty"`
	Branches      []Branch       `json:"branches,omitempty"`
	Tree          []TreeEntry    `json:"tree,omitempty"`

	CommitCount  int         `json:"commitCount"`
	Issues       IssueCounts `json:"issues"`
	PullRequests PRCounts    `json:"pullRequests"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// LanguageStat pairs a language with its byte count, sorted by bytes descending.
type LanguageStat struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// Contributor identifies a repository contributor.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	ProfileURL    string `json:"profileUrl,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
}

// Release describes the latest published release.
type Release struct {
	TagName     string     `json:"tagName"`
	Name        string     `json:"name,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Description string     `json:"description,omitempty"`
	Downloads   int        `json:"downloads"` // summed across assets
}

// Branch describes one branch head.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	CommitSHA string `json:"commitSha,omitempty"`
}

// TreeEntry is one entry of the recursive file tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob | tree
	Size int    `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// IssueCounts aggregates issue totals.
type IssueCounts struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// PRCounts aggregates pull-request totals.
type PRCounts struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Merged int `json:"merged"`
}

// RateBudget reports the remaining core-API quota and when it resets.
type RateBudget struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"resetTime"`
}
