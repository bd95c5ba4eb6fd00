package github

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gh "github.com/google/go-github/v60/github"
)

const (
	maxContributors = 30
	maxTreeEntries  = 1000
	maxBranches     = 100
)

// FetchSnapshot retrieves a complete metadata snapshot for owner/name.
// The core repository request must succeed or the whole call errors.
// Secondary requests run concurrently and are allowed to fail independently;
// a failed secondary fetch leaves its field absent.
func (c *Client) FetchSnapshot(ctx context.Context, owner, name string) (*Snapshot, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, apiError("repository fetch", resp, err)
	}

	snap := &Snapshot{
		Owner:       owner,
		Name:        name,
		Description: repo.Description,
		Homepage:    repo.Homepage,
		Language:    repo.Language,
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		Watchers:    repo.GetSubscribersCount(),
		OpenIssues:  repo.GetOpenIssuesCount(),
		SizeKB:      repo.GetSize(),
		Topics:      repo.Topics,
		FetchedAt:   time.Now().UTC(),
	}

	// Secondary fetches write disjoint snapshot fields and are joined below.
	var wg sync.WaitGroup
	run := func(what string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				c.logger.Debug().Err(err).
					Str("repo", owner+"/"+name).
					Str("fetch", what).
					Msg("secondary fetch failed, field left absent")
			}
		}()
	}

	run("languages", func(ctx context.Context) error {
		langs, resp, err := c.gh.Repositories.ListLanguages(ctx, owner, name)
		if err != nil {
			return apiError("languages fetch", resp, err)
		}
		stats := make([]LanguageStat, 0, len(langs))
		for lang, bytes := range langs {
			stats = append(stats, LanguageStat{Name: lang, Bytes: bytes})
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Bytes != stats[j].Bytes {
				return stats[i].Bytes > stats[j].Bytes
			}
			return stats[i].Name < stats[j].Name
		})
		snap.Languages = stats
		return nil
	})

	run("contributors", func(ctx context.Context) error {
		list, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, &gh.ListContributorsOptions{
			ListOptions: gh.ListOptions{PerPage: maxContributors},
		})
		if err != nil {
			return apiError("contributors fetch", resp, err)
		}
		contributors := make([]Contributor, 0, len(list))
		commits := 0
		for _, contrib := range list {
			contributors = append(contributors, Contributor{
				Login:         contrib.GetLogin(),
				Contributions: contrib.GetContributions(),
				ProfileURL:    contrib.GetHTMLURL(),
				AvatarURL:     contrib.GetAvatarURL(),
			})
			commits += contrib.GetContributions()
		}
		snap.Contributors = contributors
		snap.CommitCount = commits
		return nil
	})

	run("latest release", func(ctx context.Context) error {
		rel, resp, err := c.gh.Repositories.GetLatestRelease(ctx, owner, name)
		if err != nil {
			// Repos without releases 404 here; that is an absent field.
			return apiError("release fetch", resp, err)
		}
		downloads := 0
		for _, asset := range rel.Assets {
			downloads += asset.GetDownloadCount()
		}
		release := &Release{
			TagName:     rel.GetTagName(),
			Name:        rel.GetName(),
			Description: rel.GetBody(),
			Downloads:   downloads,
		}
		if ts := rel.PublishedAt; ts != nil {
			published := ts.Time
			release.PublishedAt = &published
		}
		snap.LatestRelease = release
		return nil
	})

	run("branches", func(ctx context.Context) error {
		list, resp, err := c.gh.Repositories.ListBranches(ctx, owner, name, &gh.BranchListOptions{
			ListOptions: gh.ListOptions{PerPage: maxBranches},
		})
		if err != nil {
			return apiError("branches fetch", resp, err)
		}
		branches := make([]Branch, 0, len(list))
		for _, b := range list {
			branches = append(branches, Branch{
				Name:      b.GetName(),
				Protected: b.GetProtected(),
				CommitSHA: b.GetCommit().GetSHA(),
			})
		}
		snap.Branches = branches
		return nil
	})

	run("tree", func(ctx context.Context) error {
		ref := repo.GetDefaultBranch()
		if ref == "" {
			ref = "main"
		}
		tree, resp, err := c.gh.Git.GetTree(ctx, owner, name, ref, true)
		if err != nil {
			return apiError("tree fetch", resp, err)
		}
		entries := make([]TreeEntry, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			if len(entries) >= maxTreeEntries {
				break
			}
			entries = append(entries, TreeEntry{
				Path: e.GetPath(),
				Type: e.GetType(),
				Size: e.GetSize(),
				URL:  e.GetURL(),
			})
		}
		snap.Tree = entries
		return nil
	})

	run("issue counts", func(ctx context.Context) error {
		total, err := c.searchCount(ctx, fmt.Sprintf("repo:%s/%s type:issue", owner, name))
		if err != nil {
			return err
		}
		open, err := c.searchCount(ctx, fmt.Sprintf("repo:%s/%s type:issue state:open", owner, name))
		if err != nil {
			return err
		}
		snap.Issues = IssueCounts{Total: total, Open: open, Closed: total - open}
		return nil
	})

	run("pull request counts", func(ctx context.Context) error {
		total, err := c.searchCount(ctx, fmt.Sprintf("repo:%s/%s type:pr", owner, name))
		if err != nil {
			return err
		}
		open, err := c.searchCount(ctx, fmt.Sprintf("repo:%s/%s type:pr state:open", owner, name))
		if err != nil {
			return err
		}
		merged, err := c.searchCount(ctx, fmt.Sprintf("repo:%s/%s type:pr is:merged", owner, name))
		if err != nil {
			return err
		}
		snap.PullRequests = PRCounts{Total: total, Open: open, Merged: merged}
		return nil
	})

	wg.Wait()
	return snap, nil
}

// searchCount runs a search query and returns only its total count.
func (c *Client) searchCount(ctx context.Context, query string) (int, error) {
	result, resp, err := c.gh.Search.Issues(ctx, query, &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, apiError("search", resp, err)
	}
	return result.GetTotal(), nil
}
