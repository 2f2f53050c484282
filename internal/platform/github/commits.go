package github

import (
	"context"
	"strings"
	"time"

	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
	gh "github.com/google/go-github/v66/github"
)

// Commits returns the commits between two tags when both are known,
// otherwise the commits on the branch within the date window. Options left
// empty fall back to the client configuration.
func (c *Client) Commits(ctx context.Context, opts platform.CommitOptions) ([]workitem.Commit, error) {
	if opts.FromTag == "" {
		opts.FromTag = c.cfg.FromTag
	}
	if opts.ToTag == "" {
		opts.ToTag = c.cfg.ToTag
	}
	if opts.Branch == "" {
		opts.Branch = c.cfg.Branch
	}
	if opts.From.IsZero() {
		opts.From = c.cfg.From
	}
	if opts.To.IsZero() {
		opts.To = c.cfg.To
	}

	if opts.FromTag != "" {
		return c.compare(ctx, opts)
	}
	return c.listCommits(ctx, opts)
}

func (c *Client) compare(ctx context.Context, opts platform.CommitOptions) ([]workitem.Commit, error) {
	head := opts.ToTag
	if head == "" {
		head = c.branch(opts.Branch)
	}

	var commits []workitem.Commit
	listOpts := &gh.ListOptions{PerPage: perPage}
	for {
		cmp, resp, err := c.api.Repositories.CompareCommits(ctx, c.owner, c.repo, opts.FromTag, head, listOpts)
		if err != nil {
			return nil, c.wrap("compare commits", 0, resp, err)
		}
		for _, rc := range cmp.Commits {
			commits = append(commits, toCommit(rc))
		}
		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}
	return commits, nil
}

func (c *Client) listCommits(ctx context.Context, opts platform.CommitOptions) ([]workitem.Commit, error) {
	listOpts := &gh.CommitsListOptions{
		SHA:         c.branch(opts.Branch),
		Since:       opts.From,
		Until:       opts.To,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var commits []workitem.Commit
	for {
		rcs, resp, err := c.api.Repositories.ListCommits(ctx, c.owner, c.repo, listOpts)
		if err != nil {
			return nil, c.wrap("list commits", 0, resp, err)
		}
		for _, rc := range rcs {
			commits = append(commits, toCommit(rc))
		}
		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}
	return commits, nil
}

func (c *Client) branch(b string) string {
	if b != "" {
		return b
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultBranch
}

func toCommit(rc *gh.RepositoryCommit) workitem.Commit {
	author := rc.GetCommit().GetAuthor()
	name := author.GetName()
	if login := rc.GetAuthor().GetLogin(); login != "" {
		name = login
	}
	msg := strings.TrimSpace(rc.GetCommit().GetMessage())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	return workitem.Commit{
		SHA:     rc.GetSHA(),
		Message: msg,
		Author:  name,
		Date:    author.GetDate().Format(time.RFC3339),
		URL:     rc.GetHTMLURL(),
	}
}
