package devops

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
)

type commitList struct {
	Value []struct {
		CommitID string `json:"commitId"`
		Comment  string `json:"comment"`
		Author   struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
		RemoteURL string `json:"remoteUrl"`
	} `json:"value"`
}

// Commits lists the commits of the configured repository, optionally
// limited to a branch and a date window. Without a repository no commits
// are returned.
func (c *Client) Commits(ctx context.Context, opts platform.CommitOptions) ([]workitem.Commit, error) {
	if c.cfg.RepoName == "" {
		c.logger.Warn("no repository configured, skipping commits")
		return nil, nil
	}

	query := url.Values{}
	if opts.Branch != "" {
		query.Set("searchCriteria.itemVersion.version", opts.Branch)
	}
	if !opts.From.IsZero() {
		query.Set("searchCriteria.fromDate", opts.From.UTC().Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		query.Set("searchCriteria.toDate", opts.To.UTC().Format(time.RFC3339))
	}

	var resp commitList
	p := "/_apis/git/repositories/" + url.PathEscape(c.cfg.RepoName) + "/commits"
	if _, err := c.get(ctx, "list commits", p, query, &resp); err != nil {
		return nil, err
	}

	commits := make([]workitem.Commit, 0, len(resp.Value))
	for _, v := range resp.Value {
		commits = append(commits, workitem.Commit{
			SHA:     v.CommitID,
			Message: firstLine(v.Comment),
			Author:  v.Author.Name,
			Date:    v.Author.Date.Format(time.RFC3339),
			URL:     v.RemoteURL,
		})
	}
	return commits, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
