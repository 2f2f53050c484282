package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
	gh "github.com/google/go-github/v66/github"
)

// ItemByID fetches an issue or pull request by number.
func (c *Client) ItemByID(ctx context.Context, id int64) (*workitem.Item, error) {
	issue, resp, err := c.api.Issues.Get(ctx, c.owner, c.repo, int(id))
	if err != nil {
		return nil, c.wrap("get issue", id, resp, err)
	}
	return c.issueItem(issue), nil
}

// ItemsFromQuery runs an issue search scoped to the repository. The query
// uses GitHub search syntax, e.g. "is:closed label:bug milestone:v1.2".
func (c *Client) ItemsFromQuery(ctx context.Context, queryID string) ([]*workitem.Item, error) {
	q := fmt.Sprintf("repo:%s/%s %s", c.owner, c.repo, strings.TrimSpace(queryID))
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: perPage}}

	var items []*workitem.Item
	for {
		result, resp, err := c.api.Search.Issues(ctx, q, opts)
		if err != nil {
			return nil, c.wrap("search issues", 0, resp, err)
		}
		for _, issue := range result.Issues {
			items = append(items, c.issueItem(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

// ItemsWithDetails returns one container node per changelog type, in the
// order types were first seen. Containers are presentation groupings, not
// work items: they carry no identity.
func (c *Client) ItemsWithDetails(ctx context.Context, opts platform.FetchOptions) ([]*workitem.Node, error) {
	from, to := opts.From, opts.To
	if from.IsZero() {
		from = c.cfg.From
	}
	if to.IsZero() {
		to = c.cfg.To
	}

	items, err := c.closedIssues(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if c.cfg.IncludePullRequests {
		prs, err := c.mergedPullRequests(ctx, from, to)
		if err != nil {
			return nil, err
		}
		items = append(items, prs...)
	}

	var containers []*workitem.Node
	byType := make(map[string]*workitem.Node)
	for _, item := range items {
		container, ok := byType[item.Type]
		if !ok {
			container = workitem.NewNode(workitem.Item{
				Type:  item.Type,
				Title: item.Type,
				State: workitem.StateNotApplicable,
				Icon:  iconFor(item.Type),
				Root:  true,
			})
			byType[item.Type] = container
			containers = append(containers, container)
		}
		container.AddChild(workitem.NewNode(*item))
	}

	c.logger.Info("fetched repository items", "items", len(items), "types", len(containers))
	return containers, nil
}

func (c *Client) closedIssues(ctx context.Context, from, to time.Time) ([]*workitem.Item, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "asc",
		Since:       from,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var items []*workitem.Item
	for {
		issues, resp, err := c.api.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, c.wrap("list issues", 0, resp, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() || !inWindow(issue.GetClosedAt().Time, from, to) {
				continue
			}
			items = append(items, c.issueItem(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

func (c *Client) mergedPullRequests(ctx context.Context, from, to time.Time) ([]*workitem.Item, error) {
	opts := &gh.PullRequestListOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var items []*workitem.Item
	for {
		prs, resp, err := c.api.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, c.wrap("list pull requests", 0, resp, err)
		}
		for _, pr := range prs {
			if pr.MergedAt == nil || !inWindow(pr.GetMergedAt().Time, from, to) {
				continue
			}
			items = append(items, c.pullRequestItem(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

func (c *Client) issueItem(issue *gh.Issue) *workitem.Item {
	fallback := TypeIssue
	if issue.IsPullRequest() {
		fallback = TypePullRequest
	}
	typ := c.classify(issue.Labels, fallback)
	return &workitem.Item{
		ID:           int64(issue.GetNumber()),
		Type:         typ,
		State:        issue.GetState(),
		Title:        issue.GetTitle(),
		Icon:         iconFor(typ),
		URL:          issue.GetHTMLURL(),
		Description:  issue.GetBody(),
		Tags:         labelNames(issue.Labels),
		CommentCount: issue.GetComments(),
	}
}

func (c *Client) pullRequestItem(pr *gh.PullRequest) *workitem.Item {
	typ := c.classify(pr.Labels, TypePullRequest)
	return &workitem.Item{
		ID:           int64(pr.GetNumber()),
		Type:         typ,
		State:        "merged",
		Title:        pr.GetTitle(),
		Icon:         iconFor(typ),
		URL:          pr.GetHTMLURL(),
		Description:  pr.GetBody(),
		Tags:         labelNames(pr.Labels),
		CommentCount: pr.GetComments(),
	}
}

func labelNames(labels []*gh.Label) []string {
	var names []string
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
