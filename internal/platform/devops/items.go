package devops

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"golang.org/x/sync/errgroup"
)

// parentRelation is the link type pointing from a child to its parent.
const parentRelation = "System.LinkTypes.Hierarchy-Reverse"

type workItemResponse struct {
	ID        int64          `json:"id"`
	Fields    workItemFields `json:"fields"`
	Relations []struct {
		Rel string `json:"rel"`
		URL string `json:"url"`
	} `json:"relations"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}

type workItemFields struct {
	Type               string   `json:"System.WorkItemType"`
	Title              string   `json:"System.Title"`
	State              string   `json:"System.State"`
	Parent             int64    `json:"System.Parent"`
	Description        string   `json:"System.Description"`
	Tags               string   `json:"System.Tags"`
	CommentCount       int      `json:"System.CommentCount"`
	ReproSteps         string   `json:"Microsoft.VSTS.TCM.ReproSteps"`
	AcceptanceCriteria string   `json:"Microsoft.VSTS.Common.AcceptanceCriteria"`
	StoryPoints        *float64 `json:"Microsoft.VSTS.Scheduling.StoryPoints"`
	Priority           *int     `json:"Microsoft.VSTS.Common.Priority"`
}

type commentList struct {
	Comments []struct {
		Text string `json:"text"`
	} `json:"comments"`
}

type wiqlResult struct {
	WorkItems []struct {
		ID int64 `json:"id"`
	} `json:"workItems"`
	WorkItemRelations []struct {
		Target *struct {
			ID int64 `json:"id"`
		} `json:"target"`
	} `json:"workItemRelations"`
}

// ItemByID fetches a work item with its relations and comments. A 404 is
// reported as errors.ErrItemNotFound.
func (c *Client) ItemByID(ctx context.Context, id int64) (*workitem.Item, error) {
	var resp workItemResponse
	query := url.Values{"$expand": {"relations"}}
	status, err := c.get(ctx, "get work item", "/_apis/wit/workitems/"+strconv.FormatInt(id, 10), query, &resp)
	if status == http.StatusNotFound {
		return nil, errors.NewPlatformError(PlatformName, "get work item",
			errors.NewNotFoundError("work item", strconv.FormatInt(id, 10))).WithItemID(id).WithStatus(status)
	}
	if err != nil {
		var perr *errors.PlatformError
		if errors.As(err, &perr) {
			perr.WithItemID(id)
		}
		return nil, err
	}

	item := c.toItem(&resp)
	if resp.Fields.CommentCount > 0 {
		comments, err := c.comments(ctx, id)
		if err != nil {
			return nil, err
		}
		item.Comments = comments
	}
	return item, nil
}

func (c *Client) comments(ctx context.Context, id int64) ([]string, error) {
	var resp commentList
	query := url.Values{"api-version": {"7.0-preview.3"}}
	if _, err := c.get(ctx, "get comments", "/_apis/wit/workItems/"+strconv.FormatInt(id, 10)+"/comments", query, &resp); err != nil {
		var perr *errors.PlatformError
		if errors.As(err, &perr) {
			perr.WithItemID(id)
		}
		return nil, err
	}
	out := make([]string, 0, len(resp.Comments))
	for _, cm := range resp.Comments {
		if text := stripHTML(cm.Text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// ItemsFromQuery runs a saved query and fetches every result.
func (c *Client) ItemsFromQuery(ctx context.Context, queryID string) ([]*workitem.Item, error) {
	ids, err := c.queryIDs(ctx, queryID)
	if err != nil {
		return nil, err
	}

	items := make([]*workitem.Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			item, err := c.ItemByID(gctx, id)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// ItemsWithDetails runs the release query and returns one identity-only
// node per result. The engine fetches the details and parents itself.
func (c *Client) ItemsWithDetails(ctx context.Context, opts platform.FetchOptions) ([]*workitem.Node, error) {
	queryID := opts.QueryID
	if queryID == "" {
		queryID = c.cfg.Query
	}
	if queryID == "" {
		return nil, errors.NewConfigError("a saved query is required for Azure DevOps", errors.ErrInvalidInput).
			WithKey("project.query")
	}

	ids, err := c.queryIDs(ctx, queryID)
	if err != nil {
		return nil, err
	}
	nodes := make([]*workitem.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, workitem.NewNode(workitem.Item{ID: id}))
	}
	c.logger.Info("query returned work items", "query", queryID, "count", len(nodes))
	return nodes, nil
}

// queryIDs runs a saved WIQL query. Flat queries list workItems; tree and
// one-hop queries list workItemRelations, whose targets are deduplicated in
// order.
func (c *Client) queryIDs(ctx context.Context, queryID string) ([]int64, error) {
	var resp wiqlResult
	if _, err := c.get(ctx, "run query", "/_apis/wit/wiql/"+url.PathEscape(queryID), nil, &resp); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, wi := range resp.WorkItems {
		add(wi.ID)
	}
	for _, rel := range resp.WorkItemRelations {
		if rel.Target != nil {
			add(rel.Target.ID)
		}
	}
	return ids, nil
}

func (c *Client) toItem(resp *workItemResponse) *workitem.Item {
	f := resp.Fields
	parent := f.Parent
	if parent == 0 {
		parent = parentFromRelations(resp)
	}

	root := c.cfg.RootType != "" && strings.EqualFold(f.Type, c.cfg.RootType)
	item := &workitem.Item{
		ID:                 resp.ID,
		Type:               f.Type,
		State:              f.State,
		Title:              f.Title,
		URL:                resp.Links.HTML.Href,
		Root:               root,
		Orphan:             parent == 0 && !root,
		ParentID:           parent,
		Description:        stripHTML(f.Description),
		ReproSteps:         stripHTML(f.ReproSteps),
		AcceptanceCriteria: stripHTML(f.AcceptanceCriteria),
		Tags:               splitTags(f.Tags),
		CommentCount:       f.CommentCount,
		StoryPoints:        f.StoryPoints,
		Priority:           f.Priority,
	}
	if t, ok := c.ItemType(f.Type); ok {
		item.Icon = t.Icon
	}
	return item
}

func parentFromRelations(resp *workItemResponse) int64 {
	for _, rel := range resp.Relations {
		if rel.Rel != parentRelation {
			continue
		}
		id, err := strconv.ParseInt(path.Base(rel.URL), 10, 64)
		if err == nil {
			return id
		}
	}
	return 0
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ";") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// stripHTML reduces the rich-text fields Azure DevOps stores as HTML to
// plain text for prompts.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
