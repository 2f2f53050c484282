// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
)

// Client is a fake platform.Client backed by maps. Unknown IDs yield
// errors.ErrItemNotFound. The zero value is a NeedsResolution client with
// no items.
type Client struct {
	Kind platform.SourceKind

	// Items is the upstream item set reachable through ItemByID.
	Items map[int64]*workitem.Item
	// Release lists the IDs ItemsWithDetails returns for NeedsResolution
	// clients, in order. The returned items carry only their identity.
	Release []int64
	// Queries maps saved query IDs to item IDs.
	Queries map[string][]int64
	// Nested is returned by ItemsWithDetails for PreNested clients.
	Nested []*workitem.Node
	// CommitList is returned by Commits.
	CommitList []workitem.Commit
	// Types is returned by AllItemTypes.
	Types []workitem.Type

	// FetchErr makes ItemByID fail for the given IDs.
	FetchErr map[int64]error
	// DetailsErr, CommitsErr and InitErr make the respective calls fail.
	DetailsErr error
	CommitsErr error
	InitErr    error

	mu        sync.Mutex
	fetches   map[int64]int
	inits     int
	closes    int
	commitReq []platform.CommitOptions
}

var _ platform.Client = (*Client)(nil)

// New returns a NeedsResolution client serving items.
func New(items ...workitem.Item) *Client {
	c := &Client{Items: make(map[int64]*workitem.Item, len(items))}
	for i := range items {
		c.Add(items[i])
	}
	return c
}

// Add makes item reachable through ItemByID.
func (c *Client) Add(item workitem.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Items == nil {
		c.Items = make(map[int64]*workitem.Item)
	}
	it := item
	c.Items[item.ID] = &it
}

func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits++
	return c.InitErr
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *Client) SourceKind() platform.SourceKind {
	return c.Kind
}

func (c *Client) ItemByID(ctx context.Context, id int64) (*workitem.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetches == nil {
		c.fetches = make(map[int64]int)
	}
	c.fetches[id]++

	if err, ok := c.FetchErr[id]; ok {
		return nil, err
	}
	item, ok := c.Items[id]
	if !ok {
		return nil, errors.NewPlatformError("fake", "get work item",
			errors.NewNotFoundError("work item", strconv.FormatInt(id, 10))).WithItemID(id)
	}
	cp := *item
	return &cp, nil
}

func (c *Client) ItemsFromQuery(ctx context.Context, queryID string) ([]*workitem.Item, error) {
	ids, ok := c.Queries[queryID]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", queryID, errors.NewNotFoundError("query", queryID))
	}
	items := make([]*workitem.Item, 0, len(ids))
	for _, id := range ids {
		item, err := c.ItemByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) ItemsWithDetails(ctx context.Context, opts platform.FetchOptions) ([]*workitem.Node, error) {
	if c.DetailsErr != nil {
		return nil, c.DetailsErr
	}
	if c.Kind == platform.PreNested {
		return c.Nested, nil
	}
	nodes := make([]*workitem.Node, 0, len(c.Release))
	for _, id := range c.Release {
		nodes = append(nodes, workitem.NewNode(workitem.Item{ID: id}))
	}
	return nodes, nil
}

func (c *Client) AllItemTypes() []workitem.Type {
	return c.Types
}

func (c *Client) ItemType(name string) (workitem.Type, bool) {
	for _, t := range c.Types {
		if t.Name == name {
			return t, true
		}
	}
	return workitem.Type{}, false
}

func (c *Client) Commits(ctx context.Context, opts platform.CommitOptions) ([]workitem.Commit, error) {
	c.mu.Lock()
	c.commitReq = append(c.commitReq, opts)
	c.mu.Unlock()
	if c.CommitsErr != nil {
		return nil, c.CommitsErr
	}
	return c.CommitList, nil
}

// Fetches returns how many times ItemByID was called for id.
func (c *Client) Fetches(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[id]
}

// TotalFetches returns the number of ItemByID calls.
func (c *Client) TotalFetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.fetches {
		n += v
	}
	return n
}

// Lifecycle returns how many times Initialize and Close were called.
func (c *Client) Lifecycle() (inits, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits, c.closes
}

// CommitRequests returns the options Commits was called with.
func (c *Client) CommitRequests() []platform.CommitOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]platform.CommitOptions(nil), c.commitReq...)
}
