package work

import (
	"context"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/metrics"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"golang.org/x/sync/errgroup"
)

// Default resolver limits.
const (
	DefaultBatchSize = 10
	DefaultMaxWaves  = 25
)

// FetchFunc fetches one item. The resolver inserts the result into the store.
type FetchFunc func(ctx context.Context, id int64) (*workitem.Node, error)

// ResolveResult describes a completed parent resolution.
type ResolveResult struct {
	// Waves is the number of frontier scans that dispatched fetches.
	Waves int
	// Fetched is the number of parents added to the store.
	Fetched int
	// Unresolvable lists parent identities that could not be fetched, in
	// discovery order.
	Unresolvable []int64
	// Orphaned is the number of items flagged orphan because their parent
	// is unresolvable.
	Orphaned int
	// CyclesBroken is the number of parent links cut to keep the graph acyclic.
	CyclesBroken int
}

// Resolver closes the store under the parent relation. Each wave scans the
// store for parent identities that are referenced but missing (the
// frontier), fetches them in batches of at most BatchSize concurrent calls,
// and scans again, until the frontier is empty or MaxWaves is reached.
//
// A fetch reporting errors.ErrItemNotFound marks the parent unresolvable;
// items referencing an unresolvable parent are flagged orphan. Any other
// fetch error aborts resolution.
type Resolver struct {
	store     *Store
	fetch     FetchFunc
	batchSize int
	maxWaves  int
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewResolver creates a resolver. Non-positive limits use the defaults.
func NewResolver(store *Store, fetch FetchFunc, batchSize, maxWaves int, logger *logging.Logger, m *metrics.Metrics) *Resolver {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if maxWaves < 1 {
		maxWaves = DefaultMaxWaves
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Resolver{
		store:     store,
		fetch:     fetch,
		batchSize: batchSize,
		maxWaves:  maxWaves,
		logger:    logger,
		metrics:   m,
	}
}

// Resolve runs waves until the store is closed, then flags items whose
// parent is unresolvable and cuts cycles.
func (r *Resolver) Resolve(ctx context.Context) (ResolveResult, error) {
	var res ResolveResult
	unresolvable := make(map[int64]bool)
	before := r.store.Len()

	for wave := 1; ; wave++ {
		frontier := r.frontier(unresolvable)
		if len(frontier) == 0 {
			break
		}
		if wave > r.maxWaves {
			r.logger.Warn("parent resolution wave limit reached",
				"max_waves", r.maxWaves, "missing", len(frontier))
			for _, id := range frontier {
				unresolvable[id] = true
				res.Unresolvable = append(res.Unresolvable, id)
			}
			break
		}

		res.Waves++
		r.metrics.ParentWaves.Inc()
		r.logger.Debug("resolving parents", "wave", wave, "frontier", len(frontier))

		for start := 0; start < len(frontier); start += r.batchSize {
			batch := frontier[start:min(start+r.batchSize, len(frontier))]
			missing, err := r.fetchBatch(ctx, batch)
			if err != nil {
				return res, errors.NewResolutionError("parent resolution", err).WithWave(wave)
			}
			for _, id := range missing {
				unresolvable[id] = true
				res.Unresolvable = append(res.Unresolvable, id)
			}
		}
	}

	res.Fetched = r.store.Len() - before
	res.Orphaned = r.orphanUnresolved()
	res.CyclesBroken = r.breakCycles()

	r.metrics.UnresolvableParents.Add(float64(len(res.Unresolvable)))
	r.metrics.CyclesBroken.Add(float64(res.CyclesBroken))
	return res, nil
}

// frontier returns the parent identities referenced by stored items but
// absent from the store, each once, in store order.
func (r *Resolver) frontier(unresolvable map[int64]bool) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, n := range r.store.All() {
		pid := n.ParentID
		if pid == 0 || seen[pid] || unresolvable[pid] || r.store.Contains(pid) {
			continue
		}
		seen[pid] = true
		ids = append(ids, pid)
	}
	return ids
}

// fetchBatch fetches ids concurrently, stores the results in batch order
// and returns the ids reported missing. The first other error cancels the
// rest of the batch and nothing is stored.
func (r *Resolver) fetchBatch(ctx context.Context, ids []int64) ([]int64, error) {
	nodes := make([]*workitem.Node, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			n, err := r.fetch(gctx, id)
			if errors.IsNotFound(err) {
				r.logger.Warn("parent not found", "item_id", id, "error", err.Error())
				return nil
			}
			nodes[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []int64
	for i, n := range nodes {
		if n == nil {
			missing = append(missing, ids[i])
			continue
		}
		r.store.AddNode(n)
	}
	return missing, nil
}

// orphanUnresolved flags every non-root item whose parent is not stored.
func (r *Resolver) orphanUnresolved() int {
	count := 0
	for _, n := range r.store.All() {
		if n.Root || n.ParentID == 0 || r.store.Contains(n.ParentID) {
			continue
		}
		if !n.Orphan {
			n.Orphan = true
			count++
		}
	}
	return count
}

// breakCycles walks each item's ancestor chain with a visited set. When a
// chain returns to an item already on it, the item whose parent closes the
// loop is flagged orphan.
func (r *Resolver) breakCycles() int {
	cut := 0
	acyclic := make(map[int64]bool)

	for _, start := range r.store.All() {
		visited := make(map[int64]bool)
		var path []int64
		cur := start
		for {
			if acyclic[cur.ID] || cur.Root || cur.Orphan || cur.ParentID == 0 {
				break
			}
			visited[cur.ID] = true
			path = append(path, cur.ID)

			parent, ok := r.store.Get(cur.ParentID)
			if !ok {
				break
			}
			if visited[parent.ID] {
				r.logger.Warn("parent cycle detected", "item_id", cur.ID, "parent_id", parent.ID)
				cur.Orphan = true
				cut++
				break
			}
			cur = parent
		}
		for _, id := range path {
			acyclic[id] = true
		}
	}
	return cut
}
