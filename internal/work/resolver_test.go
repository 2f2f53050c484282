package work

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream serves items by identity and counts fetches.
type upstream struct {
	mu      sync.Mutex
	items   map[int64]workitem.Item
	fail    map[int64]error
	calls   map[int64]int
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func newUpstream(items ...workitem.Item) *upstream {
	u := &upstream{items: make(map[int64]workitem.Item), fail: make(map[int64]error), calls: make(map[int64]int)}
	for _, it := range items {
		u.items[it.ID] = it
	}
	return u
}

func (u *upstream) fetch(ctx context.Context, id int64) (*workitem.Node, error) {
	cur := u.active.Add(1)
	defer u.active.Add(-1)
	for {
		peak := u.maxSeen.Load()
		if cur <= peak || u.maxSeen.CompareAndSwap(peak, cur) {
			break
		}
	}
	if u.delay > 0 {
		time.Sleep(u.delay)
	}

	u.mu.Lock()
	u.calls[id]++
	err := u.fail[id]
	item, ok := u.items[id]
	u.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFoundError("work item", strconv.FormatInt(id, 10))
	}
	return workitem.NewNode(item), nil
}

func (u *upstream) callCount(id int64) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[id]
}

func seed(store *Store, items ...workitem.Item) {
	for i := range items {
		store.Add(&items[i])
	}
}

// assertClosed checks that every stored non-zero parent is itself stored.
func assertClosed(t *testing.T, store *Store) {
	t.Helper()
	for _, n := range store.All() {
		if n.ParentID != 0 && !n.Orphan {
			assert.True(t, store.Contains(n.ParentID), "item %d references missing parent %d", n.ID, n.ParentID)
		}
	}
}

func TestResolver_NoMissingParents(t *testing.T) {
	store := NewStore()
	seed(store,
		workitem.Item{ID: 1, Root: true},
		workitem.Item{ID: 2, ParentID: 1},
		workitem.Item{ID: 3, ParentID: 1},
		workitem.Item{ID: 4, ParentID: 2},
	)
	up := newUpstream()

	res, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Waves)
	assert.Zero(t, res.Fetched)
	assert.Equal(t, 4, store.Len())
}

func TestResolver_DeepChainNeedsSeveralWaves(t *testing.T) {
	store := NewStore()
	seed(store, workitem.Item{ID: 4, ParentID: 3})
	up := newUpstream(
		workitem.Item{ID: 3, ParentID: 2},
		workitem.Item{ID: 2, ParentID: 1},
		workitem.Item{ID: 1, Root: true},
	)

	res, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Waves)
	assert.Equal(t, 3, res.Fetched)
	assert.Empty(t, res.Unresolvable)
	assertClosed(t, store)
	for _, id := range []int64{1, 2, 3} {
		assert.Equal(t, 1, up.callCount(id), "parent %d fetched more than once", id)
	}
}

func TestResolver_SharedParentFetchedOnce(t *testing.T) {
	store := NewStore()
	seed(store,
		workitem.Item{ID: 10, ParentID: 1},
		workitem.Item{ID: 11, ParentID: 1},
		workitem.Item{ID: 12, ParentID: 1},
	)
	up := newUpstream(workitem.Item{ID: 1, Root: true})

	_, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, up.callCount(1))
}

func TestResolver_BatchSizeCapsConcurrency(t *testing.T) {
	store := NewStore()
	var parents []workitem.Item
	for i := range 25 {
		parentID := int64(100 + i)
		seed(store, workitem.Item{ID: int64(i + 1), ParentID: parentID})
		parents = append(parents, workitem.Item{ID: parentID, Root: true})
	}
	up := newUpstream(parents...)
	up.delay = 5 * time.Millisecond

	res, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Waves)
	assert.Equal(t, 25, res.Fetched)
	assert.LessOrEqual(t, int(up.maxSeen.Load()), 10)
	assertClosed(t, store)
}

func TestResolver_UnresolvableParentBecomesOrphan(t *testing.T) {
	store := NewStore()
	seed(store,
		workitem.Item{ID: 7, ParentID: 3},
		workitem.Item{ID: 8, ParentID: 3},
		workitem.Item{ID: 9, ParentID: 3, Root: true},
	)
	up := newUpstream()

	res, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, res.Unresolvable)
	assert.Equal(t, 2, res.Orphaned)
	assert.Equal(t, 1, up.callCount(3), "unresolvable parents are not retried")

	for _, id := range []int64{7, 8} {
		n, _ := store.Get(id)
		assert.True(t, n.Orphan, "item %d should be orphaned", id)
	}
	root, _ := store.Get(9)
	assert.False(t, root.Orphan, "roots are never orphaned")
}

func TestResolver_WaveLimit(t *testing.T) {
	store := NewStore()
	seed(store, workitem.Item{ID: 4, ParentID: 3})
	up := newUpstream(
		workitem.Item{ID: 3, ParentID: 2},
		workitem.Item{ID: 2, ParentID: 1},
		workitem.Item{ID: 1, Root: true},
	)

	res, err := NewResolver(store, up.fetch, 10, 1, nil, nil).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Waves)
	assert.Equal(t, []int64{2}, res.Unresolvable)
	three, _ := store.Get(3)
	assert.True(t, three.Orphan)
	assert.Zero(t, up.callCount(2))
}

func TestResolver_FailFast(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore()
	seed(store,
		workitem.Item{ID: 10, ParentID: 1},
		workitem.Item{ID: 11, ParentID: 2},
	)
	up := newUpstream(workitem.Item{ID: 1, Root: true}, workitem.Item{ID: 2, Root: true})
	up.fail[2] = boom

	_, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var rerr *errors.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "parent resolution", rerr.Phase)
	assert.Equal(t, 1, rerr.Wave)
}

func TestResolver_BreaksCycles(t *testing.T) {
	store := NewStore()
	seed(store,
		workitem.Item{ID: 1, ParentID: 2},
		workitem.Item{ID: 2, ParentID: 3},
		workitem.Item{ID: 3, ParentID: 1},
		workitem.Item{ID: 4, ParentID: 1},
	)
	up := newUpstream()

	res, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.CyclesBroken)

	three, _ := store.Get(3)
	assert.True(t, three.Orphan)

	BuildOrphanBucket(store, "")
	h := BuildHierarchy(store)
	assertForest(t, store, h)
}

func TestResolver_StoresInFrontierOrder(t *testing.T) {
	store := NewStore()
	seed(store,
		workitem.Item{ID: 10, ParentID: 3},
		workitem.Item{ID: 11, ParentID: 2},
		workitem.Item{ID: 12, ParentID: 1},
	)
	up := newUpstream(
		workitem.Item{ID: 1, Root: true},
		workitem.Item{ID: 2, Root: true},
		workitem.Item{ID: 3, Root: true},
	)

	_, err := NewResolver(store, up.fetch, 10, 25, nil, nil).Resolve(context.Background())
	require.NoError(t, err)

	var ids []int64
	for _, n := range store.All() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{10, 11, 12, 3, 2, 1}, ids)
}
