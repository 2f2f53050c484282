package work

import "github.com/changelog-weaver/weaver/internal/workitem"

// BuildOrphanBucket gathers every stored non-root item flagged orphan or
// without a parent, under a synthetic "Other" root with the
// reserved identity. The bucket is inserted into the store and each
// orphan's parent is set to it. It returns nil when there is nothing to
// collect. Must not run concurrently with store writers.
func BuildOrphanBucket(store *Store, icon string) *workitem.Node {
	var orphans []*workitem.Node
	for _, n := range store.All() {
		if n.ID == workitem.OrphanBucketID || n.Root {
			continue
		}
		if n.Orphan || n.ParentID == 0 {
			orphans = append(orphans, n)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	bucket := store.AddNode(workitem.NewNode(workitem.Item{
		ID:     workitem.OrphanBucketID,
		Type:   workitem.TypeOther,
		Title:  workitem.TypeOther,
		State:  workitem.TypeOther,
		Icon:   icon,
		Root:   true,
		Orphan: false,
	}))
	bucket.ResetChildren()
	for _, n := range orphans {
		n.Orphan = true
		n.ParentID = workitem.OrphanBucketID
		bucket.AddChild(n)
	}
	return bucket
}
