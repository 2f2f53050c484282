package work

import (
	"slices"

	"github.com/changelog-weaver/weaver/internal/workitem"
)

// Hierarchy is the forest built from a closed store.
type Hierarchy struct {
	// Roots are the root items in store order.
	Roots []*workitem.Node
	// Groups hold the roots by type, in first-seen type order.
	Groups []*workitem.Group
}

// BuildHierarchy rebuilds every child list from parent identities and
// groups the roots by type. Children are attached in store order. Non-root
// items whose parent is not stored are left out of the forest.
func BuildHierarchy(store *Store) Hierarchy {
	nodes := store.All()
	for _, n := range nodes {
		n.ResetChildren()
	}

	var roots []*workitem.Node
	for _, n := range nodes {
		if n.Root {
			roots = append(roots, n)
			continue
		}
		if parent, ok := store.Get(n.ParentID); ok && parent != n {
			parent.AddChild(n)
		}
	}

	return Hierarchy{Roots: roots, Groups: GroupRoots(roots)}
}

type typeGroup struct {
	seq   int
	group *workitem.Group
}

// GroupRoots groups roots by type. Each type gets a sequence number the
// first time it is seen and groups are ordered by it; within a group roots
// keep their order. A group's icon is that of its first root.
func GroupRoots(roots []*workitem.Node) []*workitem.Group {
	byType := make(map[string]*typeGroup)
	for _, r := range roots {
		tg, ok := byType[r.Type]
		if !ok {
			tg = &typeGroup{
				seq:   len(byType),
				group: &workitem.Group{Type: r.Type, Icon: r.Icon},
			}
			byType[r.Type] = tg
		}
		tg.group.Items = append(tg.group.Items, r)
	}

	ordered := make([]*typeGroup, 0, len(byType))
	for _, tg := range byType {
		ordered = append(ordered, tg)
	}
	slices.SortFunc(ordered, func(a, b *typeGroup) int { return a.seq - b.seq })

	groups := make([]*workitem.Group, 0, len(ordered))
	for _, tg := range ordered {
		groups = append(groups, tg.group)
	}
	return groups
}

// GroupPreNested turns roots returned by a pre-nested platform into groups:
// one per root, holding the root's children.
func GroupPreNested(roots []*workitem.Node) []*workitem.Group {
	groups := make([]*workitem.Group, 0, len(roots))
	for _, r := range roots {
		groups = append(groups, &workitem.Group{Type: r.Type, Icon: r.Icon, Items: r.Children})
	}
	return groups
}
