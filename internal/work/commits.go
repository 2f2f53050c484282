package work

import (
	"github.com/cespare/xxhash/v2"
	"github.com/changelog-weaver/weaver/internal/workitem"
)

// CommitID derives a stable identity from a commit hash. Commit identities
// are negative so they never meet platform identities or the orphan
// bucket; two hashes sharing a 63-bit xxhash prefix would collide, which is
// accepted.
func CommitID(sha string) int64 {
	return -int64(xxhash.Sum64String(sha)>>1) - 1
}

// CommitNode adapts a commit into a leaf item.
func CommitNode(c workitem.Commit) *workitem.Node {
	return workitem.NewNode(workitem.Item{
		ID:     CommitID(c.SHA),
		Type:   workitem.TypeCommit,
		State:  workitem.StateNotApplicable,
		Title:  c.Message,
		Icon:   workitem.CommitIcon,
		URL:    c.URL,
		Root:   false,
		Orphan: true,
		SHA:    c.SHA,
		Author: c.Author,
		Date:   c.Date,
	})
}

// CommitGroup adapts commits into the "Commit" group, keeping their order.
func CommitGroup(commits []workitem.Commit) *workitem.Group {
	g := &workitem.Group{
		Type:  workitem.TypeCommit,
		Icon:  workitem.CommitIcon,
		Items: make([]*workitem.Node, 0, len(commits)),
	}
	for _, c := range commits {
		g.Items = append(g.Items, CommitNode(c))
	}
	return g
}

// HasCommitGroup reports whether groups already hold a "Commit" group.
func HasCommitGroup(groups []*workitem.Group) bool {
	_, ok := workitem.FindGroup(groups, workitem.TypeCommit)
	return ok
}
