package work

import (
	"testing"

	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitID(t *testing.T) {
	shas := []string{
		"",
		"abc123",
		"0000000000000000000000000000000000000000",
		"ffffffffffffffffffffffffffffffffffffffff",
		"9fceb02d0ae598e95dc970b74767f19372d61af8",
	}
	seen := make(map[int64]string)
	for _, sha := range shas {
		id := CommitID(sha)
		assert.Less(t, id, int64(0), "commit identity for %q must be negative", sha)
		assert.Equal(t, id, CommitID(sha), "commit identity for %q must be stable", sha)
		if prev, ok := seen[id]; ok {
			t.Errorf("CommitID(%q) collides with CommitID(%q)", sha, prev)
		}
		seen[id] = sha
	}
}

func TestCommitNode(t *testing.T) {
	c := workitem.Commit{
		SHA:     "abc123",
		Message: "Fix rounding",
		Author:  "Dana",
		Date:    "2024-05-01T10:00:00Z",
		URL:     "https://example.com/commit/abc123",
	}

	n := CommitNode(c)

	assert.Equal(t, CommitID("abc123"), n.ID)
	assert.Equal(t, workitem.TypeCommit, n.Type)
	assert.Equal(t, workitem.StateNotApplicable, n.State)
	assert.Equal(t, "Fix rounding", n.Title)
	assert.Equal(t, workitem.CommitIcon, n.Icon)
	assert.False(t, n.Root)
	assert.True(t, n.Orphan)
	assert.Empty(t, n.Children)
	assert.Equal(t, "abc123", n.SHA)
	assert.Equal(t, "Dana", n.Author)
	assert.True(t, n.IsCommit())
}

func TestCommitGroup(t *testing.T) {
	g := CommitGroup([]workitem.Commit{{SHA: "a", Message: "one"}, {SHA: "b", Message: "two"}})

	assert.Equal(t, workitem.TypeCommit, g.Type)
	assert.Equal(t, workitem.CommitIcon, g.Icon)
	require.Len(t, g.Items, 2)
	assert.Equal(t, "one", g.Items[0].Title)
	assert.Equal(t, "two", g.Items[1].Title)

	assert.True(t, HasCommitGroup([]*workitem.Group{{Type: "Bug"}, g}))
	assert.False(t, HasCommitGroup([]*workitem.Group{{Type: "Bug"}}))
}
