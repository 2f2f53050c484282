// Package workitem defines the records that flow through changelog
// aggregation: flat items as returned by a platform, their hierarchical
// form, presentation groups, commits and item type descriptors.
package workitem

import "strings"

// OrphanBucketID is the identity reserved for the synthetic "Other" root that
// collects items whose parent is unknown. Platform items never use it.
const OrphanBucketID int64 = 0

// Reserved type names.
const (
	TypeCommit = "Commit"
	TypeOther  = "Other"
)

// StateNotApplicable is the state given to synthetic items such as commits.
const StateNotApplicable = "N/A"

// CommitIcon is the icon used for the commit group and its items.
const CommitIcon = "https://raw.githubusercontent.com/Hankanman/Changelog-Weaver/refs/heads/main/assets/commit-icon.svg"

// Item is a work item as returned by a platform client. It carries the
// identity of its parent but no materialized children.
type Item struct {
	ID       int64  `json:"id" yaml:"id"`
	Type     string `json:"type" yaml:"type"`
	State    string `json:"state" yaml:"state"`
	Title    string `json:"title" yaml:"title"`
	Icon     string `json:"icon,omitempty" yaml:"icon,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Root     bool   `json:"root" yaml:"root"`
	Orphan   bool   `json:"orphan" yaml:"orphan"`
	ParentID int64  `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	Summary            string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	ReproSteps         string   `json:"repro_steps,omitempty" yaml:"repro_steps,omitempty"`
	AcceptanceCriteria string   `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	Tags               []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Comments           []string `json:"comments,omitempty" yaml:"comments,omitempty"`
	CommentCount       int      `json:"comment_count,omitempty" yaml:"comment_count,omitempty"`
	StoryPoints        *float64 `json:"story_points,omitempty" yaml:"story_points,omitempty"`
	Priority           *int     `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Set only on items derived from commits.
	SHA    string `json:"sha,omitempty" yaml:"sha,omitempty"`
	Author string `json:"author,omitempty" yaml:"author,omitempty"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
}

// HasParent reports whether the item declares a parent.
func (i *Item) HasParent() bool {
	return i.ParentID != 0
}

// IsCommit reports whether the item was derived from a commit.
func (i *Item) IsCommit() bool {
	return strings.EqualFold(i.Type, TypeCommit)
}

// Node is an Item extended with an ordered list of children and a
// back-reference to its parent. Nodes are only built during hierarchy
// reconstruction or by platforms that return pre-nested results.
type Node struct {
	Item
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`

	parent *Node
}

// NewNode wraps a copy of item in a Node with no children.
func NewNode(item Item) *Node {
	return &Node{Item: item}
}

// Parent returns the node this node was attached to, or nil for roots.
func (n *Node) Parent() *Node {
	return n.parent
}

// AddChild appends child to the node's children and links it back.
func (n *Node) AddChild(child *Node) {
	child.parent = n
	n.Children = append(n.Children, child)
}

// ResetChildren detaches all children.
func (n *Node) ResetChildren() {
	for _, c := range n.Children {
		c.parent = nil
	}
	n.Children = nil
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Group is the unit of changelog presentation: all root-level items sharing
// a semantic type.
type Group struct {
	Type  string  `json:"type" yaml:"type"`
	Icon  string  `json:"icon,omitempty" yaml:"icon,omitempty"`
	Items []*Node `json:"items" yaml:"items"`
}

// Commit is a commit fetched from the platform's repository history.
type Commit struct {
	SHA     string `json:"sha" yaml:"sha"`
	Message string `json:"message" yaml:"message"`
	Author  string `json:"author" yaml:"author"`
	Date    string `json:"date" yaml:"date"`
	URL     string `json:"url" yaml:"url"`
}

// DefaultTypeColor is used when a platform reports no color for a type.
const DefaultTypeColor = "#000000"

// Type describes a work item type known to the platform.
type Type struct {
	Name  string `json:"name" yaml:"name"`
	Icon  string `json:"icon" yaml:"icon"`
	Color string `json:"color" yaml:"color"`
}

// FindGroup returns the group with the given type label, if any.
func FindGroup(groups []*Group, typeName string) (*Group, bool) {
	for _, g := range groups {
		if g.Type == typeName {
			return g, true
		}
	}
	return nil, false
}
