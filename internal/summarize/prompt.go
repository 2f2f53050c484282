package summarize

import (
	"fmt"
	"strings"

	"github.com/changelog-weaver/weaver/internal/workitem"
)

// ItemPrompt builds the prompt for one work item:
// "<prefix>: <title> item type: <type> <description> <comments>".
func ItemPrompt(prefix string, item *workitem.Item) string {
	return fmt.Sprintf("%s: %s item type: %s %s %s",
		prefix, item.Title, item.Type, item.Description, strings.Join(item.Comments, " "))
}

// ChangelogPrompt builds the prompt for the whole release: the summary
// prompt and software brief, the release items (with their summaries where
// present), optional notes and a request for brevity.
func ChangelogPrompt(summaryPrompt, brief, notes string, groups []*workitem.Group) string {
	var sb strings.Builder
	sb.WriteString(summaryPrompt)
	sb.WriteString(brief)
	sb.WriteString("\nThe following is a summary of the work items completed in this release:\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "%s:\n", g.Type)
		for _, n := range g.Items {
			n.Walk(func(node *workitem.Node) bool {
				writeLine(&sb, node, depth(node, n))
				return true
			})
		}
	}
	if notes != "" {
		sb.WriteString("\n")
		sb.WriteString(notes)
	}
	sb.WriteString("\nYour response should be as concise as possible")
	return sb.String()
}

func writeLine(sb *strings.Builder, n *workitem.Node, level int) {
	sb.WriteString(strings.Repeat("  ", level))
	sb.WriteString("- ")
	sb.WriteString(n.Title)
	if n.Summary != "" {
		sb.WriteString(": ")
		sb.WriteString(n.Summary)
	}
	sb.WriteString("\n")
}

// depth is the distance from n up to top.
func depth(n, top *workitem.Node) int {
	d := 0
	for cur := n; cur != nil && cur != top; cur = cur.Parent() {
		d++
	}
	return d
}
