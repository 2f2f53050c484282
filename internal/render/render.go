// Package render turns ordered changelog groups into Markdown and writes
// the result to disk.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/natefinch/atomic"
)

// DefaultTemplate is the built-in changelog layout.
const DefaultTemplate = `# {{ .Title }}
{{- if .Summary }}

## Summary

{{ .Summary }}
{{- end }}
{{- range .Sections }}

## {{ if .Icon }}<img src="{{ .Icon }}" alt="{{ .Type }}" width="16" height="16"> {{ end }}{{ .Type }}
{{ range .Entries }}
{{ indent .Depth }}- {{ .Label }}
{{- if .Summary }}
{{ indent .Depth }}  {{ .Summary }}
{{- end }}
{{- end }}
{{- end }}
`

// Data contains all data available to changelog templates
type Data struct {
	// Title is "<name> v<version>", or the name alone without a version
	Title   string
	Name    string
	Version string
	// Summary is the release summary (empty when disabled)
	Summary  string
	Sections []Section
}

// Section is one group of the changelog
type Section struct {
	Type    string
	Icon    string
	Entries []Entry
}

// Entry is one item line. Depth is its nesting level inside the section.
type Entry struct {
	ID      int64
	Type    string
	Title   string
	State   string
	URL     string
	Summary string
	SHA     string
	Author  string
	Depth   int
}

// Label formats the entry as a Markdown list label: a linked reference
// followed by the title and, for work items, the state.
func (e Entry) Label() string {
	if e.SHA != "" {
		ref := "`" + shortSHA(e.SHA) + "`"
		if e.URL != "" {
			ref = "[" + ref + "](" + e.URL + ")"
		}
		label := ref + " " + e.Title
		if e.Author != "" {
			label += " (" + e.Author + ")"
		}
		return label
	}

	ref := fmt.Sprintf("#%d", e.ID)
	if e.URL != "" {
		ref = "[" + ref + "](" + e.URL + ")"
	}
	label := ref + " " + e.Title
	if e.State != "" && e.State != workitem.StateNotApplicable {
		label += " _(" + e.State + ")_"
	}
	return label
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// NewData builds template data from ordered groups. The orphan bucket is
// not listed itself; its children appear at the top of its section. Groups
// without entries are omitted.
func NewData(name, version, summary string, groups []*workitem.Group) Data {
	d := Data{
		Title:   title(name, version),
		Name:    name,
		Version: version,
		Summary: strings.TrimSpace(summary),
	}
	for _, g := range groups {
		s := Section{Type: g.Type, Icon: g.Icon}
		for _, n := range g.Items {
			if n.ID == workitem.OrphanBucketID && !n.IsCommit() {
				for _, c := range n.Children {
					s.Entries = appendEntries(s.Entries, c, 0)
				}
				continue
			}
			s.Entries = appendEntries(s.Entries, n, 0)
		}
		if len(s.Entries) == 0 {
			continue
		}
		d.Sections = append(d.Sections, s)
	}
	return d
}

func appendEntries(entries []Entry, n *workitem.Node, depth int) []Entry {
	entries = append(entries, Entry{
		ID:      n.ID,
		Type:    n.Type,
		Title:   n.Title,
		State:   n.State,
		URL:     n.URL,
		Summary: strings.TrimSpace(n.Summary),
		SHA:     n.SHA,
		Author:  n.Author,
		Depth:   depth,
	})
	for _, c := range n.Children {
		entries = appendEntries(entries, c, depth+1)
	}
	return entries
}

func title(name, version string) string {
	if name == "" {
		name = "Changelog"
	}
	if version == "" {
		return name
	}
	return name + " v" + version
}

var funcs = template.FuncMap{
	"indent": func(depth int) string { return strings.Repeat("  ", depth) },
}

// Markdown renders data with tmplStr, or DefaultTemplate when it is empty.
func Markdown(tmplStr string, data Data) (string, error) {
	if tmplStr == "" {
		tmplStr = DefaultTemplate
	}
	tmpl, err := template.New("changelog").Funcs(funcs).Parse(tmplStr)
	if err != nil {
		return "", errors.NewValidationError("invalid changelog template").WithField("changelog.template").WithCause(err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render changelog")
	}
	return buf.String(), nil
}

// LoadTemplate reads a custom template file. An empty path yields the
// built-in template.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewConfigError("cannot read changelog template", err).WithKey("changelog.template")
	}
	return string(b), nil
}

// WriteFile atomically replaces path with content, creating parent
// directories as needed.
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create output folder %s", dir)
		}
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return errors.Wrapf(err, "write changelog %s", path)
	}
	return nil
}
