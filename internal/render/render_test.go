package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/google/go-cmp/cmp"
)

func scenarioGroups() []*workitem.Group {
	epic := workitem.NewNode(workitem.Item{ID: 1, Type: "Epic", Title: "Checkout", State: "Done", URL: "https://example.test/1", Root: true})
	cards := workitem.NewNode(workitem.Item{ID: 2, Type: "Feature", Title: "Cards", State: "Done", Summary: "Pay by card."})
	bug := workitem.NewNode(workitem.Item{ID: 4, Type: "Bug", Title: "Declined twice", State: "Closed"})
	epic.AddChild(cards)
	cards.AddChild(bug)

	bucket := workitem.NewNode(workitem.Item{ID: workitem.OrphanBucketID, Type: workitem.TypeOther, Title: workitem.TypeOther, Root: true})
	bucket.AddChild(workitem.NewNode(workitem.Item{ID: 7, Type: "Task", Title: "Stray task", State: "Done"}))

	commit := workitem.NewNode(workitem.Item{
		ID: -5, Type: workitem.TypeCommit, State: workitem.StateNotApplicable,
		Title: "Fix rounding", SHA: "0123456789abcdef", URL: "https://example.test/c/0123456", Author: "octocat",
	})

	return []*workitem.Group{
		{Type: "Epic", Icon: "https://example.test/epic.svg", Items: []*workitem.Node{epic}},
		{Type: workitem.TypeOther, Items: []*workitem.Node{bucket}},
		{Type: workitem.TypeCommit, Items: []*workitem.Node{commit}},
	}
}

func TestMarkdown_Default(t *testing.T) {
	data := NewData("Shop", "1.2", "A small release.\n", scenarioGroups())

	got, err := Markdown("", data)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}

	want := `# Shop v1.2

## Summary

A small release.

## <img src="https://example.test/epic.svg" alt="Epic" width="16" height="16"> Epic

- [#1](https://example.test/1) Checkout _(Done)_
  - #2 Cards _(Done)_
    Pay by card.
    - #4 Declined twice _(Closed)_

## Other

- #7 Stray task _(Done)_

## Commit

- [` + "`0123456`" + `](https://example.test/c/0123456) Fix rounding (octocat)
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Markdown() mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdown_NoSummary(t *testing.T) {
	got, err := Markdown("", NewData("", "", "", nil))
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if got != "# Changelog\n" {
		t.Errorf("Markdown() = %q", got)
	}
}

func TestNewData_FlattensDepth(t *testing.T) {
	data := NewData("Shop", "", "", scenarioGroups())

	if data.Title != "Shop" {
		t.Errorf("Title = %q, want %q", data.Title, "Shop")
	}
	var depths []int
	for _, e := range data.Sections[0].Entries {
		depths = append(depths, e.Depth)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, depths); diff != "" {
		t.Errorf("depths mismatch (-want +got):\n%s", diff)
	}
	if n := len(data.Sections[1].Entries); n != 1 || data.Sections[1].Entries[0].ID != 7 {
		t.Errorf("orphan section entries = %+v, want only item 7", data.Sections[1].Entries)
	}
}

func TestNewData_SkipsEmptyGroups(t *testing.T) {
	groups := append(scenarioGroups()[:2], &workitem.Group{Type: workitem.TypeCommit})
	data := NewData("Shop", "", "", groups)

	if n := len(data.Sections); n != 2 {
		t.Fatalf("len(Sections) = %d, want 2", n)
	}
	out, err := Markdown(DefaultTemplate, data)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if strings.Contains(out, "## Commit") {
		t.Errorf("empty Commit group rendered a heading:\n%s", out)
	}
}

func TestMarkdown_CustomTemplate(t *testing.T) {
	tmpl := `{{ .Name }}|{{ range .Sections }}{{ .Type }}:{{ len .Entries }};{{ end }}`

	got, err := Markdown(tmpl, NewData("Shop", "1.2", "", scenarioGroups()))
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if want := "Shop|Epic:3;Other:1;Commit:1;"; got != want {
		t.Errorf("Markdown() = %q, want %q", got, want)
	}
}

func TestMarkdown_InvalidTemplate(t *testing.T) {
	_, err := Markdown("{{ .Title ", Data{})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Markdown() error = %v, want ErrInvalidInput", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	got, err := LoadTemplate("")
	if err != nil || got != DefaultTemplate {
		t.Errorf("LoadTemplate(\"\") = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "changelog.tmpl")
	if err := os.WriteFile(path, []byte("{{ .Title }}"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadTemplate(path)
	if err != nil || got != "{{ .Title }}" {
		t.Errorf("LoadTemplate(path) = %q, %v", got, err)
	}

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.tmpl"))
	var cerr *errors.ConfigError
	if !errors.As(err, &cerr) || cerr.Key != "changelog.template" {
		t.Errorf("LoadTemplate(missing) error = %v, want ConfigError for changelog.template", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Releases", "Shop-v1.2.md")

	if err := WriteFile(path, "first"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := WriteFile(path, "second"); err != nil {
		t.Fatalf("WriteFile() overwrite error = %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Errorf("file content = %q, want %q", b, "second")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
