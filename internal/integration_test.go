// Package internal contains integration tests that run the aggregation
// pipeline end to end: an Azure DevOps client against a fake REST server,
// an OpenAI summarizer against a fake chat endpoint, and the Markdown
// renderer.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/platform/devops"
	"github.com/changelog-weaver/weaver/internal/render"
	"github.com/changelog-weaver/weaver/internal/summarize"
	"github.com/changelog-weaver/weaver/internal/work"
	"github.com/changelog-weaver/weaver/internal/workitem"
)

const itemBase = "https://dev.azure.com/contoso/Fabrikam/_workitems/edit/"

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newDevOpsServer serves a release of three items: a bug two levels below
// an epic, a task whose parent was deleted and a task without a parent.
func newDevOpsServer(t *testing.T, fetches *atomic.Int32) *httptest.Server {
	t.Helper()

	item := func(id int64, typ, title string, parent int64) map[string]any {
		fields := map[string]any{
			"System.WorkItemType": typ,
			"System.Title":        title,
			"System.State":        "Done",
		}
		if parent != 0 {
			fields["System.Parent"] = parent
		}
		return map[string]any{
			"id":     id,
			"fields": fields,
			"_links": map[string]any{"html": map[string]string{"href": fmt.Sprintf("%s%d", itemBase, id)}},
		}
	}
	items := map[string]map[string]any{
		"1": item(1, "Epic", "Checkout", 0),
		"2": item(2, "Feature", "Card payments", 1),
		"3": item(3, "Bug", "Card declined twice", 2),
		"4": item(4, "Task", "Update fees", 77),
		"5": item(5, "Task", "Tidy logs", 0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/contoso/Fabrikam/_apis/wit/workitemtypes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": []map[string]any{
			{"name": "Epic", "color": "FF7B00", "icon": map[string]string{"url": "https://icons/epic"}},
			{"name": "Feature", "color": "773B93", "icon": map[string]string{"url": "https://icons/feature"}},
			{"name": "Bug", "color": "CC293D", "icon": map[string]string{"url": "https://icons/bug"}},
			{"name": "Task", "color": "F2CB1D", "icon": map[string]string{"url": "https://icons/task"}},
		}})
	})
	mux.HandleFunc("/contoso/Fabrikam/_apis/wit/workitems/{id}", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		it, ok := items[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, it)
	})
	mux.HandleFunc("/contoso/Fabrikam/_apis/wit/wiql/release", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"workItems": []map[string]int64{{"id": 3}, {"id": 4}, {"id": 5}}})
	})
	mux.HandleFunc("/contoso/Fabrikam/_apis/git/repositories/web/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": []map[string]any{
			{
				"commitId":  "9f8e7d6c5b4a",
				"comment":   "Bump payment SDK\n\nSigned-off-by: Dana",
				"author":    map[string]any{"name": "Dana", "date": "2024-05-02T09:30:00Z"},
				"remoteUrl": "https://dev.azure.com/contoso/Fabrikam/_git/web/commit/9f8e7d6c5b4a",
			},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newChatServer answers every chat completion with reply and counts calls.
func newChatServer(t *testing.T, reply string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChangelogPipeline(t *testing.T) {
	var fetches, chats atomic.Int32
	platformSrv := newDevOpsServer(t, &fetches)
	chatSrv := newChatServer(t, "Summary.", &chats)

	cfg := config.Default()
	cfg.Project.Name = "Shop"
	cfg.Project.Version = "2.0"
	cfg.Project.Query = "release"
	cfg.Project.RepoName = "web"
	cfg.Output.Folder = filepath.Join(t.TempDir(), "Releases")

	client := devops.New(devops.Config{
		CollectionURL: platformSrv.URL + "/contoso",
		Project:       "Fabrikam",
		Query:         cfg.Project.Query,
		PAT:           "pat",
		RepoName:      cfg.Project.RepoName,
		RootType:      cfg.Platform.RootType,
		Timeout:       5 * time.Second,
	}, nil)
	summarizer, err := summarize.NewOpenAI(summarize.Config{APIKey: "test", BaseURL: chatSrv.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	w := work.New(cfg, client, summarizer, nil)
	var groups []*workitem.Group
	var summary string
	err = w.Run(context.Background(), func(ctx context.Context, w *work.Work) error {
		var err error
		if groups, err = w.GenerateOrderedGroups(ctx); err != nil {
			return err
		}
		summary, err = w.SummarizeChangelog(ctx, groups)
		return err
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var types []string
	for _, g := range groups {
		types = append(types, g.Type)
	}
	if got, want := strings.Join(types, ","), "Epic,Other,Commit"; got != want {
		t.Fatalf("group order = %s, want %s", got, want)
	}
	if got := fetches.Load(); got != 6 {
		t.Errorf("work item requests = %d, want 6 (3 release items, 2 ancestors, 1 missing parent)", got)
	}
	// Five item summaries and one changelog summary. Commits are not summarized.
	if got := chats.Load(); got != 6 {
		t.Errorf("chat completions = %d, want 6", got)
	}

	md, err := render.Markdown("", render.NewData(cfg.Project.Name, cfg.Project.Version, summary, groups))
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	path := cfg.ChangelogPath()
	if err := render.WriteFile(path, md); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("changelog not written: %v", err)
	}
	content := string(b)

	wantLines := []string{
		"# Shop v2.0",
		"## Summary",
		`## <img src="https://icons/epic" alt="Epic" width="16" height="16"> Epic`,
		"- [#1](" + itemBase + "1) Checkout _(Done)_",
		"  - [#2](" + itemBase + "2) Card payments _(Done)_",
		"    - [#3](" + itemBase + "3) Card declined twice _(Done)_",
		"- [#4](" + itemBase + "4) Update fees _(Done)_",
		"- [#5](" + itemBase + "5) Tidy logs _(Done)_",
		"- [`9f8e7d6`](https://dev.azure.com/contoso/Fabrikam/_git/web/commit/9f8e7d6c5b4a) Bump payment SDK (Dana)",
	}
	last := -1
	for _, line := range wantLines {
		idx := strings.Index(content, line)
		if idx < 0 {
			t.Errorf("changelog missing %q:\n%s", line, content)
			continue
		}
		if idx < last {
			t.Errorf("%q out of order:\n%s", line, content)
		}
		last = idx
	}
}
