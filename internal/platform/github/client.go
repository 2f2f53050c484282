// Package github implements platform.Client for GitHub repositories. Closed
// issues and merged pull requests are classified into changelog types by
// label patterns and returned pre-nested: one container node per type
// holding its items.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/gobwas/glob"
	gh "github.com/google/go-github/v66/github"
)

// PlatformName identifies this client in errors and logs.
const PlatformName = "github"

// Fallback types for items no rule matches.
const (
	TypeIssue       = "Issue"
	TypePullRequest = "Pull Request"
)

const perPage = 100

// TypeRule maps label glob patterns to a changelog type.
type TypeRule struct {
	Type   string
	Labels []string
}

// Config holds the GitHub client settings
type Config struct {
	// Repo is "owner/name"
	Repo  string
	Token string
	// Branch is used for commit history when no tags are given; empty means
	// the repository's default branch
	Branch  string
	FromTag string
	ToTag   string
	// From and To bound closing dates of items and commit dates
	From time.Time
	To   time.Time
	// TypeRules are tried in order; the first rule with a matching label wins
	TypeRules           []TypeRule
	IncludePullRequests bool
	RequestsPerSecond   float64
	Timeout             time.Duration
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests)
	BaseURL string
}

type compiledRule struct {
	typ      string
	patterns []glob.Glob
}

// Client reads issues, pull requests and commits through go-github.
type Client struct {
	cfg    Config
	owner  string
	repo   string
	api    *gh.Client
	http   *http.Client
	rules  []compiledRule
	types  []workitem.Type
	logger *logging.Logger

	mu            sync.RWMutex
	defaultBranch string
}

var _ platform.Client = (*Client)(nil)

// New validates the configuration and creates a client. No I/O is performed.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid repository %q, want owner/name", cfg.Repo), errors.ErrInvalidInput).
			WithKey("project.url")
	}

	rules, err := compileRules(cfg.TypeRules)
	if err != nil {
		return nil, err
	}

	httpClient := platform.NewHTTPClient(cfg.Timeout)
	httpClient.Transport = platform.LimitTransport(nil, platform.NewLimiter(cfg.RequestsPerSecond))

	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.NewConfigError("invalid GitHub API URL", err)
		}
		api.BaseURL = u
	}

	return &Client{
		cfg:    cfg,
		owner:  owner,
		repo:   repo,
		api:    api,
		http:   httpClient,
		rules:  rules,
		types:  buildTypes(cfg.TypeRules, cfg.IncludePullRequests),
		logger: logger.WithComponent("github"),
	}, nil
}

func compileRules(rules []TypeRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{typ: r.Type}
		for _, p := range r.Labels {
			g, err := glob.Compile(strings.ToLower(p))
			if err != nil {
				return nil, errors.NewConfigError(fmt.Sprintf("invalid label pattern %q", p), err).
					WithKey("github.type_rules")
			}
			cr.patterns = append(cr.patterns, g)
		}
		out = append(out, cr)
	}
	return out, nil
}

// Initialize checks that the repository is reachable and records its
// default branch.
func (c *Client) Initialize(ctx context.Context) error {
	repo, resp, err := c.api.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return c.wrap("get repository", 0, resp, err)
	}
	c.mu.Lock()
	c.defaultBranch = repo.GetDefaultBranch()
	c.mu.Unlock()
	c.logger.Debug("repository ready", "repo", c.cfg.Repo, "default_branch", repo.GetDefaultBranch())
	return nil
}

// Close releases idle HTTP connections.
func (c *Client) Close(ctx context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

// SourceKind reports that GitHub results arrive pre-nested.
func (c *Client) SourceKind() platform.SourceKind {
	return platform.PreNested
}

// AllItemTypes returns the configured types followed by the fallbacks.
func (c *Client) AllItemTypes() []workitem.Type {
	return append([]workitem.Type(nil), c.types...)
}

// ItemType returns the named type, matched case-insensitively.
func (c *Client) ItemType(name string) (workitem.Type, bool) {
	for _, t := range c.types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return workitem.Type{}, false
}

// classify returns the type of the first rule matching any label, or
// fallback.
func (c *Client) classify(labels []*gh.Label, fallback string) string {
	for _, r := range c.rules {
		for _, l := range labels {
			name := strings.ToLower(l.GetName())
			for _, p := range r.patterns {
				if p.Match(name) {
					return r.typ
				}
			}
		}
	}
	return fallback
}

// wrap converts a go-github error into a PlatformError. A 404 on an item
// lookup becomes errors.ErrItemNotFound.
func (c *Client) wrap(op string, id int64, resp *gh.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	cause := err
	var rlErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &rlErr) || errors.As(err, &abuseErr):
		cause = fmt.Errorf("%w: %v", errors.ErrRateLimited, err)
	case status == http.StatusUnauthorized:
		cause = fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	case status == http.StatusNotFound && id != 0:
		cause = errors.NewNotFoundError("work item", fmt.Sprint(id)).WithCause(err)
	}

	perr := errors.NewPlatformError(PlatformName, op, cause)
	if id != 0 {
		perr.WithItemID(id)
	}
	if status != 0 {
		perr.WithStatus(status)
	}
	return perr
}

var typeIcons = map[string]string{
	"bug":           "https://raw.githubusercontent.com/primer/octicons/main/icons/bug-16.svg",
	"feature":       "https://raw.githubusercontent.com/primer/octicons/main/icons/rocket-16.svg",
	"documentation": "https://raw.githubusercontent.com/primer/octicons/main/icons/book-16.svg",
	"maintenance":   "https://raw.githubusercontent.com/primer/octicons/main/icons/tools-16.svg",
	"pull request":  "https://raw.githubusercontent.com/primer/octicons/main/icons/git-pull-request-16.svg",
}

const defaultIcon = "https://raw.githubusercontent.com/primer/octicons/main/icons/issue-closed-16.svg"

var typeColors = map[string]string{
	"bug":           "#d73a4a",
	"feature":       "#a2eeef",
	"documentation": "#0075ca",
	"maintenance":   "#fbca04",
	"pull request":  "#6f42c1",
}

func iconFor(name string) string {
	if icon, ok := typeIcons[strings.ToLower(name)]; ok {
		return icon
	}
	return defaultIcon
}

func colorFor(name string) string {
	if color, ok := typeColors[strings.ToLower(name)]; ok {
		return color
	}
	return workitem.DefaultTypeColor
}

func buildTypes(rules []TypeRule, includePRs bool) []workitem.Type {
	seen := make(map[string]bool)
	var types []workitem.Type
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		types = append(types, workitem.Type{Name: name, Icon: iconFor(name), Color: colorFor(name)})
	}
	for _, r := range rules {
		add(r.Type)
	}
	add(TypeIssue)
	if includePRs {
		add(TypePullRequest)
	}
	return types
}
