// Package devops implements platform.Client for Azure DevOps Boards using
// the REST API (version 7.0). Work items are returned flat with their parent
// identity, so the engine resolves their hierarchy.
package devops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"golang.org/x/time/rate"
)

// PlatformName identifies this client in errors and logs.
const PlatformName = "devops"

// APIVersion is the REST API version requested on every call.
const APIVersion = "7.0"

// Config holds the Azure DevOps client settings
type Config struct {
	// CollectionURL is the organization URL, e.g. https://dev.azure.com/contoso
	CollectionURL string
	// Project is the project name
	Project string
	// Query is the default saved query ID used by ItemsWithDetails
	Query string
	// PAT is the personal access token
	PAT string
	// RepoName is the git repository commits are read from; empty disables commits
	RepoName string
	// RootType is the work item type treated as a hierarchy root
	RootType string
	// RequestsPerSecond caps API calls, 0 = unlimited
	RequestsPerSecond float64
	// Timeout is the HTTP client timeout, 0 = none
	Timeout time.Duration
	// HTTPClient overrides the HTTP client (tests)
	HTTPClient *http.Client
}

// Client talks to the Azure DevOps REST API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger

	mu    sync.RWMutex
	types []workitem.Type
}

var _ platform.Client = (*Client)(nil)

// New creates a client. It performs no I/O; call Initialize before use.
func New(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = platform.NewHTTPClient(cfg.Timeout)
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: platform.NewLimiter(cfg.RequestsPerSecond),
		logger:  logger.WithComponent("devops"),
	}
}

// Initialize loads the project's work item types.
func (c *Client) Initialize(ctx context.Context) error {
	var resp typeList
	if _, err := c.get(ctx, "list work item types", "/_apis/wit/workitemtypes", nil, &resp); err != nil {
		return err
	}

	types := make([]workitem.Type, 0, len(resp.Value))
	for _, t := range resp.Value {
		types = append(types, t.toType())
	}

	c.mu.Lock()
	c.types = types
	c.mu.Unlock()

	c.logger.Debug("loaded work item types", "count", len(types))
	return nil
}

// Close releases idle HTTP connections.
func (c *Client) Close(ctx context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

// SourceKind reports that Azure DevOps items need parent resolution.
func (c *Client) SourceKind() platform.SourceKind {
	return platform.NeedsResolution
}

// AllItemTypes returns the types loaded by Initialize.
func (c *Client) AllItemTypes() []workitem.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]workitem.Type(nil), c.types...)
}

// ItemType returns the named type. Names are matched case-insensitively.
func (c *Client) ItemType(name string) (workitem.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return workitem.Type{}, false
}

// projectURL returns the URL of a project scoped API path.
func (c *Client) projectURL(path string, query url.Values) string {
	base := strings.TrimSuffix(c.cfg.CollectionURL, "/") + "/" + url.PathEscape(c.cfg.Project) + path
	if query == nil {
		query = url.Values{}
	}
	if query.Get("api-version") == "" {
		query.Set("api-version", APIVersion)
	}
	return base + "?" + query.Encode()
}

// get performs an authenticated GET and decodes the JSON response into out.
// Non-2xx responses are returned as *errors.PlatformError carrying the
// status code.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, errors.NewPlatformError(PlatformName, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.projectURL(path, query), nil)
	if err != nil {
		return 0, errors.NewPlatformError(PlatformName, op, err)
	}
	req.SetBasicAuth("", c.cfg.PAT)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.NewPlatformError(PlatformName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, errors.NewPlatformError(PlatformName, op, statusError(resp.StatusCode, body)).
			WithStatus(resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.NewPlatformError(PlatformName, op, fmt.Errorf("decode response: %w", err)).
				WithStatus(resp.StatusCode)
		}
	}
	return resp.StatusCode, nil
}

func statusError(code int, body []byte) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.ErrUnauthorized
	case http.StatusTooManyRequests:
		return errors.ErrRateLimited
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(code)
	}
	return errors.New(msg)
}

type typeList struct {
	Value []typeDescriptor `json:"value"`
}

type typeDescriptor struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  struct {
		URL string `json:"url"`
	} `json:"icon"`
}

func (t typeDescriptor) toType() workitem.Type {
	color := workitem.DefaultTypeColor
	if t.Color != "" {
		color = "#" + strings.TrimPrefix(t.Color, "#")
	}
	return workitem.Type{Name: t.Name, Icon: t.Icon.URL, Color: color}
}
