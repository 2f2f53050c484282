// Package platform defines the contract between the aggregation engine and
// the issue-tracking platforms it reads from, along with project URL
// detection and the request pacing shared by all clients.
package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/changelog-weaver/weaver/internal/workitem"
	"golang.org/x/time/rate"
)

// SourceKind describes how a platform returns work items. It is selected
// once, when the client is constructed, and decides which aggregation steps
// the engine runs.
type SourceKind int

const (
	// NeedsResolution platforms return flat items with parent identities;
	// missing ancestors must be fetched and the hierarchy rebuilt.
	NeedsResolution SourceKind = iota
	// PreNested platforms return fully materialized trees.
	PreNested
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case NeedsResolution:
		return "needs_resolution"
	case PreNested:
		return "pre_nested"
	default:
		return "unknown"
	}
}

// FetchOptions selects the items of a release.
type FetchOptions struct {
	// QueryID is a saved query identifier (Azure DevOps).
	QueryID string
	// From and To bound the closing date of items; zero means unbounded.
	From time.Time
	To   time.Time
}

// CommitOptions selects the commits of a release.
type CommitOptions struct {
	Branch  string
	FromTag string
	ToTag   string
	From    time.Time
	To      time.Time
}

// Client is implemented by every platform. Implementations must be safe for
// concurrent use once Initialize has returned.
type Client interface {
	// Initialize prepares the client (e.g. loads item types). It is called
	// once before any other method.
	Initialize(ctx context.Context) error
	// Close releases the client's resources. It is called once, even when
	// aggregation fails.
	Close(ctx context.Context) error

	// SourceKind reports how the platform returns items.
	SourceKind() SourceKind

	// ItemByID fetches one item. A permanently missing or inaccessible item
	// yields an error matching errors.ErrItemNotFound.
	ItemByID(ctx context.Context, id int64) (*workitem.Item, error)
	// ItemsFromQuery runs a saved query and returns its items.
	ItemsFromQuery(ctx context.Context, queryID string) ([]*workitem.Item, error)
	// ItemsWithDetails returns the release items. NeedsResolution platforms
	// may return items carrying only an identity; PreNested platforms return
	// root nodes with their children populated.
	ItemsWithDetails(ctx context.Context, opts FetchOptions) ([]*workitem.Node, error)

	// AllItemTypes returns the item types known to the platform.
	AllItemTypes() []workitem.Type
	// ItemType returns the named item type, if known.
	ItemType(name string) (workitem.Type, bool)

	// Commits returns the repository history of the release.
	Commits(ctx context.Context, opts CommitOptions) ([]workitem.Commit, error)
}

// NewLimiter returns a limiter allowing rps requests per second, or an
// unlimited one when rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewHTTPClient returns an HTTP client with the given timeout (0 = none).
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// limitedTransport waits on a limiter before every request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// LimitTransport wraps base (http.DefaultTransport when nil) so that every
// request waits on limiter. Used by clients built on SDKs that own their
// request loop.
func LimitTransport(base http.RoundTripper, limiter *rate.Limiter) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &limitedTransport{base: base, limiter: limiter}
}
