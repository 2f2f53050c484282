package work

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/metrics"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/summarize"
	"github.com/changelog-weaver/weaver/internal/tracing"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Stage names used in logs, metrics and spans.
const (
	StageInitialize = "initialize"
	StageFetch      = "fetch"
	StageDetails    = "details"
	StageResolve    = "resolve"
	StageOrphans    = "orphans"
	StageHierarchy  = "hierarchy"
	StageSummarize  = "summarize"
	StageCommits    = "commits"
	StageChangelog  = "changelog_summary"
)

type lifecycle int

const (
	stateNew lifecycle = iota
	stateOpen
	stateClosed
)

// Option configures a Work.
type Option func(*Work)

// WithMetrics records into m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Work) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(w *Work) {
		if id != "" {
			w.runID = id
		}
	}
}

// Work coordinates one aggregation run against one platform client.
type Work struct {
	cfg        *config.Config
	client     platform.Client
	kind       platform.SourceKind
	summarizer summarize.Summarizer
	logger     *logging.Logger
	metrics    *metrics.Metrics
	runID      string

	store   *Store
	fetches singleflight.Group

	mu      sync.Mutex
	state   lifecycle
	fetched bool
	roots   []*workitem.Node
	groups  []*workitem.Group
}

// New creates a Work around client. The client's SourceKind is read once
// here and decides the pipeline for the whole run. A nil summarizer
// disables summaries.
func New(cfg *config.Config, client platform.Client, summarizer summarize.Summarizer, logger *logging.Logger, opts ...Option) *Work {
	if cfg == nil {
		cfg = config.Default()
	}
	if summarizer == nil {
		summarizer = summarize.Nop{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	w := &Work{
		cfg:        cfg,
		client:     client,
		kind:       client.SourceKind(),
		summarizer: summarizer,
		runID:      uuid.NewString(),
		store:      NewStore(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = metrics.New()
	}
	w.logger = logger.WithRun(w.runID).WithComponent("work")
	return w
}

// RunID returns the identifier tagging this run's logs.
func (w *Work) RunID() string { return w.runID }

// SourceKind returns the pipeline selected at construction.
func (w *Work) SourceKind() platform.SourceKind { return w.kind }

// Metrics returns the collectors the run records into.
func (w *Work) Metrics() *metrics.Metrics { return w.metrics }

// Initialize initializes the platform client. It may be called once.
func (w *Work) Initialize(ctx context.Context) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case stateOpen:
		return errors.ErrAlreadyInitialized
	case stateClosed:
		return errors.ErrClosed
	}

	ctx, span := tracing.Start(ctx, "work.initialize")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	if err := w.client.Initialize(ctx); err != nil {
		return errors.Wrap(err, "initialize platform client")
	}
	w.state = stateOpen
	w.metrics.ObserveStage(StageInitialize, start)
	w.logger.Info("work initialized", "source_kind", w.kind.String(), "duration", time.Since(start).String())
	return nil
}

// Close closes the platform client. Calls before Initialize and repeated
// calls are no-ops.
func (w *Work) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateOpen {
		return nil
	}
	w.state = stateClosed
	if err := w.client.Close(ctx); err != nil {
		return errors.Wrap(err, "close platform client")
	}
	w.logger.Debug("work closed")
	return nil
}

// Run initializes w, calls fn and closes w, even when fn fails. Errors from
// fn and Close are joined.
func (w *Work) Run(ctx context.Context, fn func(ctx context.Context, w *Work) error) error {
	if err := w.Initialize(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, w)
	closeErr := w.Close(context.WithoutCancel(ctx))
	return errors.Join(runErr, closeErr)
}

func (w *Work) checkOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case stateNew:
		return errors.ErrNotInitialized
	case stateClosed:
		return errors.ErrClosed
	}
	return nil
}

// ItemByID fetches an item and adds it to the store. Concurrent requests
// for the same identity share one call.
func (w *Work) ItemByID(ctx context.Context, id int64) (*workitem.Node, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return w.fetchItem(ctx, id, metrics.SourceDetail)
}

func (w *Work) fetchItem(ctx context.Context, id int64, source string) (*workitem.Node, error) {
	n, err := w.loadItem(ctx, id, source)
	if err != nil {
		return nil, err
	}
	return w.store.AddNode(n), nil
}

// loadItem returns the stored node for id, or fetches it from the platform
// without storing it.
func (w *Work) loadItem(ctx context.Context, id int64, source string) (*workitem.Node, error) {
	if n, ok := w.store.Get(id); ok {
		return n, nil
	}
	v, err, _ := w.fetches.Do(strconv.FormatInt(id, 10), func() (any, error) {
		item, err := w.client.ItemByID(ctx, id)
		if err != nil {
			return nil, err
		}
		w.metrics.ItemsFetched.WithLabelValues(source).Inc()
		return workitem.NewNode(*item), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*workitem.Node), nil
}

// ItemsFromQuery runs a saved query and adds the results to the store.
func (w *Work) ItemsFromQuery(ctx context.Context, queryID string) ([]*workitem.Node, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	items, err := w.client.ItemsFromQuery(ctx, queryID)
	if err != nil {
		return nil, errors.Wrapf(err, "run query %s", queryID)
	}
	nodes := make([]*workitem.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, w.store.Add(item))
	}
	w.metrics.ItemsFetched.WithLabelValues(metrics.SourceQuery).Add(float64(len(items)))
	return nodes, nil
}

// ItemTypes returns every item type known to the platform.
func (w *Work) ItemTypes() []workitem.Type {
	return w.client.AllItemTypes()
}

// ItemType returns the named item type.
func (w *Work) ItemType(name string) (workitem.Type, bool) {
	return w.client.ItemType(name)
}

// FetchItemsWithDetails runs the aggregation pipeline and returns the root
// items. Flat sources go through detail fetch, parent resolution, the orphan
// bucket and hierarchy reconstruction; pre-nested sources are grouped
// directly. Items are then summarized when model.item_summary is set. On
// error no groups are kept.
func (w *Work) FetchItemsWithDetails(ctx context.Context, opts platform.FetchOptions) (roots []*workitem.Node, err error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "work.fetch_items_with_details",
		attribute.String("source_kind", w.kind.String()))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	w.logger.Info("fetching work items with details")

	nodes, err := w.client.ItemsWithDetails(ctx, opts)
	if err != nil {
		return nil, errors.NewResolutionError("fetch items", err)
	}

	var groups []*workitem.Group
	switch w.kind {
	case platform.PreNested:
		roots, groups = w.adoptPreNested(nodes)
	default:
		roots, groups, err = w.resolveFlat(ctx, nodes)
		if err != nil {
			return nil, err
		}
	}

	if err := w.summarizeItems(ctx); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.roots, w.groups, w.fetched = roots, groups, true
	w.mu.Unlock()

	w.metrics.ObserveStage(StageFetch, start)
	w.logger.Info("fetched and processed work items",
		"items", w.store.Len(),
		"roots", len(roots),
		"groups", len(groups),
		"duration", time.Since(start).String(),
	)
	return roots, nil
}

// adoptPreNested stores the children of each returned root and groups the
// roots directly. Roots are type containers and are not stored.
func (w *Work) adoptPreNested(roots []*workitem.Node) ([]*workitem.Node, []*workitem.Group) {
	count := 0
	for _, root := range roots {
		for _, child := range root.Children {
			child.Walk(func(n *workitem.Node) bool {
				w.store.AddNode(n)
				count++
				return true
			})
		}
	}
	w.metrics.ItemsFetched.WithLabelValues(metrics.SourceDetail).Add(float64(count))
	return roots, GroupPreNested(roots)
}

func (w *Work) resolveFlat(ctx context.Context, nodes []*workitem.Node) ([]*workitem.Node, []*workitem.Group, error) {
	if err := w.fetchDetails(ctx, nodes); err != nil {
		return nil, nil, err
	}

	if err := w.resolveParents(ctx); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	bucket := BuildOrphanBucket(w.store, w.cfg.Platform.OtherIcon)
	orphaned := 0
	if bucket != nil {
		orphaned = len(bucket.Children)
		w.logger.WithPhase(StageOrphans).Info("created Other parent for orphaned items", "count", orphaned)
	}
	w.metrics.OrphanedItems.Set(float64(orphaned))
	w.metrics.ObserveStage(StageOrphans, start)

	start = time.Now()
	h := BuildHierarchy(w.store)
	w.metrics.ObserveStage(StageHierarchy, start)
	w.logger.WithPhase(StageHierarchy).Debug("built hierarchy", "roots", len(h.Roots), "groups", len(h.Groups))
	return h.Roots, h.Groups, nil
}

// fetchDetails fetches every returned item with full fan-out and stores
// them in the order the platform returned them.
func (w *Work) fetchDetails(ctx context.Context, nodes []*workitem.Node) (err error) {
	ctx, span := tracing.Start(ctx, "work.fetch_details", attribute.Int("items", len(nodes)))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	detailed := make([]*workitem.Node, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range nodes {
		g.Go(func() error {
			d, err := w.loadItem(gctx, n.ID, metrics.SourceDetail)
			detailed[i] = d
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return errors.NewResolutionError("detail fetch", err)
	}
	for _, d := range detailed {
		w.store.AddNode(d)
	}
	w.metrics.ObserveStage(StageDetails, start)
	w.logger.WithPhase(StageFetch).Info("added work items", "count", len(nodes))
	return nil
}

func (w *Work) resolveParents(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "work.resolve_parents")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	log := w.logger.WithPhase(StageResolve)
	fetch := func(ctx context.Context, id int64) (*workitem.Node, error) {
		return w.loadItem(ctx, id, metrics.SourceParent)
	}
	r := NewResolver(w.store, fetch, w.cfg.Resolver.BatchSize, w.cfg.Resolver.MaxWaves, log, w.metrics)

	res, err := r.Resolve(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Int("waves", res.Waves),
		attribute.Int("fetched", res.Fetched),
		attribute.Int("unresolvable", len(res.Unresolvable)),
	)
	w.metrics.ObserveStage(StageResolve, start)
	log.Info("fetched parent items",
		"waves", res.Waves,
		"fetched", res.Fetched,
		"unresolvable", len(res.Unresolvable),
		"orphaned", res.Orphaned,
		"cycles_broken", res.CyclesBroken,
		"duration", time.Since(start).String(),
	)
	return nil
}

// summaryCandidates returns the stored items eligible for summaries: every
// item except commits and the orphan bucket.
func (w *Work) summaryCandidates() []*workitem.Node {
	var out []*workitem.Node
	for _, n := range w.store.All() {
		if n.IsCommit() || n.ID == workitem.OrphanBucketID {
			continue
		}
		out = append(out, n)
	}
	return out
}

// summarizeItems summarizes every candidate concurrently when
// model.item_summary is set. Each goroutine writes only its own item.
func (w *Work) summarizeItems(ctx context.Context) (err error) {
	log := w.logger.WithPhase(StageSummarize)
	candidates := w.summaryCandidates()
	if !w.cfg.Model.ItemSummary {
		log.Info("skipping work item summary due to configuration setting")
		w.metrics.Summaries.WithLabelValues(metrics.ScopeItem, metrics.ResultSkipped).Add(float64(len(candidates)))
		return nil
	}

	ctx, span := tracing.Start(ctx, "work.summarize_items", attribute.Int("items", len(candidates)))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range candidates {
		g.Go(func() error {
			summary, err := w.summarizer.Summarize(gctx, summarize.ItemPrompt(w.cfg.Prompts.Item, &n.Item))
			if err != nil {
				w.metrics.Summaries.WithLabelValues(metrics.ScopeItem, metrics.ResultError).Inc()
				return errors.Wrapf(err, "summarize item %d", n.ID)
			}
			n.Summary = summary
			w.metrics.Summaries.WithLabelValues(metrics.ScopeItem, metrics.ResultOK).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.NewResolutionError("item summarization", err)
	}
	w.metrics.ObserveStage(StageSummarize, start)
	log.Info("summarized work items", "count", len(candidates), "duration", time.Since(start).String())
	return nil
}

// GenerateOrderedGroups returns the grouped result, running
// FetchItemsWithDetails first if needed, and appends the "Commit" group when
// changelog.include_commits is set and no such group exists. The group is
// kept even when the history is empty, so commits are fetched once.
func (w *Work) GenerateOrderedGroups(ctx context.Context) (groups []*workitem.Group, err error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "work.generate_ordered_groups")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	w.mu.Lock()
	fetched := w.fetched
	w.mu.Unlock()

	if !fetched {
		opts, err := w.fetchOptions()
		if err != nil {
			return nil, err
		}
		if _, err := w.FetchItemsWithDetails(ctx, opts); err != nil {
			return nil, err
		}
	}

	w.mu.Lock()
	groups = w.groups
	w.mu.Unlock()

	if w.cfg.Changelog.IncludeCommits && !HasCommitGroup(groups) {
		commitGroup, err := w.commitGroup(ctx)
		if err != nil {
			return nil, err
		}
		groups = append(groups, commitGroup)
		w.mu.Lock()
		w.groups = groups
		w.mu.Unlock()
	}

	w.logger.Info("generated ordered work items", "groups", len(groups), "duration", time.Since(start).String())
	return groups, nil
}

func (w *Work) commitGroup(ctx context.Context) (*workitem.Group, error) {
	start := time.Now()
	log := w.logger.WithPhase(StageCommits)
	log.Info("fetching commits")

	opts, err := w.commitOptions()
	if err != nil {
		return nil, err
	}
	commits, err := w.client.Commits(ctx, opts)
	if err != nil {
		return nil, errors.NewResolutionError("commit fetch", err)
	}

	g := CommitGroup(commits)
	w.metrics.CommitItems.Set(float64(len(g.Items)))
	w.metrics.ObserveStage(StageCommits, start)
	log.Info("retrieved commits", "count", len(commits))
	return g, nil
}

// SummarizeChangelog summarizes the whole release when
// model.changelog_summary is set; otherwise it returns "".
func (w *Work) SummarizeChangelog(ctx context.Context, groups []*workitem.Group) (summary string, err error) {
	log := w.logger.WithPhase(StageChangelog)
	if !w.cfg.Model.ChangelogSummary {
		log.Info("skipping changelog summary due to configuration setting")
		w.metrics.Summaries.WithLabelValues(metrics.ScopeChangelog, metrics.ResultSkipped).Inc()
		return "", nil
	}

	ctx, span := tracing.Start(ctx, "work.summarize_changelog")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	prompt := summarize.ChangelogPrompt(w.cfg.Prompts.Summary, w.cfg.Project.Brief, w.cfg.Prompts.Notes, groups)
	summary, err = w.summarizer.Summarize(ctx, prompt)
	if err != nil {
		w.metrics.Summaries.WithLabelValues(metrics.ScopeChangelog, metrics.ResultError).Inc()
		return "", errors.NewResolutionError("changelog summarization", err)
	}
	w.metrics.Summaries.WithLabelValues(metrics.ScopeChangelog, metrics.ResultOK).Inc()
	w.metrics.ObserveStage(StageChangelog, start)
	log.Info("summarized changelog", "duration", time.Since(start).String())
	return summary, nil
}

// Roots returns the root items of the last successful fetch.
func (w *Work) Roots() []*workitem.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots
}

func (w *Work) fetchOptions() (platform.FetchOptions, error) {
	from, to, err := w.cfg.Project.DateRange()
	if err != nil {
		return platform.FetchOptions{}, errors.NewConfigError("invalid release dates", err)
	}
	return platform.FetchOptions{QueryID: w.cfg.Project.Query, From: from, To: to}, nil
}

func (w *Work) commitOptions() (platform.CommitOptions, error) {
	from, to, err := w.cfg.Project.DateRange()
	if err != nil {
		return platform.CommitOptions{}, errors.NewConfigError("invalid release dates", err)
	}
	return platform.CommitOptions{
		Branch:  w.cfg.Project.Branch,
		FromTag: w.cfg.Project.FromTag,
		ToTag:   w.cfg.Project.ToTag,
		From:    from,
		To:      to,
	}, nil
}
