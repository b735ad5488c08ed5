// Package session assembles a viewer session: the scope, the dataset and
// its loader, and the heatmap and listing stages chained on the dataset's
// output.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/config"
	"github.com/pumped-fn/mscan-go/dataset"
	"github.com/pumped-fn/mscan-go/heatmap"
	"github.com/pumped-fn/mscan-go/listing"
	"github.com/pumped-fn/mscan-go/testcase"
)

// LoadingDetails is the detail text shown while a record's detail source
// is still loading.
const LoadingDetails = "Loading details..."

// Session is one assembled viewer.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	Scope    *mscan.Scope
	Dataset  *dataset.Dataset
	Loader   *dataset.Loader
	Pipeline *mscan.Pipeline[*testcase.View]
	Heatmap  *heatmap.Stage
	Listing  *listing.Stage

	ctx     context.Context
	watcher *dataset.Watcher
}

type options struct {
	logger     *zap.Logger
	fetcher    dataset.Fetcher
	surface    heatmap.Surface
	consumer   listing.Consumer
	layout     *heatmap.Layout
	extensions []mscan.Extension
}

// Option configures a Session
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFetcher replaces the fetcher derived from the configuration.
func WithFetcher(f dataset.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithSurface sets the heatmap drawing surface.
func WithSurface(surface heatmap.Surface) Option {
	return func(o *options) {
		o.surface = surface
	}
}

// WithLayout sets the heatmap grid geometry pointer positions are mapped
// with.
func WithLayout(l heatmap.Layout) Option {
	return func(o *options) {
		o.layout = &l
	}
}

// WithConsumer sets the listing model consumer.
func WithConsumer(c listing.Consumer) Option {
	return func(o *options) {
		o.consumer = c
	}
}

// WithExtension registers ext on the session's scope.
func WithExtension(ext mscan.Extension) Option {
	return func(o *options) {
		o.extensions = append(o.extensions, ext)
	}
}

// New assembles a session from cfg. Nothing is loaded until Start.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = fetcherFor(cfg)
	}

	id := uuid.NewString()
	o.logger = o.logger.With(zap.String("session", id))
	scopeOpts := []mscan.ScopeOption{
		mscan.WithLogger(o.logger.Named("scope")),
		mscan.WithTag(mscan.SessionID, id),
	}
	for _, ext := range o.extensions {
		scopeOpts = append(scopeOpts, mscan.WithExtension(ext))
	}

	s := &Session{
		cfg:    cfg,
		logger: o.logger,
		Scope:  mscan.NewScope(scopeOpts...),
		ctx:    context.Background(),
	}

	order := cfg.CallOrder()
	s.Dataset = dataset.New(s.Scope,
		dataset.WithCallOrder(order),
		dataset.WithLogger(o.logger.Named("dataset")),
	)
	s.Loader = dataset.NewLoader(s.Dataset, o.fetcher,
		dataset.WithLoaderLogger(o.logger.Named("loader")),
	)

	facets := heatmap.SingleFacet
	if cfg.Heatmap.FacetField != "" {
		facets = heatmap.FacetByField(cfg.Heatmap.FacetField)
	}

	hopts := []heatmap.Option{
		heatmap.WithPredicate(heatmap.HasNonEmpty(cfg.Heatmap.MatchField)),
		heatmap.WithFacets(facets),
		heatmap.WithCallOrder(order),
		heatmap.WithSurface(o.surface),
		heatmap.WithLogger(o.logger.Named("heatmap")),
	}
	if o.layout != nil {
		hopts = append(hopts, heatmap.WithLayout(*o.layout))
	}

	s.Scope.Turn(func() {
		s.Pipeline = mscan.NewPipeline(s.Scope, s.Dataset.Output()).
			Then(heatmap.Builder(hopts...)).
			Then(listing.Builder(
				listing.WithPaging(cfg.Listing.InitialRows, cfg.Listing.PageRows),
				listing.WithDetail(s.Detail),
				listing.WithConsumer(o.consumer),
				listing.WithLogger(o.logger.Named("listing")),
			))
	})

	stages := s.Pipeline.Stages()
	s.Heatmap = stages[0].(*heatmap.Stage)
	s.Listing = stages[1].(*listing.Stage)

	return s, nil
}

func fetcherFor(cfg *config.Config) dataset.Fetcher {
	if cfg.BaseURL != "" {
		return dataset.HTTPFetcher{
			BaseURL: cfg.BaseURL,
			Client:  &http.Client{Timeout: cfg.GetTimeout()},
		}
	}
	return dataset.FileFetcher{Root: cfg.Root}
}

// Start issues the configured sources and extra, and starts the directory
// watcher if one is configured. Loads complete asynchronously.
func (s *Session) Start(ctx context.Context, extra ...string) error {
	s.ctx = ctx

	for _, src := range append(append([]string(nil), s.cfg.Sources...), extra...) {
		s.Load(ctx, src)
	}

	if s.cfg.WatchDir == "" {
		return nil
	}

	var wopts []dataset.WatcherOption
	wopts = append(wopts, dataset.WithWatcherLogger(s.logger.Named("watcher")))
	if prefix, ok := watchPrefix(s.cfg.Root, s.cfg.WatchDir); ok {
		wopts = append(wopts, dataset.WithSourcePrefix(prefix))
	}

	w, err := dataset.NewWatcher(s.cfg.WatchDir, s.Loader, wopts...)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", s.cfg.WatchDir, err)
	}
	s.watcher = w
	return nil
}

// watchPrefix returns the watch directory relative to the fetch root.
func watchPrefix(root, dir string) (string, bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Load requests source. Repeated requests are ignored.
func (s *Session) Load(ctx context.Context, source string) {
	if err := s.Loader.LoadSource(ctx, source); err != nil && !errors.Is(err, dataset.ErrDuplicateSource) {
		s.logger.Warn("could not load source", zap.String("source", source), zap.Error(err))
	}
}

// Wait blocks until every load issued so far has completed.
func (s *Session) Wait() error {
	return s.Loader.Wait()
}

// Detail renders an expanded record. If the record's run has a detail
// source, the source is loaded on first expansion and a placeholder is
// shown until it arrives; afterwards the record, now carrying the merged
// detail fields, falls back to its JSON rendering.
func (s *Session) Detail(tc *testcase.TestCase) (string, bool) {
	runid, _ := tc.Get(testcase.FieldRunID)
	source, ok := s.cfg.DetailSources[testcase.FormatValue(runid)]
	if !ok {
		return "", false
	}

	if s.Loader.Ensure(s.ctx, source) {
		return "", false
	}
	if err := s.Loader.Status().Peek().Err(source); err != nil {
		return fmt.Sprintf("Failed to load details: %v", err), true
	}
	return LoadingDetails, true
}

// Close stops the watcher, waits for in-flight loads and disposes the
// scope's extensions.
func (s *Session) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	loadErr := s.Loader.Wait()
	if err := s.Scope.Dispose(); err != nil {
		return err
	}
	var le *dataset.LoadError
	if loadErr != nil && !errors.As(loadErr, &le) {
		return loadErr
	}
	return nil
}
