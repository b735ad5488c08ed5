package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/testcase"
)

// ErrDuplicateSource is returned by LoadSource for a source that was
// already requested. Duplicate requests are otherwise ignored.
var ErrDuplicateSource = errors.New("source already requested")

// LoadError reports a source that could not be fetched or decoded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadStatus is an immutable snapshot of the loader's progress.
type LoadStatus struct {
	Pending []string
	Loaded  []string
	Failed  map[string]error
}

// Loading reports whether any load is still in flight.
func (s *LoadStatus) Loading() bool {
	return s != nil && len(s.Pending) > 0
}

// IsLoaded reports whether source loaded and merged successfully.
func (s *LoadStatus) IsLoaded(source string) bool {
	if s == nil {
		return false
	}
	for _, l := range s.Loaded {
		if l == source {
			return true
		}
	}
	return false
}

// Err returns the failure recorded for source, if any.
func (s *LoadStatus) Err(source string) error {
	if s == nil {
		return nil
	}
	return s.Failed[source]
}

// Loader issues asynchronous loads into a Dataset. Issuing a load returns
// immediately; fetch and decode run on a goroutine and the merge runs in a
// turn of the dataset's scope. Loads cannot be cancelled once issued.
type Loader struct {
	ds      *Dataset
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.Mutex
	group   *errgroup.Group
	pending map[string]bool
	loaded  []string
	failed  map[string]error
	status  *mscan.Cell[*LoadStatus]
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader fetching sources with fetcher.
func NewLoader(ds *Dataset, fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		ds:      ds,
		fetcher: fetcher,
		logger:  zap.NewNop(),
		group:   new(errgroup.Group),
		pending: make(map[string]bool),
		failed:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.status = mscan.NewCell(ds.scope, &LoadStatus{Failed: map[string]error{}}, mscan.WithName("load-status"))
	return l
}

// Status returns the cell publishing load progress. Stages may read it to
// show a loading indicator or failed sources.
func (l *Loader) Status() *mscan.Cell[*LoadStatus] {
	return l.status
}

// LoadSource requests source. The first request issues a fetch and returns
// nil; later requests for the same source return ErrDuplicateSource and do
// nothing. LoadSource may be called from inside or outside a turn.
func (l *Loader) LoadSource(ctx context.Context, source string) error {
	if !l.ds.Request(source) {
		return ErrDuplicateSource
	}

	l.mu.Lock()
	l.pending[source] = true
	g := l.group
	l.mu.Unlock()

	reqID := uuid.NewString()
	logger := l.logger.With(zap.String("source", source), zap.String("request_id", reqID))
	logger.Info("loading source")

	g.Go(func() error {
		l.publish()
		return l.load(ctx, source, logger)
	})
	return nil
}

// Ensure requests source if it was never requested and reports whether it
// has finished loading.
func (l *Loader) Ensure(ctx context.Context, source string) bool {
	_ = l.LoadSource(ctx, source)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.loaded {
		if s == source {
			return true
		}
	}
	return false
}

// Wait blocks until every load issued so far has completed and returns
// the first failure among them.
func (l *Loader) Wait() error {
	l.mu.Lock()
	g := l.group
	l.group = new(errgroup.Group)
	l.mu.Unlock()
	return g.Wait()
}

func (l *Loader) load(ctx context.Context, source string, logger *zap.Logger) error {
	start := time.Now()
	var records []*testcase.TestCase

	op := &mscan.Operation{Kind: mscan.OpLoad, Name: source}
	err := l.ds.scope.Run(op, func() error {
		rc, err := l.fetcher.Fetch(ctx, source)
		if err != nil {
			return err
		}
		defer rc.Close()

		records, err = Decode(rc)
		if err != nil {
			return mscan.NewStageError(l.ds.Name(), err, "decode "+source)
		}
		op.Records = len(records)
		return nil
	})

	if err != nil {
		loadErr := &LoadError{Source: source, Err: err}
		logger.Error("source failed to load", zap.Error(err))
		l.mu.Lock()
		delete(l.pending, source)
		l.failed[source] = loadErr
		l.mu.Unlock()
		l.publish()
		return loadErr
	}

	l.ds.scope.Turn(func() {
		l.mu.Lock()
		delete(l.pending, source)
		l.loaded = append(l.loaded, source)
		l.mu.Unlock()

		l.ds.Add(records)
		l.status.Write(l.snapshot())
	})

	logger.Info("loaded source",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// publish writes the current progress to the status cell.
func (l *Loader) publish() {
	l.ds.scope.Turn(func() {
		l.status.Write(l.snapshot())
	})
}

func (l *Loader) snapshot() *LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &LoadStatus{
		Loaded: append([]string(nil), l.loaded...),
		Failed: make(map[string]error, len(l.failed)),
	}
	for src := range l.pending {
		s.Pending = append(s.Pending, src)
	}
	sort.Strings(s.Pending)
	for src, err := range l.failed {
		s.Failed[src] = err
	}
	return s
}
