package dataset

import (
	"sync"

	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/testcase"
)

// Dataset is the merged record set of a session. It grows monotonically:
// records are appended or merged into, never removed.
type Dataset struct {
	scope  *mscan.Scope
	order  *testcase.CallOrder
	logger *zap.Logger

	records []*testcase.TestCase
	byID    map[string]*testcase.TestCase
	output  *mscan.Cell[*testcase.View]

	sourcesMu sync.Mutex
	sources   []string
	requested map[string]bool
}

// Option configures a Dataset
type Option func(*Dataset)

// WithCallOrder sets the canonical operation order used for sorting.
func WithCallOrder(order *testcase.CallOrder) Option {
	return func(d *Dataset) {
		d.order = order
	}
}

// WithLogger sets the dataset's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dataset) {
		d.logger = logger
	}
}

// New creates an empty dataset publishing through a cell in scope.
func New(scope *mscan.Scope, opts ...Option) *Dataset {
	d := &Dataset{
		scope:     scope,
		order:     testcase.DefaultOrder,
		logger:    zap.NewNop(),
		byID:      make(map[string]*testcase.TestCase),
		requested: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.output = mscan.NewCell(scope, testcase.Empty(), mscan.WithName("dataset"))
	return d
}

// Name identifies the dataset in the stage graph.
func (d *Dataset) Name() string {
	return "dataset"
}

// Output returns the cell publishing the ordered record set.
func (d *Dataset) Output() *mscan.Cell[*testcase.View] {
	return d.output
}

// Len returns the number of records merged so far. Call inside a turn.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Lookup returns the record with the given id. Call inside a turn.
func (d *Dataset) Lookup(id string) (*testcase.TestCase, bool) {
	tc, ok := d.byID[id]
	return tc, ok
}

// Request marks source as requested. It reports false if the source was
// already requested, whether or not its load has completed.
func (d *Dataset) Request(source string) bool {
	d.sourcesMu.Lock()
	defer d.sourcesMu.Unlock()
	if d.requested[source] {
		return false
	}
	d.requested[source] = true
	d.sources = append(d.sources, source)
	return true
}

// Sources returns the requested source identifiers in request order.
func (d *Dataset) Sources() []string {
	d.sourcesMu.Lock()
	defer d.sourcesMu.Unlock()
	return append([]string(nil), d.sources...)
}

// Add merges records into the dataset: a full outer join on id where new
// ids are appended and known ids have each supplied field overwritten. The
// set is then re-sorted and published as a new view. Must run inside a
// turn.
func (d *Dataset) Add(records []*testcase.TestCase) {
	op := &mscan.Operation{
		Kind:    mscan.OpMerge,
		Name:    d.Name(),
		Records: len(records),
	}
	_ = d.scope.Run(op, func() error {
		added, merged := 0, 0
		for _, rec := range records {
			id := rec.ID()
			if pre, ok := d.byID[id]; ok {
				pre.Merge(rec)
				merged++
				continue
			}
			d.records = append(d.records, rec)
			d.byID[id] = rec
			added++
		}

		d.order.SortRecords(d.records)
		d.logger.Debug("merged records",
			zap.Int("added", added),
			zap.Int("merged", merged),
			zap.Int("total", len(d.records)),
		)
		return nil
	})

	d.output.Write(testcase.NewView(append([]*testcase.TestCase(nil), d.records...)))
}
