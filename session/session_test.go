package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/config"
	"github.com/pumped-fn/mscan-go/dataset"
	"github.com/pumped-fn/mscan-go/listing"
)

const runDoc = `{"testcases": {
	"!fields": ["calls", "pathid", "testno", "runid", "nshared"],
	"!data": [
		[31, "open_read", 0, 0, "linux", 1],
		[20, 1, 0],
		[1, "stat"]
	]
}}`

const detailDoc = `{"testcases": [
	{"calls": "open_read", "pathid": 0, "testno": 0, "runid": "linux",
	 "shared": [{"stack": 0}]}
], "stacks": {"0": "sys_read"}}`

func memFetcher(docs map[string]string) dataset.Fetcher {
	return dataset.FetcherFunc(func(ctx context.Context, source string) (io.ReadCloser, error) {
		doc, ok := docs[source]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(strings.NewReader(doc)), nil
	})
}

func TestSession_LoadAndSelect(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.Default()
	cfg.Sources = []string{"run.json"}
	sess, err := New(cfg,
		WithLogger(zaptest.NewLogger(t)),
		WithFetcher(memFetcher(map[string]string{"run.json": runDoc})),
	)
	require.NoError(t, err)

	require.NoError(t, sess.Start(context.Background(), "run.json"))
	require.NoError(t, sess.Wait())

	sess.Scope.Turn(func() {
		res := sess.Heatmap.Result()
		assert.Equal(t, []string{"open", "stat", "read"}, res.Calls)
		linux, ok := res.Facet("linux")
		require.True(t, ok)
		cell, ok := linux.CellAt(0, 0)
		require.True(t, ok)
		assert.Equal(t, 2, cell.Total)
		assert.Equal(t, 1, cell.Matched)
		assert.Equal(t, 3, sess.Listing.Model().Total)
	})

	sess.Heatmap.Select("linux", 0, 0)
	sess.Scope.Turn(func() {
		m := sess.Listing.Model()
		require.Len(t, m.Rows, 1)
		assert.Equal(t, "open_read_0_0_linux", m.Rows[0].ID)
	})

	id, ok := mscan.SessionID.Get(sess.Scope)
	assert.True(t, ok)
	assert.NotEmpty(t, id)

	require.NoError(t, sess.Close())
}

func TestSession_Detail(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.Default()
	cfg.DetailSources = map[string]string{"linux": "linux-detail.json"}
	sess, err := New(cfg, WithFetcher(memFetcher(map[string]string{
		"run.json":          runDoc,
		"linux-detail.json": detailDoc,
	})))
	require.NoError(t, err)

	require.NoError(t, sess.Start(context.Background(), "run.json"))
	require.NoError(t, sess.Wait())

	sess.Listing.Toggle("open_read_0_0_linux")
	row := func() listing.Row {
		var r listing.Row
		sess.Scope.Turn(func() { r = sess.Listing.Model().Rows[0] })
		return r
	}
	assert.Equal(t, LoadingDetails, row().Detail)

	require.NoError(t, sess.Wait())
	got := row()
	assert.True(t, got.Expanded)
	assert.Contains(t, got.Detail, "sys_read", "merged detail replaces the placeholder")

	sess.Scope.Turn(func() {
		assert.Equal(t, 3, sess.Dataset.Len(), "detail records merge into existing ones")
	})
	require.NoError(t, sess.Close())
}

func TestSession_DetailFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.Default()
	cfg.DetailSources = map[string]string{"linux": "gone.json"}
	sess, err := New(cfg, WithFetcher(memFetcher(map[string]string{"run.json": runDoc})))
	require.NoError(t, err)

	require.NoError(t, sess.Start(context.Background(), "run.json"))
	require.NoError(t, sess.Wait())

	id := "open_read_0_0_linux"
	sess.Listing.Toggle(id)
	assert.Error(t, sess.Wait())

	sess.Listing.Toggle(id)
	sess.Listing.Toggle(id)
	sess.Scope.Turn(func() {
		detail := sess.Listing.Model().Rows[0].Detail
		assert.True(t, strings.HasPrefix(detail, "Failed to load details: "), detail)
	})

	assert.NoError(t, sess.Close(), "load failures are reported through status, not Close")
}

func TestSession_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Heatmap.MatchField = ""
	_, err := New(cfg)
	assert.ErrorContains(t, err, "invalid config")
}

func TestSession_Watch(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	dir := filepath.Join(root, "incoming")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.json"), []byte(runDoc), 0o644))

	cfg := config.Default()
	cfg.Root = root
	cfg.WatchDir = dir
	sess, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sess.Start(ctx))

	require.Eventually(t, func() bool {
		var n int
		sess.Scope.Turn(func() { n = sess.Dataset.Len() })
		return n == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"incoming/run.json"}, sess.Dataset.Sources())
	require.NoError(t, sess.Close())
}

func TestWatchPrefix(t *testing.T) {
	prefix, ok := watchPrefix("/data", "/data/runs/new")
	assert.True(t, ok)
	assert.Equal(t, "runs/new", prefix)

	_, ok = watchPrefix("/data", "/data")
	assert.False(t, ok)
}
