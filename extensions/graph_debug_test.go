package extensions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	mscan "github.com/pumped-fn/mscan-go"
)

func double(n int) int { return n * 2 }

func buildChain(t *testing.T, scope *mscan.Scope) *mscan.Cell[int] {
	t.Helper()
	src := mscan.NewCell(scope, 1, mscan.WithName("source"))
	scope.Turn(func() {
		mscan.NewPipeline(scope, src).
			Then(func(s *mscan.Scope, in *mscan.Cell[int]) mscan.Stage[int] {
				return mscan.NewFuncStage(s, "double", in, double)
			}).
			Then(func(s *mscan.Scope, in *mscan.Cell[int]) mscan.Stage[int] {
				return mscan.NewFuncStage(s, "quadruple", in, double)
			})
	})
	return src
}

func TestGraphDebugExtension_OnError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ext := NewGraphDebugExtension(zap.New(core))
	scope := mscan.NewScope(mscan.WithExtension(ext))
	defer scope.Dispose()

	buildChain(t, scope)

	boom := errors.New("decode failed: unexpected token")
	err := scope.Run(&mscan.Operation{Kind: mscan.OpLoad, Name: "double"}, func() error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("Operation Error").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "double", fields["node"])
	assert.Equal(t, "load", fields["operation"])

	graph, ok := fields["dependency_graph"].(string)
	require.True(t, ok)
	assert.Contains(t, graph, "source")
	assert.Contains(t, graph, "double ❌ FAILED")
	assert.Contains(t, graph, "quadruple ✓")
	assert.Contains(t, graph, "└─> double.out")
}

func TestGraphDebugExtension_RecoveryClearsFailure(t *testing.T) {
	ext := NewGraphDebugExtension(zap.NewNop())
	scope := mscan.NewScope(mscan.WithExtension(ext))
	defer scope.Dispose()

	buildChain(t, scope)

	_ = scope.Run(&mscan.Operation{Kind: mscan.OpRefresh, Name: "quadruple"}, func() error {
		return errors.New("stale input")
	})
	assert.Contains(t, ext.Format(scope.Graph(), ""), "quadruple ❌ (error: stale input)")

	_ = scope.Run(&mscan.Operation{Kind: mscan.OpRefresh, Name: "quadruple"}, func() error {
		return nil
	})
	assert.Contains(t, ext.Format(scope.Graph(), ""), "quadruple ✓")
}

func TestFormatGraph_Empty(t *testing.T) {
	scope := mscan.NewScope()
	assert.Contains(t, FormatGraph(scope.Graph(), nil), "empty")
}
