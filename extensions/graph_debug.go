package extensions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
)

// GraphDebugExtension logs the stage graph when an operation fails.
//
// Usage:
//
//	ext := extensions.NewGraphDebugExtension(logger)
//	scope := mscan.NewScope(mscan.WithExtension(ext))
//
// Failures are logged at ERROR level with the rendered graph attached, each
// node marked with the outcome of its last operation.
type GraphDebugExtension struct {
	mscan.BaseExtension

	mu        sync.Mutex
	refreshed map[string]bool
	failed    map[string]error
	logger    *zap.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
func NewGraphDebugExtension(logger *zap.Logger) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: mscan.NewBaseExtension("graph-debug"),
		refreshed:     make(map[string]bool),
		failed:        make(map[string]error),
		logger:        logger,
	}
}

// Wrap tracks operation outcomes per node
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() error, op *mscan.Operation) error {
	err := next()

	if op.Kind != mscan.OpRefresh && op.Kind != mscan.OpLoad {
		return err
	}

	e.mu.Lock()
	if err == nil {
		e.refreshed[op.Name] = true
		delete(e.failed, op.Name)
	} else {
		delete(e.refreshed, op.Name)
		e.failed[op.Name] = err
	}
	e.mu.Unlock()

	return err
}

// OnError logs the stage graph with the failing node marked
func (e *GraphDebugExtension) OnError(err error, op *mscan.Operation, scope *mscan.Scope) {
	e.logger.Error("Operation Error",
		zap.String("node", op.Name),
		zap.String("operation", string(op.Kind)),
		zap.Error(err),
		zap.String("dependency_graph", e.Format(scope.Graph(), op.Name)),
	)
}

// Format renders g with each node marked by its last known outcome.
func (e *GraphDebugExtension) Format(g *mscan.Graph, failedNode string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return FormatGraph(g, func(node string) string {
		switch {
		case node == failedNode:
			return " ❌ FAILED"
		case e.refreshed[node]:
			return " ✓"
		}
		if err, ok := e.failed[node]; ok {
			return fmt.Sprintf(" ❌ (error: %v)", err)
		}
		return ""
	})
}

// FormatGraph renders g as an indented tree from its roots. mark, if not
// nil, returns a suffix for each node.
func FormatGraph(g *mscan.Graph, mark func(node string) string) string {
	if mark == nil {
		mark = func(string) string { return "" }
	}

	roots := g.Roots()
	if len(roots) == 0 {
		return "\n(empty - no stages registered)"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	visited := make(map[string]bool)
	for _, root := range roots {
		fmt.Fprintf(&sb, "  %s%s\n", root, mark(root))
		writeChildren(&sb, g, root, "    ", mark, visited)
	}
	return sb.String()
}

func writeChildren(sb *strings.Builder, g *mscan.Graph, node, indent string, mark func(string) string, visited map[string]bool) {
	if visited[node] {
		return
	}
	visited[node] = true

	children := g.GetDirectDependents(node)
	for i, child := range children {
		branch, next := "├─> ", "│   "
		if i == len(children)-1 {
			branch, next = "└─> ", "    "
		}
		fmt.Fprintf(sb, "%s%s%s%s\n", indent, branch, child, mark(child))
		writeChildren(sb, g, child, indent+next, mark, visited)
	}
}
