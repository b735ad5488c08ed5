package mscan

import (
	"sort"
	"testing"
)

func TestController(t *testing.T) {
	scope := NewScope()
	cell := NewCell(scope, 10, WithName("limit"))
	ctrl := Accessor(scope, cell)

	if got := ctrl.Get(); got != 10 {
		t.Errorf("Expected 10, got %d", got)
	}

	var seen []int
	ctrl.Subscribe(func(v int) { seen = append(seen, v) })

	ctrl.Update(20)
	ctrl.Set(30)

	if len(seen) != 1 || seen[0] != 20 {
		t.Errorf("Expected a single notification with 20, got %v", seen)
	}
	if got := ctrl.Get(); got != 30 {
		t.Errorf("Expected 30, got %d", got)
	}
}

func trackedVersions(scope *Scope) int {
	scope.mu.RLock()
	defer scope.mu.RUnlock()
	return len(scope.versions)
}

func TestController_SubscribeReleasesVersions(t *testing.T) {
	scope := NewScope()
	cell := NewCell(scope, 0, WithName("counter"))
	ctrl := Accessor(scope, cell)

	for i := 1; i <= 50; i++ {
		ctrl.Subscribe(func(int) {})
		ctrl.Set(i)
	}
	if n := trackedVersions(scope); n != 0 {
		t.Errorf("Expected fired subscribers to be forgotten, %d still tracked", n)
	}

	stop := ctrl.Watch(func(int) {})
	ctrl.Set(100)
	if n := trackedVersions(scope); n != 1 {
		t.Errorf("Expected the active watcher to be tracked, got %d", n)
	}
	stop()
	ctrl.Set(101)
	if n := trackedVersions(scope); n != 0 {
		t.Errorf("Expected a stopped watcher to be forgotten, %d still tracked", n)
	}
}

func TestController_Watch(t *testing.T) {
	scope := NewScope()
	cell := NewCell(scope, "idle", WithName("status"))
	ctrl := Accessor(scope, cell)

	var seen []string
	stop := ctrl.Watch(func(v string) { seen = append(seen, v) })

	ctrl.Set("loading")
	ctrl.Set("loading")
	ctrl.Set("done")
	stop()
	ctrl.Set("idle")

	want := []string{"loading", "done"}
	if len(seen) != len(want) {
		t.Fatalf("Expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Notification %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestGraph_Export(t *testing.T) {
	scope := NewScope()
	src := NewCell(scope, 1, WithName("source"))

	scope.Turn(func() {
		NewPipeline(scope, src).
			Then(func(s *Scope, in *Cell[int]) Stage[int] { return newCountingStage(s, "double", in) }).
			Then(func(s *Scope, in *Cell[int]) Stage[int] { return newCountingStage(s, "triple", in) })
	})

	roots := scope.Graph().Roots()
	if len(roots) != 1 || roots[0] != "source" {
		t.Errorf("Expected root source, got %v", roots)
	}

	direct := scope.Graph().GetDirectDependents("double")
	if len(direct) != 1 || direct[0] != "double.out" {
		t.Errorf("Expected double.out, got %v", direct)
	}

	var live map[string][]string
	scope.Turn(func() { live = scope.ExportDependencyGraph() })

	if subs := live["source"]; len(subs) != 1 || subs[0] != "double" {
		t.Errorf("Expected double reading source, got %v", subs)
	}
	if subs := live["double.out"]; len(subs) != 1 || subs[0] != "triple" {
		t.Errorf("Expected triple reading double.out, got %v", subs)
	}
	if subs := live["triple.out"]; len(subs) != 0 {
		t.Errorf("Expected no readers of triple.out, got %v", subs)
	}

	names := make([]string, 0, len(scope.Graph().Cells()))
	for _, c := range scope.Graph().Cells() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	want := []string{"double.out", "source", "triple.out"}
	if len(names) != len(want) {
		t.Fatalf("Expected cells %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Cell %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestTags(t *testing.T) {
	root := NewTag[string]("source.root")
	scope := NewScope(WithTag(SessionID, "s-1"))

	if id, ok := SessionID.Get(scope); !ok || id != "s-1" {
		t.Errorf("Expected session id s-1, got %q (%v)", id, ok)
	}
	if _, ok := root.Get(scope); ok {
		t.Error("Expected unset tag to be missing")
	}
	if got := root.GetOrDefault(scope, "."); got != "." {
		t.Errorf("Expected default, got %s", got)
	}

	root.Set(scope, "/data")
	if got := root.GetOrDefault(scope, "."); got != "/data" {
		t.Errorf("Expected /data, got %s", got)
	}
	if root.Key() != "source.root" {
		t.Errorf("Unexpected key %s", root.Key())
	}
}
