// Package mscan provides the reactive dataflow engine behind the mscan test
// case viewer.
//
// # Overview
//
// The engine is built from three pieces:
//
//  1. Cells: memoized values that invalidate their readers when written
//  2. Stages: units that read one cell and own one output cell
//  3. Scopes: session-wide owners of subscriber versions, extensions and
//     the turn lock
//
// # Cells
//
// A reader registers itself by reading:
//
//	scope := mscan.NewScope()
//	counter := mscan.NewCell(scope, 0, mscan.WithName("counter"))
//
//	v := counter.Read(stage) // stage will be invalidated on the next change
//
// Writing an equal value does nothing. Writing a different value clears the
// reader set and invalidates each reader at most once, even if it read the
// cell several times or was already invalidated by another cell in the same
// turn:
//
//	counter.Write(1) // stage.Invalidate() runs once
//	counter.Write(2) // nothing: stage has not read counter again
//
// # Stages and Pipelines
//
// Stages are chained by feeding one's output cell to the next:
//
//	p := mscan.NewPipeline(scope, dataset.Output()).
//	    Then(heatmap.Builder(heatmap.WithPredicate(pred))).
//	    Then(listing.Builder())
//
// Refreshing the first stage writes its output, which invalidates the next
// stage if it read that output since its own last refresh. Several
// pipelines may Branch from the same cell.
//
// # Turns
//
// Every cascade triggered from outside the graph must run inside
// Scope.Turn. Stage methods that take user input (selection, paging) enter
// the turn themselves; asynchronous load completions do the same.
//
// # Extensions
//
// Extensions wrap refreshes, writes, merges and loads:
//
//	scope := mscan.NewScope(
//	    mscan.WithExtension(extensions.NewLoggingExtension(logger)),
//	)
//
// # Tags
//
// Tags provide type-safe metadata for scopes:
//
//	scope := mscan.NewScope(mscan.WithTag(mscan.SessionID, id))
//	id, ok := mscan.SessionID.Get(scope)
//
// # Thread Safety
//
// Cells are not safe for concurrent use on their own. Serialise access with
// Scope.Turn or use a Controller.
package mscan
