package testcase

import "iter"

// View is an immutable ordered sequence of test cases. Cells holding views
// compare them by pointer, so publishing a new View always signals a change
// and republishing the same View never does.
type View struct {
	items []*TestCase
}

// NewView wraps items. The slice is owned by the view and must not be
// modified afterwards.
func NewView(items []*TestCase) *View {
	return &View{items: items}
}

// Empty returns a view with no records.
func Empty() *View {
	return &View{}
}

// Len returns the number of records.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.items)
}

// At returns the i-th record.
func (v *View) At(i int) *TestCase {
	return v.items[i]
}

// All iterates over the records in order.
func (v *View) All() iter.Seq2[int, *TestCase] {
	return func(yield func(int, *TestCase) bool) {
		if v == nil {
			return
		}
		for i, tc := range v.items {
			if !yield(i, tc) {
				return
			}
		}
	}
}

// Slice returns a copy of the records.
func (v *View) Slice() []*TestCase {
	if v == nil {
		return nil
	}
	return append([]*TestCase(nil), v.items...)
}

// Take returns a view of at most n leading records.
func (v *View) Take(n int) *View {
	if n >= v.Len() {
		return v
	}
	if n < 0 {
		n = 0
	}
	return &View{items: v.items[:n:n]}
}

// Where returns a view of the records satisfying pred.
func (v *View) Where(pred func(*TestCase) bool) *View {
	var out []*TestCase
	for _, tc := range v.All() {
		if pred(tc) {
			out = append(out, tc)
		}
	}
	return &View{items: out}
}

// SameItems reports whether both views hold the identical records, by
// pointer, in the same order.
func (v *View) SameItems(other *View) bool {
	if v.Len() != other.Len() {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if v.items[i] != other.items[i] {
			return false
		}
	}
	return true
}
