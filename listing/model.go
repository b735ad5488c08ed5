// Package listing implements the record-listing stage: it turns the
// records reaching it into a paginated table model and passes them through
// unchanged.
package listing

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/pumped-fn/mscan-go/testcase"
)

// Paging constants.
const (
	InitialLimit = 10
	Increment    = 100
	// MaxValueWidth is where rendered JSON values are cut.
	MaxValueWidth = 32
)

// ColumnOrder lists the columns shown first, in this order.
var ColumnOrder = []string{
	testcase.FieldCalls, testcase.FieldPath, testcase.FieldTest,
	testcase.FieldID, testcase.FieldShared,
}

// Hidden lists fields never shown as columns; they are folded into path,
// test and id.
var Hidden = []string{testcase.FieldRunID, testcase.FieldPathID, testcase.FieldTestNo}

// Style tells a consumer how to present a cell.
type Style int

const (
	StylePlain Style = iota
	// StyleMissing marks a value the record does not carry.
	StyleMissing
	// StyleAlert marks a value worth attention, such as shared state.
	StyleAlert
	// StyleElided marks a value shortened to its last component.
	StyleElided
)

// Cell is one formatted table cell. A blank cell repeats the value above.
type Cell struct {
	Text  string
	Style Style
	Blank bool
}

// Row is one record of the table.
type Row struct {
	ID       string
	Record   *testcase.TestCase
	Cells    []Cell
	Expanded bool
	Detail   string
}

// Model is the table a consumer renders.
type Model struct {
	Columns []string
	Rows    []Row
	// More is the number of records past the current page.
	More  int
	Total int
}

// Columns collects the visible field names of records, ordered by
// ColumnOrder and then alphabetically.
func Columns(records *testcase.View) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, tc := range records.All() {
		for _, name := range tc.Fields() {
			if isHidden(name) || seen[name] {
				continue
			}
			seen[name] = true
			cols = append(cols, name)
		}
	}

	sort.SliceStable(cols, func(i, j int) bool {
		ri, rj := columnRank(cols[i]), columnRank(cols[j])
		if ri == rj {
			return cols[i] < cols[j]
		}
		return ri < rj
	})
	return cols
}

func isHidden(name string) bool {
	for _, h := range Hidden {
		if h == name {
			return true
		}
	}
	return false
}

func columnRank(name string) int {
	for i, c := range ColumnOrder {
		if c == name {
			return i
		}
	}
	return len(ColumnOrder)
}

// FormatCell renders one field of a record.
func FormatCell(tc *testcase.TestCase, col string) Cell {
	val, ok := tc.Get(col)
	if c, handled := formatKnown(col, val, ok); handled {
		return c
	}

	switch v := val.(type) {
	case nil:
		if !ok {
			return Cell{Text: testcase.NA, Style: StyleMissing}
		}
	case string:
		return Cell{Text: v}
	}

	data, err := json.Marshal(val)
	if err != nil {
		return Cell{Text: testcase.NA, Style: StyleMissing}
	}
	text := string(data)
	if len(text) > MaxValueWidth {
		text = text[:MaxValueWidth] + "..."
	}
	return Cell{Text: text}
}

func formatKnown(col string, val any, present bool) (Cell, bool) {
	switch col {
	case testcase.FieldShared:
		shared, ok := val.([]any)
		if !ok {
			return Cell{}, false
		}
		text := strconv.Itoa(len(shared)) + " addrs"
		if len(shared) == 0 {
			return Cell{Text: text}, true
		}
		return Cell{Text: text, Style: StyleAlert}, true

	case testcase.FieldPath, testcase.FieldTest, testcase.FieldID:
		s, ok := val.(string)
		if !present || !ok {
			return Cell{}, false
		}
		parts := strings.Split(s, "_")
		return Cell{Text: "..." + parts[len(parts)-1], Style: StyleElided}, true
	}
	return Cell{}, false
}

// sameValue reports whether two field values are the same value: equal
// scalars, or the same slice or map.
func sameValue(a any, aok bool, b any, bok bool) bool {
	if !aok || !bok {
		return aok == bok
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() {
		return ra.IsValid() == rb.IsValid()
	}
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Len() == rb.Len() && ra.Pointer() == rb.Pointer()
	case reflect.Map:
		return ra.Pointer() == rb.Pointer()
	}
	if !ra.Type().Comparable() {
		return false
	}
	return a == b
}
