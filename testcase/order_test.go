package testcase

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareCalls(t *testing.T) {
	assert.Less(t, CompareCalls("open", "read"), 0)
	assert.Greater(t, CompareCalls("memwrite", "close"), 0)
	assert.Equal(t, 0, CompareCalls("stat", "stat"))

	// Unknown names sort after every known name, then alphabetically.
	assert.Greater(t, CompareCalls("zzz", "memwrite"), 0)
	assert.Less(t, CompareCalls("aaa", "bbb"), 0)
	assert.Greater(t, CompareCalls("aaa", "open"), 0)
}

func TestSplitCallSeq(t *testing.T) {
	assert.Equal(t, []string{"open", "read"}, SplitCallSeq("read_open"))
	assert.Equal(t, []string{"stat"}, SplitCallSeq("stat"))
	assert.Equal(t, []string{"close", "pwrite", "custom"}, SplitCallSeq("custom_pwrite_close"))
}

func TestCompareCallSeqs(t *testing.T) {
	assert.Equal(t, 0, CompareCallSeqs("read_open", "open_read"), "written order does not matter")
	assert.Less(t, CompareCallSeqs("open_read", "open_write"), 0)
	assert.Less(t, CompareCallSeqs("open", "open_read"), 0, "prefix sorts first")
	assert.Greater(t, CompareCallSeqs("link_stat", "open_stat"), 0)
}

func TestCallOrder_Custom(t *testing.T) {
	o := NewCallOrder([]string{"write", "read", "write"})
	assert.Equal(t, []string{"write", "read", "write"}, o.Seq())
	assert.Less(t, o.Compare("write", "read"), 0, "first listing wins")
	assert.Equal(t, []string{"write", "read", "open"}, o.Split("open_read_write"))
}

func rec(calls string, pathid, testno int, runid string) *TestCase {
	tc := New(map[string]any{
		FieldCalls:  calls,
		FieldPathID: json.Number(strconv.Itoa(pathid)),
		FieldTestNo: json.Number(strconv.Itoa(testno)),
		FieldRunID:  runid,
	})
	tc.Rebuild()
	return tc
}

func TestSortRecords(t *testing.T) {
	a := rec("open_read", 1, 0, "linux")
	b := rec("open_read", 0, 2, "linux")
	c := rec("open", 5, 0, "linux")
	d := rec("read_open", 0, 2, "sv6")
	e := rec("open_read", 0, 1, "linux")

	records := []*TestCase{a, b, c, d, e}
	DefaultOrder.SortRecords(records)

	assert.Equal(t, []*TestCase{c, e, b, d, a}, records)
}

func TestSortRecords_Stable(t *testing.T) {
	// Records differing only in fields outside the sort key keep their order.
	x := New(map[string]any{FieldCalls: "stat", "note": "x"})
	y := New(map[string]any{FieldCalls: "stat", "note": "y"})
	z := New(map[string]any{FieldCalls: "stat", "note": "z"})

	records := []*TestCase{y, x, z}
	DefaultOrder.SortRecords(records)
	assert.Equal(t, []*TestCase{y, x, z}, records)
}

func TestView(t *testing.T) {
	a, b, c := rec("open", 0, 0, "r"), rec("read", 0, 0, "r"), rec("stat", 0, 0, "r")
	v := NewView([]*TestCase{a, b, c})

	assert.Equal(t, 3, v.Len())
	assert.Same(t, b, v.At(1))
	assert.Equal(t, 2, v.Take(2).Len())
	assert.Same(t, v, v.Take(10))
	assert.Equal(t, 0, v.Take(-1).Len())

	var nilView *View
	assert.Equal(t, 0, nilView.Len())
	for range nilView.All() {
		t.Fatal("nil view must not yield")
	}

	odd := v.Where(func(tc *TestCase) bool { return tc != b })
	assert.Equal(t, []*TestCase{a, c}, odd.Slice())

	assert.True(t, v.SameItems(NewView([]*TestCase{a, b, c})))
	assert.False(t, v.SameItems(NewView([]*TestCase{a, c, b})))
	assert.True(t, Empty().SameItems(nilView))

	var seen []*TestCase
	for i, tc := range v.All() {
		if i == 2 {
			break
		}
		seen = append(seen, tc)
	}
	assert.Equal(t, []*TestCase{a, b}, seen)
}
