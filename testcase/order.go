package testcase

import (
	"sort"
	"strings"
)

// DefaultCallSeq is the canonical priority of operation names.
var DefaultCallSeq = []string{
	"open", "link", "unlink", "rename", "stat",
	"fstat", "lseek", "close", "pipe", "read", "write", "pread", "pwrite",
	"mmap", "munmap", "mprotect", "memread", "memwrite",
}

// CallOrder ranks operation names by a fixed priority list. Names not in
// the list sort after every listed name, then alphabetically.
type CallOrder struct {
	rank map[string]int
	seq  []string
}

// NewCallOrder builds an order from a priority list.
func NewCallOrder(seq []string) *CallOrder {
	o := &CallOrder{
		rank: make(map[string]int, len(seq)),
		seq:  append([]string(nil), seq...),
	}
	for i, name := range seq {
		if _, dup := o.rank[name]; !dup {
			o.rank[name] = i
		}
	}
	return o
}

// DefaultOrder is the order built from DefaultCallSeq.
var DefaultOrder = NewCallOrder(DefaultCallSeq)

// Seq returns the priority list.
func (o *CallOrder) Seq() []string {
	return append([]string(nil), o.seq...)
}

func (o *CallOrder) rankOf(name string) int {
	if r, ok := o.rank[name]; ok {
		return r
	}
	return len(o.seq)
}

// Compare orders two operation names.
func (o *CallOrder) Compare(a, b string) int {
	ra, rb := o.rankOf(a), o.rankOf(b)
	if ra == rb {
		return strings.Compare(a, b)
	}
	return ra - rb
}

// Sort orders names in place.
func (o *CallOrder) Sort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return o.Compare(names[i], names[j]) < 0
	})
}

// Split splits a call sequence into operation names in canonical order.
func (o *CallOrder) Split(seq string) []string {
	parts := strings.Split(seq, "_")
	o.Sort(parts)
	return parts
}

// CompareSeqs orders two call sequences component-wise after
// canonicalising each; a sequence that is a prefix of the other sorts
// first. Sequences naming the same operations compare equal regardless of
// their written order.
func (o *CallOrder) CompareSeqs(a, b string) int {
	if a == b {
		return 0
	}
	s1, s2 := o.Split(a), o.Split(b)
	for i := 0; i < min(len(s1), len(s2)); i++ {
		if s1[i] != s2[i] {
			return o.Compare(s1[i], s2[i])
		}
	}
	return len(s1) - len(s2)
}

// CompareCalls orders two operation names by DefaultOrder.
func CompareCalls(a, b string) int {
	return DefaultOrder.Compare(a, b)
}

// SplitCallSeq splits a call sequence using DefaultOrder.
func SplitCallSeq(seq string) []string {
	return DefaultOrder.Split(seq)
}

// CompareCallSeqs orders two call sequences by DefaultOrder.
func CompareCallSeqs(a, b string) int {
	return DefaultOrder.CompareSeqs(a, b)
}

// CompareRecords orders two records canonically: by call sequence, then pathid,
// testno and runid.
func (o *CallOrder) CompareRecords(a, b *TestCase) int {
	if c := o.CompareSeqs(a.Calls(), b.Calls()); c != 0 {
		return c
	}
	for _, f := range []string{FieldPathID, FieldTestNo, FieldRunID} {
		av, _ := a.Get(f)
		bv, _ := b.Get(f)
		if c := CompareValues(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// SortRecords stably orders records with CompareRecords.
func (o *CallOrder) SortRecords(records []*TestCase) {
	sort.SliceStable(records, func(i, j int) bool {
		return o.CompareRecords(records[i], records[j]) < 0
	})
}
