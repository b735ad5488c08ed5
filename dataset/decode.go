// Package dataset decodes mscan result documents and maintains the merged,
// canonically ordered record set of a viewer session.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"

	"github.com/pumped-fn/mscan-go/testcase"
)

// Table keys of the delta-encoded form.
const (
	tableFields = "!fields"
	tableData   = "!data"
)

// StackKeys are the shared-state fields holding indices into the stack pool.
var StackKeys = []string{"stack", "stack1", "stack2"}

// Document is the wire form of one mscan result source.
type Document struct {
	// TestCases is either a delta-encoded table or an array of objects.
	TestCases json.RawMessage `json:"testcases"`
	// Stacks maps a pool index to a captured call stack.
	Stacks map[string]any `json:"stacks"`
}

// Decode reads a document from r and reconstructs its records. The only
// error is malformed JSON; records missing fields are kept with the
// fields absent.
func Decode(r io.Reader) ([]*testcase.TestCase, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return DecodeDocument(&doc)
}

// DecodeDocument reconstructs the records of an already parsed document.
func DecodeDocument(doc *Document) ([]*testcase.TestCase, error) {
	rows, err := Untablify(doc.TestCases)
	if err != nil {
		return nil, err
	}

	records := make([]*testcase.TestCase, len(rows))
	for i, row := range rows {
		records[i] = testcase.New(row)
	}
	ResolveStacks(records, doc.Stacks)
	for _, tc := range records {
		tc.Rebuild()
	}
	return records, nil
}

// Untablify expands the test case table. An array of objects passes
// through; a delta table is decoded row by row, each row depending on the
// previous decoded row. Anything else decodes to no records.
func Untablify(raw json.RawMessage) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	switch raw[0] {
	case '[':
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("decoding testcases: %w", err)
		}
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			obj, _ := item.(map[string]any)
			if obj == nil {
				obj = make(map[string]any)
			}
			out = append(out, obj)
		}
		return out, nil

	case '{':
		var table map[string]any
		if err := dec.Decode(&table); err != nil {
			return nil, fmt.Errorf("decoding testcases table: %w", err)
		}
		fields, okF := table[tableFields].([]any)
		data, okD := table[tableData].([]any)
		if !okF || !okD {
			return nil, nil
		}
		return decodeRows(fieldNames(fields), data), nil

	default:
		return nil, nil
	}
}

func fieldNames(fields []any) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = testcase.FormatValue(f)
	}
	return names
}

// decodeRows applies the delta rows in order. Bit j of a row's mask means
// field j changed; the row then carries one value per set bit, in field
// order, optionally followed by a base object for the new record.
func decodeRows(fields []string, data []any) []map[string]any {
	out := make([]map[string]any, 0, len(data))
	prev := map[string]any{}
	weights := make(map[uint64]int)

	for _, item := range data {
		row, _ := item.([]any)
		var mask uint64
		if len(row) > 0 {
			if m, ok := testcase.ToInt(row[0]); ok {
				mask = uint64(m)
			}
		}

		dw, ok := weights[mask]
		if !ok {
			dw = maskWeight(mask, len(fields))
			weights[mask] = dw
		}

		obj := baseObject(row, dw+1)

		deltapos := 1
		for j, name := range fields {
			var v any
			var present bool
			if j < 64 && mask&(1<<uint(j)) != 0 {
				if deltapos < len(row) {
					v, present = row[deltapos], true
				}
				deltapos++
			} else {
				v, present = prev[name]
			}
			if present {
				obj[name] = v
			} else {
				delete(obj, name)
			}
		}

		out = append(out, obj)
		prev = obj
	}
	return out
}

// maskWeight counts the set bits of mask that name one of n fields.
func maskWeight(mask uint64, n int) int {
	if n < 64 {
		mask &= (1 << uint(n)) - 1
	}
	return bits.OnesCount64(mask)
}

// baseObject returns a copy of the object at row[i] when present, or a
// fresh empty object.
func baseObject(row []any, i int) map[string]any {
	if i < len(row) {
		if base, ok := row[i].(map[string]any); ok {
			obj := make(map[string]any, len(base))
			for k, v := range base {
				obj[k] = v
			}
			return obj
		}
	}
	return make(map[string]any)
}

// ResolveStacks replaces stack pool indices in every shared-state entry by
// the pooled stacks. Indices missing from the pool resolve to nil. A nil
// pool leaves records untouched.
//
// Delta rows that leave the shared field unchanged alias the previous
// row's entries, so each record gets its own copy before resolution.
func ResolveStacks(records []*testcase.TestCase, pool map[string]any) {
	if pool == nil {
		return
	}
	for _, tc := range records {
		shared, ok := tc.Shared()
		if !ok {
			continue
		}
		resolved := make([]any, len(shared))
		for i, entry := range shared {
			obj, ok := entry.(map[string]any)
			if !ok {
				resolved[i] = entry
				continue
			}
			out := make(map[string]any, len(obj))
			for k, v := range obj {
				out[k] = v
			}
			for _, k := range StackKeys {
				idx, ok := out[k]
				if !ok || idx == nil {
					continue
				}
				out[k] = pool[testcase.FormatValue(idx)]
			}
			resolved[i] = out
		}
		tc.Set(testcase.FieldShared, resolved)
	}
}
