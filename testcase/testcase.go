// Package testcase defines the test case record produced by the mscan
// scanner, the canonical ordering of operation names and call sequences,
// and View, the immutable record sequence passed between stages.
package testcase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Well-known field names.
const (
	FieldCalls   = "calls"
	FieldPathID  = "pathid"
	FieldTestNo  = "testno"
	FieldRunID   = "runid"
	FieldPath    = "path"
	FieldTest    = "test"
	FieldID      = "id"
	FieldShared  = "shared"
	FieldNShared = "nshared"
)

// NA is printed in place of a value a record does not carry.
const NA = "NA"

// TestCase is one executed test scenario. Fields are kept as decoded JSON
// values (json.Number for numbers) because sources contribute arbitrary
// fields and later sources may fill in fields of earlier ones.
type TestCase struct {
	fields map[string]any
}

// New wraps fields as a test case. The map is owned by the test case.
func New(fields map[string]any) *TestCase {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &TestCase{fields: fields}
}

// Get returns a field value and whether the record carries it.
func (tc *TestCase) Get(name string) (any, bool) {
	v, ok := tc.fields[name]
	return v, ok
}

// Set stores a field value.
func (tc *TestCase) Set(name string, v any) {
	tc.fields[name] = v
}

// Delete removes a field.
func (tc *TestCase) Delete(name string) {
	delete(tc.fields, name)
}

// Fields returns the record's field names in sorted order.
func (tc *TestCase) Fields() []string {
	names := make([]string, 0, len(tc.fields))
	for name := range tc.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calls returns the call sequence, or "" when absent.
func (tc *TestCase) Calls() string {
	s, _ := tc.fields[FieldCalls].(string)
	return s
}

// CallNames splits the call sequence into its operation names.
func (tc *TestCase) CallNames() []string {
	return strings.Split(tc.Calls(), "_")
}

// ID returns the record's unique key.
func (tc *TestCase) ID() string {
	s, _ := tc.fields[FieldID].(string)
	return s
}

// Shared returns the shared-state entries. Entries decoded from a count
// alone are nil.
func (tc *TestCase) Shared() ([]any, bool) {
	s, ok := tc.fields[FieldShared].([]any)
	return s, ok
}

// HasShared reports whether the record carries at least one shared-state
// entry.
func (tc *TestCase) HasShared() bool {
	s, _ := tc.Shared()
	return len(s) > 0
}

// Merge copies every field of other over the receiver's fields. Fields the
// receiver has and other lacks are left alone.
func (tc *TestCase) Merge(other *TestCase) {
	for name, v := range other.fields {
		tc.fields[name] = v
	}
}

// Clone returns a shallow copy of the record.
func (tc *TestCase) Clone() *TestCase {
	fields := make(map[string]any, len(tc.fields))
	for name, v := range tc.fields {
		fields[name] = v
	}
	return New(fields)
}

// Map returns a copy of the record's fields.
func (tc *TestCase) Map() map[string]any {
	return tc.Clone().fields
}

// MarshalJSON encodes the record as a JSON object with sorted keys.
func (tc *TestCase) MarshalJSON() ([]byte, error) {
	return json.Marshal(tc.fields)
}

// UnmarshalJSON decodes a JSON object, keeping numbers as json.Number.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	fields := make(map[string]any)
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decoding test case: %w", err)
	}
	tc.fields = fields
	return nil
}

// FormatValue renders a scalar for identifier construction and labels.
// Missing values render as NA.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return NA
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Rebuild derives path, test and id from calls, pathid, testno and runid,
// and replaces an nshared count with a placeholder shared list of that
// length.
func (tc *TestCase) Rebuild() {
	path := FormatValue(tc.fields[FieldCalls]) + "_" + FormatValue(tc.fields[FieldPathID])
	test := path + "_" + FormatValue(tc.fields[FieldTestNo])
	tc.fields[FieldPath] = path
	tc.fields[FieldTest] = test
	tc.fields[FieldID] = test + "_" + FormatValue(tc.fields[FieldRunID])

	if n, ok := tc.fields[FieldNShared]; ok {
		count, _ := toInt(n)
		if count < 0 {
			count = 0
		}
		tc.fields[FieldShared] = make([]any, count)
		delete(tc.fields, FieldNShared)
	}
}
