package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumped-fn/mscan-go/testcase"
)

func TestUntablify_Array(t *testing.T) {
	rows, err := Untablify(json.RawMessage(`[{"calls":"open"}, 7, {"calls":"stat"}]`))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "open", rows[0]["calls"])
	assert.Empty(t, rows[1], "non-object entries decode to empty records")
	assert.Equal(t, "stat", rows[2]["calls"])
}

func TestUntablify_Delta(t *testing.T) {
	raw := json.RawMessage(`{
		"!fields": ["calls", "pathid", "testno", "runid"],
		"!data": [
			[15, "open_read", 0, 0, "linux"],
			[4, 1],
			[3, "stat", 9, {"nshared": 2}],
			[0]
		]
	}`)

	rows, err := Untablify(raw)
	require.NoError(t, err)

	want := []map[string]any{
		{"calls": "open_read", "pathid": json.Number("0"), "testno": json.Number("0"), "runid": "linux"},
		{"calls": "open_read", "pathid": json.Number("0"), "testno": json.Number("1"), "runid": "linux"},
		{"calls": "stat", "pathid": json.Number("9"), "testno": json.Number("1"), "runid": "linux", "nshared": json.Number("2")},
		{"calls": "stat", "pathid": json.Number("9"), "testno": json.Number("1"), "runid": "linux"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("decoded rows mismatch (-want +got):\n%s", diff)
	}
}

func TestUntablify_Degenerate(t *testing.T) {
	for _, raw := range []string{``, `null`, `"text"`, `{"!fields": ["a"]}`} {
		rows, err := Untablify(json.RawMessage(raw))
		assert.NoError(t, err, raw)
		assert.Empty(t, rows, raw)
	}

	_, err := Untablify(json.RawMessage(`[{"calls":`))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	doc := `{
		"testcases": [
			{"calls": "read_open", "pathid": 1, "testno": 0, "runid": "linux",
			 "shared": [{"stack": 0, "stack1": 5}, "raw"]},
			{"calls": "stat", "pathid": 2, "testno": 0, "runid": "linux", "nshared": 0}
		],
		"stacks": {"0": ["sys_open", "vfs_open"]}
	}`

	records, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "read_open_1_0_linux", first.ID())
	shared, ok := first.Shared()
	require.True(t, ok)
	entry := shared[0].(map[string]any)
	assert.Equal(t, []any{"sys_open", "vfs_open"}, entry["stack"])
	assert.Nil(t, entry["stack1"], "unknown pool index resolves to nil")
	assert.Equal(t, "raw", shared[1])

	second := records[1]
	assert.False(t, second.HasShared())
	s, ok := second.Shared()
	assert.True(t, ok)
	assert.Empty(t, s)
}

// encodeTable writes records as a delta-encoded document. Each row's mask
// flags the fields that differ from the previous record, fields outside
// the table go into a base object, and stacks are moved into a pool.
func encodeTable(t *testing.T, fields []string, records []map[string]any) string {
	t.Helper()
	inTable := make(map[string]bool, len(fields))
	for _, f := range fields {
		inTable[f] = true
	}

	pool := make(map[string]any)
	interned := make(map[string]string)
	intern := func(frames any) json.Number {
		key := fmt.Sprint(frames)
		idx, ok := interned[key]
		if !ok {
			idx = strconv.Itoa(len(interned))
			interned[key] = idx
			pool[idx] = frames
		}
		return json.Number(idx)
	}

	var data []any
	prev := map[string]any{}
	for _, rec := range records {
		enc := make(map[string]any, len(rec))
		for k, v := range rec {
			enc[k] = v
		}
		if shared, ok := rec["shared"].([]any); ok {
			pooled := make([]any, len(shared))
			for i, entry := range shared {
				obj, ok := entry.(map[string]any)
				if !ok {
					pooled[i] = entry
					continue
				}
				out := make(map[string]any, len(obj))
				for k, v := range obj {
					out[k] = v
				}
				for _, k := range StackKeys {
					if frames, ok := out[k]; ok {
						out[k] = intern(frames)
					}
				}
				pooled[i] = out
			}
			enc["shared"] = pooled
		}

		var mask uint64
		row := []any{nil}
		for j, f := range fields {
			if cmp.Equal(prev[f], enc[f]) {
				continue
			}
			mask |= 1 << uint(j)
			row = append(row, enc[f])
		}
		row[0] = mask

		base := make(map[string]any)
		for k, v := range enc {
			if !inTable[k] {
				base[k] = v
			}
		}
		if len(base) > 0 {
			row = append(row, base)
		}
		data = append(data, row)
		prev = enc
	}

	doc, err := json.Marshal(map[string]any{
		"testcases": map[string]any{"!fields": fields, "!data": data},
		"stacks":    pool,
	})
	require.NoError(t, err)
	return string(doc)
}

func TestDecode_RoundTrip(t *testing.T) {
	openStack := []any{"sys_open", "vfs_open"}
	shared := func() []any {
		return []any{map[string]any{"stack": openStack, "stack1": "trace"}, "raw"}
	}
	fields := []string{"calls", "pathid", "testno", "runid", "shared"}
	records := []map[string]any{
		{"calls": "open_read", "pathid": json.Number("0"), "testno": json.Number("0"), "runid": "linux", "shared": shared()},
		{"calls": "open_read", "pathid": json.Number("0"), "testno": json.Number("1"), "runid": "linux", "shared": shared()},
		{"calls": "open_read", "pathid": json.Number("0"), "testno": json.Number("2"), "runid": "linux", "shared": shared(), "note": "base only"},
		{"calls": "stat", "pathid": json.Number("3"), "testno": json.Number("2"), "runid": "linux", "shared": []any{}},
		{"calls": "stat", "pathid": json.Number("3"), "testno": json.Number("2"), "runid": "sv6", "shared": []any{}},
		{"calls": "stat", "pathid": json.Number("4"), "testno": json.Number("0"), "runid": "sv6",
			"shared": []any{map[string]any{"stack2": openStack}}},
	}

	doc := encodeTable(t, fields, records)
	assert.Contains(t, doc, `[4,1]`, "unchanged shared entries are left out of the row")

	decoded, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, decoded, len(records))

	for i, rec := range records {
		want := testcase.New(rec)
		want.Rebuild()
		if diff := cmp.Diff(want.Map(), decoded[i].Map()); diff != "" {
			t.Errorf("record %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	first, _ := decoded[0].Shared()
	second, _ := decoded[1].Shared()
	first[0].(map[string]any)["stack"] = nil
	assert.Equal(t, openStack, second[0].(map[string]any)["stack"], "records do not share entries")
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"testcases": [`))
	assert.Error(t, err)
}

func TestResolveStacks_NilPool(t *testing.T) {
	tc := testcase.New(map[string]any{"shared": []any{map[string]any{"stack": json.Number("1")}}})
	ResolveStacks([]*testcase.TestCase{tc}, nil)

	shared, _ := tc.Shared()
	assert.Equal(t, json.Number("1"), shared[0].(map[string]any)["stack"])
}

func TestMaskWeight(t *testing.T) {
	assert.Equal(t, 2, maskWeight(0b1010, 4))
	assert.Equal(t, 1, maskWeight(0b1010, 2), "bits past the field count are ignored")
	assert.Equal(t, 64, maskWeight(^uint64(0), 80))
}
