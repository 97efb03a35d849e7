package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/jsonxl/internal/value"
)

func mustParse(t *testing.T, s string) value.Value {
	t.Helper()
	v, err := value.ParseString(s)
	require.NoError(t, err)
	return v
}

func texts(row *Row) map[string]string {
	out := make(map[string]string, row.Len())
	for _, e := range row.Entries() {
		out[e.Key] = e.Value.String()
	}
	return out
}

func TestFlatten_NestedKeys(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	row := f.Flatten(mustParse(t, `{"a": 1, "b": {"c": [2, 3], "d": {"e": "x"}}, "f": [{"g": true}, null]}`))

	assert.Equal(t, []string{"a", "b.c[0]", "b.c[1]", "b.d.e", "f[0].g", "f[1]"}, row.Keys())
	assert.Equal(t, map[string]string{
		"a":      "1",
		"b.c[0]": "2",
		"b.c[1]": "3",
		"b.d.e":  "x",
		"f[0].g": "true",
		"f[1]":   "null",
	}, texts(row))
}

func TestFlatten_EmptyContainers(t *testing.T) {
	f := NewFlattener(DefaultOptions())

	tests := []struct {
		name  string
		input string
		key   string
		want  string
	}{
		{"empty array under key", `{"tags": []}`, "tags", "[]"},
		{"nested empty array", `{"a": [[]]}`, "a[0]", "[]"},
		{"top-level empty array", `[]`, "", "[]"},
		{"top-level empty object", `{}`, "", "{}"},
		{"only empty objects below the root", `{"a": {"b": {}}}`, "", "{}"},
		{"array of empty objects", `[{}, {}]`, "", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := f.Flatten(mustParse(t, tt.input))
			require.Equal(t, 1, row.Len())
			e, ok := row.Get(tt.key)
			require.True(t, ok)
			assert.True(t, e.Empty)
			assert.Equal(t, tt.want, e.Value.String())
		})
	}
}

func TestFlatten_NestedEmptyObjectContributesNothing(t *testing.T) {
	f := NewFlattener(DefaultOptions())

	row := f.Flatten(mustParse(t, `{"a": {}, "b": 1}`))
	assert.Equal(t, []string{"b"}, row.Keys())

	row = f.Flatten(mustParse(t, `{"meta": {}, "tags": [{}, 2], "x": {"y": {}, "z": null}}`))
	assert.Equal(t, []string{"tags[1]", "x.z"}, row.Keys())
}

func TestFlatten_TopLevelPrimitive(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	for _, in := range []string{`42`, `"text"`, `null`, `false`} {
		row := f.Flatten(mustParse(t, in))
		require.Equal(t, 1, row.Len(), in)
		assert.Equal(t, []string{""}, row.Keys(), in)
	}
}

func TestFlatten_ArrayIndices(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	row := f.FlattenUnder(mustParse(t, `[10, 20, 30, 40]`), "p")
	assert.Equal(t, []string{"p[0]", "p[1]", "p[2]", "p[3]"}, row.Keys())
}

func TestFlatten_AlwaysNonEmpty(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	inputs := []string{`null`, `[]`, `{}`, `[{}]`, `{"a":{}}`, `[[],[[]]]`, `{"a":{"b":{"c":{}}}}`}
	for _, in := range inputs {
		assert.Positive(t, f.Flatten(mustParse(t, in)).Len(), in)
	}
}

func TestFlatten_IdempotentOnFlatInput(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	first := f.Flatten(mustParse(t, `{"a": {"b": [1, {"c": "x"}], "d": []}, "e": null}`))

	// Reinterpret the flat row as an object of primitives and flatten again.
	members := make([]value.Member, 0, first.Len())
	for _, e := range first.Entries() {
		members = append(members, value.Member{Key: e.Key, Value: e.Value})
	}
	second := f.Flatten(value.Object(members...))

	assert.Equal(t, first.Keys(), second.Keys())
	assert.Equal(t, texts(first), texts(second))
}

func TestFlatten_Deterministic(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	v := mustParse(t, `{"x": [{"y": 1}, {"y": 2}], "z": {"w": "v"}}`)
	assert.Equal(t, f.FlattenUnder(v, "root").Keys(), f.FlattenUnder(v, "root").Keys())
	assert.Equal(t, []string{"root.x[0].y", "root.x[1].y", "root.z.w"}, f.FlattenUnder(v, "root").Keys())
}

func TestFlatten_CustomOptions(t *testing.T) {
	f := NewFlattener(Options{
		Separator:   "/",
		ArrayPrefix: "#",
		ArraySuffix: "",
		EmptyArray:  "(none)",
		EmptyObject: "(empty)",
	})
	row := f.Flatten(mustParse(t, `{"a": {"b": [1]}, "c": [], "d": {}}`))
	assert.Equal(t, []string{"a/b#0", "c"}, row.Keys())
	assert.Equal(t, "(none)", texts(row)["c"])

	root := f.Flatten(mustParse(t, `{}`))
	assert.Equal(t, "(empty)", texts(root)[""])
}

func TestFlatten_CollidingKeysKeepFirstPosition(t *testing.T) {
	f := NewFlattener(DefaultOptions())
	row := f.Flatten(mustParse(t, `{"a.b": 1, "a": {"b": 2}, "z": 3}`))
	assert.Equal(t, []string{"a.b", "z"}, row.Keys())
	assert.Equal(t, "2", texts(row)["a.b"])
}
