package docval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValuePrimitives(t *testing.T) {
	cases := []struct {
		json string
		want Value
	}{
		{"null", Null{}},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{`"hello"`, String("hello")},
		{"42", Number("42")},
		{"1.50", Number("1.50")},
	}
	for _, c := range cases {
		got, err := UnmarshalValue([]byte(c.json))
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestUnmarshalValueObjectAndArray(t *testing.T) {
	got, err := UnmarshalValue([]byte(`{"a":1,"b":[1,2,3]}`))
	require.NoError(t, err)
	obj, ok := got.(Object)
	require.True(t, ok)
	assert.Equal(t, Number("1"), obj["a"])
	arr, ok := obj["b"].(Array)
	require.True(t, ok)
	assert.Len(t, arr, 3)
}

func TestNumberPreservesOriginalFormatting(t *testing.T) {
	got, err := UnmarshalValue([]byte("1.50"))
	require.NoError(t, err)
	n, ok := got.(Number)
	require.True(t, ok)
	out, err := MarshalValue(n)
	require.NoError(t, err)
	assert.Equal(t, "1.50", string(out))
}

func TestObjectMarshalRoundTrip(t *testing.T) {
	obj := Object{
		"saying": String("good"),
		"id":     NewNumberFromInt64(1),
	}
	data, err := MarshalValue(obj)
	require.NoError(t, err)
	got, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, obj, got)
}

func TestObjectSortedKeysIsRFC8785Order(t *testing.T) {
	obj := Object{
		"b": Null{},
		"a": Null{},
		"é": Null{}, // é, encodes as a single UTF-16 unit above ASCII
	}
	keys := obj.SortedKeys()
	assert.Equal(t, []string{"a", "b", "é"}, keys)
}

func TestObjectMarshalJSONEmitsSortedKeys(t *testing.T) {
	obj := Object{"z": Null{}, "a": Null{}, "m": Null{}}
	out, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"m":null,"z":null}`, string(out))
}

func TestAsGoConvertsNestedStructures(t *testing.T) {
	doc := Object{
		"a": NewNumberFromInt64(1),
		"b": NewArray(NewString("x"), NewBool(true), Null{}),
	}
	got := AsGo(doc)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	arr, ok := m["b"].([]any)
	require.True(t, ok)
	assert.Equal(t, "x", arr[0])
	assert.Equal(t, true, arr[1])
	assert.Nil(t, arr[2])
}

func TestNumberInt64AndFloat64(t *testing.T) {
	n := NewNumberFromInt64(42)
	i, err := n.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	f := NewNumberFromFloat64(1.5)
	got, err := f.Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
}
