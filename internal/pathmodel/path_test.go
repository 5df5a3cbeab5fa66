package pathmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioslo/squril/internal/docval"
)

func TestParseBareKey(t *testing.T) {
	p, err := Parse("a")
	require.NoError(t, err)
	require.Len(t, p.Components, 1)
	assert.Equal(t, "a", p.Components[0].Key)
	assert.Equal(t, SelectorNone, p.Components[0].Selector)
	assert.Equal(t, "a", p.String())
}

func TestParseDottedKeys(t *testing.T) {
	p, err := Parse("a.b.c")
	require.NoError(t, err)
	require.Len(t, p.Components, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{
		p.Components[0].Key, p.Components[1].Key, p.Components[2].Key,
	})
}

func TestParseQuotedKeyWithDot(t *testing.T) {
	p, err := Parse("'a.b'.c")
	require.NoError(t, err)
	require.Len(t, p.Components, 2)
	assert.Equal(t, "a.b", p.Components[0].Key)
	assert.Equal(t, "c", p.Components[1].Key)
}

func TestParseArrayIndex(t *testing.T) {
	p, err := Parse("c[0]")
	require.NoError(t, err)
	require.Len(t, p.Components, 1)
	c := p.Components[0]
	assert.Equal(t, "c", c.Key)
	assert.Equal(t, SelectorIndex, c.Selector)
	assert.Equal(t, 0, c.Index)
	assert.False(t, c.HasSubPath())
	assert.Equal(t, "c[0]", p.String())
}

func TestParseArrayWildcard(t *testing.T) {
	p, err := Parse("x[*]")
	require.NoError(t, err)
	c := p.Components[0]
	assert.Equal(t, SelectorWildcard, c.Selector)
	assert.Equal(t, 1, p.WildcardCount())
	assert.Equal(t, "x[*]", p.String())
}

func TestParseIndexedSubpath(t *testing.T) {
	p, err := Parse("x[0|a]")
	require.NoError(t, err)
	c := p.Components[0]
	assert.Equal(t, SelectorIndex, c.Selector)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, []string{"a"}, c.SubPaths)
	assert.Equal(t, "x[0|a]", p.String())
}

func TestParseWildcardSubpathList(t *testing.T) {
	p, err := Parse("x[*|a,b]")
	require.NoError(t, err)
	c := p.Components[0]
	assert.Equal(t, SelectorWildcard, c.Selector)
	assert.Equal(t, []string{"a", "b"}, c.SubPaths)
}

func TestParseEmptyPathIsIllegal(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParseAmbiguousComponentIsRejected(t *testing.T) {
	_, err := Parse("x[0|[*]")
	assert.Error(t, err)
}

func TestWildcardCountAcrossComponents(t *testing.T) {
	p, err := Parse("a.x[*].y[*]")
	require.NoError(t, err)
	assert.Equal(t, 2, p.WildcardCount())
}

func TestEvalMissingKeyYieldsNull(t *testing.T) {
	p, err := Parse("missing")
	require.NoError(t, err)
	doc := docval.Object{"a": docval.NewNumberFromInt64(1)}
	got := Eval(p, doc)
	assert.Equal(t, docval.Null{}, got)
}

func TestEvalNestedObject(t *testing.T) {
	p, err := Parse("d.e")
	require.NoError(t, err)
	doc := docval.Object{"d": docval.Object{"e": docval.NewNumberFromInt64(4)}}
	got := Eval(p, doc)
	assert.Equal(t, docval.NewNumberFromInt64(4), got)
}

func TestEvalArrayIndex(t *testing.T) {
	p, err := Parse("c[0]")
	require.NoError(t, err)
	doc := docval.Object{"c": docval.NewArray(docval.NewNumberFromInt64(1), docval.NewNumberFromInt64(2))}
	got := Eval(p, doc)
	assert.Equal(t, docval.NewNumberFromInt64(1), got)
}

func TestEvalArrayIndexOutOfRangeYieldsNull(t *testing.T) {
	p, err := Parse("c[5]")
	require.NoError(t, err)
	doc := docval.Object{"c": docval.NewArray(docval.NewNumberFromInt64(1))}
	assert.Equal(t, docval.Null{}, Eval(p, doc))
}

func TestEvalWildcardSubpath(t *testing.T) {
	p, err := Parse("x[*|a]")
	require.NoError(t, err)
	doc := docval.Object{
		"x": docval.NewArray(
			docval.Object{"a": docval.NewNumberFromInt64(0), "b": docval.NewNumberFromInt64(1)},
			docval.Object{"a": docval.NewNumberFromInt64(77), "b": docval.NewNumberFromInt64(99)},
		),
	}
	got := Eval(p, doc)
	arr, ok := got.(docval.Array)
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.Equal(t, docval.NewNumberFromInt64(0), arr[0])
	assert.Equal(t, docval.NewNumberFromInt64(77), arr[1])
}

func TestEvalIndexedSubpathOnNonArrayYieldsNull(t *testing.T) {
	p, err := Parse("x[0|a]")
	require.NoError(t, err)
	doc := docval.Object{"x": docval.NewString("not an array")}
	assert.Equal(t, docval.Null{}, Eval(p, doc))
}
