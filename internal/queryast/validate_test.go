package queryast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/squrilerr"
)

func mustPath(t *testing.T, raw string) pathmodel.Path {
	p, err := pathmodel.Parse(raw)
	require.NoError(t, err)
	return p
}

func TestValidateAggregateAloneIsFine(t *testing.T) {
	q := &Query{Select: []SelectTerm{{Func: FuncSum, Path: mustPath(t, "a")}}}
	assert.NoError(t, Validate(q))
}

func TestValidateMixedAggregateRequiresGroupBy(t *testing.T) {
	q := &Query{Select: []SelectTerm{
		{Func: FuncAvg, Path: mustPath(t, "a")},
		{Path: mustPath(t, "b")},
	}}
	err := Validate(q)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestValidateMixedAggregateCoveredByGroupByPasses(t *testing.T) {
	q := &Query{
		Select:  []SelectTerm{{Func: FuncSum, Path: mustPath(t, "a")}, {Path: mustPath(t, "b")}},
		GroupBy: []pathmodel.Path{mustPath(t, "b")},
	}
	assert.NoError(t, Validate(q))
}

func TestValidateDoubleWildcardInSelectIsRejected(t *testing.T) {
	q := &Query{Select: []SelectTerm{{Path: mustPath(t, "x[*].y[*]")}}}
	err := Validate(q)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestValidateDoubleWildcardInWhereIsRejected(t *testing.T) {
	q := &Query{Where: Leaf{Path: mustPath(t, "x[*].y[*]"), Op: OpEq, Value: LitString("v")}}
	err := Validate(q)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestValidateRangeInversionIsRejected(t *testing.T) {
	q := &Query{Range: &RangeTerm{Start: 5, End: 2}}
	err := Validate(q)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestValidateRangeNonInvertedPasses(t *testing.T) {
	q := &Query{Range: &RangeTerm{Start: 2, End: 3}}
	assert.NoError(t, Validate(q))
}

func TestHasAggregatesAndHasNonAggregates(t *testing.T) {
	q := Query{Select: []SelectTerm{
		{Func: FuncCount, Star: true},
		{Path: mustPath(t, "a")},
	}}
	assert.True(t, q.HasAggregates())
	assert.True(t, q.HasNonAggregates())
}
