package queryparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioslo/squril/internal/queryast"
	"github.com/unioslo/squril/internal/squrilerr"
)

func TestParseSelectSingleTerm(t *testing.T) {
	q, err := Parse("select=a")
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	assert.Equal(t, "a", q.Select[0].Path.String())
	assert.Equal(t, queryast.FuncNone, q.Select[0].Func)
}

func TestParseSelectMultipleTerms(t *testing.T) {
	q, err := Parse("select=a,c[0]")
	require.NoError(t, err)
	require.Len(t, q.Select, 2)
	assert.Equal(t, "a", q.Select[0].Path.String())
	assert.Equal(t, "c[0]", q.Select[1].Path.String())
}

func TestParseSelectFunction(t *testing.T) {
	q, err := Parse("select=sum(a)")
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	assert.Equal(t, queryast.FuncSum, q.Select[0].Func)
	assert.Equal(t, "a", q.Select[0].Path.String())
}

func TestParseSelectCountStar(t *testing.T) {
	q, err := Parse("select=count(*)")
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	assert.True(t, q.Select[0].Star)
	assert.Equal(t, queryast.FuncCount, q.Select[0].Func)
}

func TestParseSelectBareStarIsRejected(t *testing.T) {
	_, err := Parse("select=*")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseSelectWildcardSubpath(t *testing.T) {
	q, err := Parse("select=x[*|a]")
	require.NoError(t, err)
	assert.Equal(t, "x[*|a]", q.Select[0].Path.String())
}

func TestParseWhereSingleLeaf(t *testing.T) {
	q, err := Parse("where=a=eq.1")
	require.NoError(t, err)
	leaf, ok := q.Where.(queryast.Leaf)
	require.True(t, ok)
	assert.Equal(t, "a", leaf.Path.String())
	assert.Equal(t, queryast.OpEq, leaf.Op)
	assert.Equal(t, queryast.LitInt(1), leaf.Value)
}

func TestParseWhereStringLiteralWithEscapedQuote(t *testing.T) {
	q, err := Parse(`where=b=eq.'y\'all'`)
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.LitString("y'all"), leaf.Value)
}

func TestParseWhereStringLiteralWithEmbeddedComma(t *testing.T) {
	q, err := Parse(`where=b=eq.'foo,bar',and:a=eq.1`)
	require.NoError(t, err)
	conj, ok := q.Where.(queryast.Conj)
	require.True(t, ok)
	left := conj.Left.(queryast.Leaf)
	assert.Equal(t, queryast.LitString("foo,bar"), left.Value)
	right := conj.Right.(queryast.Leaf)
	assert.Equal(t, "a", right.Path.String())
}

func TestParseWhereLikeGlob(t *testing.T) {
	q, err := Parse("where=b=like.'*all'")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpLike, leaf.Op)
	assert.Equal(t, queryast.LitString("*all"), leaf.Value)
}

func TestParseWhereInList(t *testing.T) {
	q, err := Parse("where=b=in.[yo,man]")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpIn, leaf.Op)
	list, ok := leaf.Value.(queryast.LitList)
	require.True(t, ok)
	assert.Equal(t, queryast.LitList{queryast.LitString("yo"), queryast.LitString("man")}, list)
}

func TestParseWhereFloatLiteral(t *testing.T) {
	q, err := Parse("where=a=gt.3.14")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpGt, leaf.Op)
	assert.Equal(t, queryast.LitFloat(3.14), leaf.Value)
}

func TestParseWhereStringLiteralContainingDots(t *testing.T) {
	q, err := Parse("where=b=eq.'a.b@example.com'")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpEq, leaf.Op)
	assert.Equal(t, queryast.LitString("a.b@example.com"), leaf.Value)
}

func TestParseWhereIsNull(t *testing.T) {
	q, err := Parse("where=x=is.null")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpIs, leaf.Op)
	assert.False(t, leaf.Not)
}

func TestParseWhereNotIsNull(t *testing.T) {
	q, err := Parse("where=x=not.is.null")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpIs, leaf.Op)
	assert.True(t, leaf.Not)
}

func TestParseWhereIsNotNull(t *testing.T) {
	q, err := Parse("where=x=is.not.null")
	require.NoError(t, err)
	leaf := q.Where.(queryast.Leaf)
	assert.Equal(t, queryast.OpIs, leaf.Op)
	assert.True(t, leaf.Not)
}

func TestParseWhereAndCombinator(t *testing.T) {
	q, err := Parse("where=a=gte.0,and:b=eq.man")
	require.NoError(t, err)
	conj, ok := q.Where.(queryast.Conj)
	require.True(t, ok)
	left := conj.Left.(queryast.Leaf)
	right := conj.Right.(queryast.Leaf)
	assert.Equal(t, "a", left.Path.String())
	assert.Equal(t, "b", right.Path.String())
}

func TestParseWhereOrCombinator(t *testing.T) {
	q, err := Parse(`where=a=eq.1,or:b=eq.'y\'all'`)
	require.NoError(t, err)
	disj, ok := q.Where.(queryast.Disj)
	require.True(t, ok)
	assert.Equal(t, queryast.OpEq, disj.Left.(queryast.Leaf).Op)
}

func TestParseWhereLeftFoldsThreeTerms(t *testing.T) {
	q, err := Parse("where=a=eq.1,and:b=eq.2,or:c=eq.3")
	require.NoError(t, err)
	// (a=1 AND b=2) OR c=3, left-associated.
	top, ok := q.Where.(queryast.Disj)
	require.True(t, ok)
	inner, ok := top.Left.(queryast.Conj)
	require.True(t, ok)
	assert.Equal(t, "a", inner.Left.(queryast.Leaf).Path.String())
	assert.Equal(t, "b", inner.Right.(queryast.Leaf).Path.String())
	assert.Equal(t, "c", top.Right.(queryast.Leaf).Path.String())
}

func TestParseWhereFirstTermWithCombinatorIsRejected(t *testing.T) {
	_, err := Parse("where=and:a=eq.1")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseWhereSubsequentTermMissingCombinatorIsRejected(t *testing.T) {
	_, err := Parse("where=a=eq.1,b=eq.2")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseWhereMissingLiteralIsParseError(t *testing.T) {
	_, err := Parse("where=a=gt.")
	require.Error(t, err)
	var qe *squrilerr.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, squrilerr.KindParse, qe.Kind)
}

func TestParseWhereUnknownOperatorIsParseError(t *testing.T) {
	_, err := Parse("where=a=bogus.1")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseWhereMissingEqualsIsParseError(t *testing.T) {
	_, err := Parse("where=noequals")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseOrderAscDesc(t *testing.T) {
	q, err := Parse("order=a.desc")
	require.NoError(t, err)
	require.NotNil(t, q.Order)
	assert.Equal(t, queryast.Desc, q.Order.Direction)
	assert.Equal(t, "a", q.Order.Term.Path.String())
}

func TestParseOrderMissingDirectionIsParseError(t *testing.T) {
	_, err := Parse("order=a")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseOrderBadDirectionIsParseError(t *testing.T) {
	_, err := Parse("order=a.sideways")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseRangeInclusive(t *testing.T) {
	q, err := Parse("range=2.3")
	require.NoError(t, err)
	require.NotNil(t, q.Range)
	assert.Equal(t, 2, q.Range.Start)
	assert.Equal(t, 3, q.Range.End)
}

func TestParseRangeNonIntegerIsParseError(t *testing.T) {
	_, err := Parse("range=a.3")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseRangeOutOfIntRangeIsParseError(t *testing.T) {
	_, err := Parse("range=0.99999999999999999999")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseGroupBy(t *testing.T) {
	q, err := Parse("group_by=b")
	require.NoError(t, err)
	require.Len(t, q.GroupBy, 1)
	assert.Equal(t, "b", q.GroupBy[0].String())
}

func TestParseSetClauseBareTopLevelKeys(t *testing.T) {
	q, err := Parse("set=saying,id")
	require.NoError(t, err)
	assert.Equal(t, []string{"saying", "id"}, q.Set)
}

func TestParseSetClauseRejectsNestedPath(t *testing.T) {
	_, err := Parse("set=a.b")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParsePrimaryKey(t *testing.T) {
	q, err := Parse("primary_key=id")
	require.NoError(t, err)
	require.NotNil(t, q.PrimaryKey)
	assert.Equal(t, "id", q.PrimaryKey.String())
}

func TestParseMessageQuoted(t *testing.T) {
	q, err := Parse("message='fix'")
	require.NoError(t, err)
	assert.Equal(t, "fix", q.Message)
}

func TestParseMessageWithEscapedQuote(t *testing.T) {
	q, err := Parse(`message='it\'s fine'`)
	require.NoError(t, err)
	assert.Equal(t, "it's fine", q.Message)
}

func TestParseRestoreBareFlag(t *testing.T) {
	q, err := Parse("restore&primary_key=id")
	require.NoError(t, err)
	assert.True(t, q.Restore)
	require.NotNil(t, q.PrimaryKey)
}

func TestParseRestoreAbsentByDefault(t *testing.T) {
	q, err := Parse("select=a")
	require.NoError(t, err)
	assert.False(t, q.Restore)
}

func TestParseEmptyQueryIsFine(t *testing.T) {
	q, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, q.Select)
	assert.Nil(t, q.Where)
}

func TestParseUnrecognizedClauseIsRejected(t *testing.T) {
	_, err := Parse("select=a&bogus=1")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseUnrecognizedBareFlagIsRejected(t *testing.T) {
	_, err := Parse("select=a&retsore")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestParseCombinedClauses(t *testing.T) {
	q, err := Parse("select=b,sum(a)&group_by=b&where=a=gt.0&order=b.asc&range=0.9")
	require.NoError(t, err)
	assert.Len(t, q.Select, 2)
	assert.Len(t, q.GroupBy, 1)
	assert.NotNil(t, q.Where)
	assert.NotNil(t, q.Order)
	assert.NotNil(t, q.Range)
	assert.Equal(t, "select=b,sum(a)&group_by=b&where=a=gt.0&order=b.asc&range=0.9", q.Raw)
}
