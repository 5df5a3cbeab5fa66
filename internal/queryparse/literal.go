package queryparse

import (
	"strconv"
	"strings"

	"github.com/unioslo/squril/internal/queryast"
)

// parseLiteralToken classifies a single literal token per the grammar in
// §4.1: `null`, `true`/`false`, an integer, a float, a single-quoted string
// (with `\'` as the escaped quote), or a bareword (treated as a string).
func parseLiteralToken(tok string) queryast.Literal {
	switch tok {
	case "null":
		return queryast.LitNull{}
	case "true":
		return queryast.LitBool(true)
	case "false":
		return queryast.LitBool(false)
	}
	if len(tok) >= 2 && strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'") {
		inner := tok[1 : len(tok)-1]
		inner = strings.ReplaceAll(inner, `\'`, "'")
		return queryast.LitString(inner)
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return queryast.LitInt(n)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return queryast.LitFloat(f)
	}
	return queryast.LitString(tok)
}

// parseLiteralList parses the inner contents of an `in.[v1,v2,...]` literal.
// Elements use the same literal grammar, minus nested lists (§4.1).
func parseLiteralList(bracketed string) queryast.LitList {
	inner := strings.TrimSuffix(strings.TrimPrefix(bracketed, "["), "]")
	if inner == "" {
		return queryast.LitList{}
	}
	parts := splitClause(inner)
	out := make(queryast.LitList, 0, len(parts))
	for _, p := range parts {
		out = append(out, parseLiteralToken(p))
	}
	return out
}
