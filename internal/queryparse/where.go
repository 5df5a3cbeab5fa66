package queryparse

import (
	"strings"

	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/queryast"
)

var whereOps = []queryast.Op{
	queryast.OpEq, queryast.OpGt, queryast.OpGte, queryast.OpLt, queryast.OpLte,
	queryast.OpNeq, queryast.OpLike, queryast.OpIlike, queryast.OpIn, queryast.OpIs,
}

func isKnownOp(s string) bool {
	for _, o := range whereOps {
		if string(o) == s {
			return true
		}
	}
	return false
}

// parseWhereClause parses a where= payload into a WhereExpr. Leaves are
// joined left-to-right by explicit `and:`/`or:` prefixes with no implicit
// precedence: the result is a left-folded Conj/Disj tree (§9).
func parseWhereClause(payload string, offset int) (queryast.WhereExpr, error) {
	terms := splitClause(payload)
	var expr queryast.WhereExpr
	pos := offset
	for i, t := range terms {
		combinator, rest := stripCombinator(t)
		if i == 0 && combinator != "" {
			return nil, parseErrf(pos, "leaf term", "first where= term must not carry a combinator prefix")
		}
		if i > 0 && combinator == "" {
			return nil, parseErrf(pos, "and:|or:", "where= term %q after the first must carry and:/or:", t)
		}
		leafPos := pos + len(combinator)
		leaf, err := parseWhereLeaf(rest, leafPos)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			expr = leaf
		} else if combinator == "or" {
			expr = queryast.Disj{Left: expr, Right: leaf}
		} else {
			expr = queryast.Conj{Left: expr, Right: leaf}
		}
		pos += len(t) + 1
	}
	return expr, nil
}

func stripCombinator(term string) (combinator, rest string) {
	switch {
	case strings.HasPrefix(term, "and:"):
		return "and", strings.TrimPrefix(term, "and:")
	case strings.HasPrefix(term, "or:"):
		return "or", strings.TrimPrefix(term, "or:")
	default:
		return "", term
	}
}

func parseWhereLeaf(term string, pos int) (queryast.Leaf, error) {
	eq := strings.Index(term, "=")
	if eq < 0 {
		return queryast.Leaf{}, parseErrf(pos, "path=op.literal", "where= term %q missing '='", term)
	}
	pathStr := term[:eq]
	opAndVal := term[eq+1:]
	valPos := pos + eq + 1

	p, err := pathmodel.Parse(pathStr)
	if err != nil {
		return queryast.Leaf{}, parseErrf(pos, "path", "%s", err.Error())
	}

	op, litRaw, not, ok := splitOpAndLiteral(opAndVal)
	if !ok {
		return queryast.Leaf{}, parseErrf(valPos, "op.literal", "where= term %q missing operator", term)
	}
	if !isKnownOp(op) {
		return queryast.Leaf{}, parseErrf(valPos, "operator", "where= unknown operator %q", op)
	}
	if litRaw == "" {
		return queryast.Leaf{}, parseErrf(valPos+len(op)+1, "literal", "where= term %q missing literal after %s.", term, op)
	}

	var lit queryast.Literal
	if op == string(queryast.OpIn) {
		if !strings.HasPrefix(litRaw, "[") || !strings.HasSuffix(litRaw, "]") {
			return queryast.Leaf{}, parseErrf(valPos, "[v1,v2,...]", "where= in. requires a bracketed list, got %q", litRaw)
		}
		lit = parseLiteralList(litRaw)
	} else {
		lit = parseLiteralToken(litRaw)
	}

	return queryast.Leaf{Path: p, Op: queryast.Op(op), Not: not, Value: lit}, nil
}

// splitOpAndLiteral splits "op.literal" (optionally "not."-prefixed, or with
// op "is" carrying its own "not." infix per §9: "not.is.null" and
// "is.not.null" are equivalent) into the operator name and the raw literal
// text. Only the single "." separating the operator from its literal is
// consumed — unlike a naive split on every ".", this leaves a literal
// containing its own dots (a float, or a quoted string like
// 'a.b@example.com') intact as one unparsed token for parseLiteralToken to
// interpret.
func splitOpAndLiteral(opAndVal string) (op, litRaw string, not, ok bool) {
	rest := opAndVal
	if strings.HasPrefix(rest, "not.") {
		not = true
		rest = strings.TrimPrefix(rest, "not.")
	}
	idx := strings.Index(rest, ".")
	if idx < 0 {
		return "", "", false, false
	}
	op = rest[:idx]
	litRaw = rest[idx+1:]
	if op == "is" && strings.HasPrefix(litRaw, "not.") {
		not = true
		litRaw = strings.TrimPrefix(litRaw, "not.")
	}
	return op, litRaw, not, true
}
