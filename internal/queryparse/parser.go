package queryparse

import (
	"strings"

	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/queryast"
)

// Parse lexes and parses a URI query string into a queryast.Query:
//
//	Query -> Clause(s) -> [Term(s)] -> [Element(s)]
//
// Unknown clauses are never silently dropped: every `&`-separated fragment
// must be the bare `restore` flag or start with one of the recognised
// clause prefixes, or Parse returns an error.
func Parse(raw string) (*queryast.Query, error) {
	if err := validateClauses(raw); err != nil {
		return nil, err
	}

	q := &queryast.Query{Raw: raw}

	if payload, offset, ok := findClause(raw, "select="); ok {
		terms, err := parseSelectClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.Select = terms
	}

	if payload, offset, ok := findClause(raw, "where="); ok {
		expr, err := parseWhereClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}

	if payload, offset, ok := findClause(raw, "order="); ok {
		order, err := parseOrderClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.Order = order
	}

	if payload, offset, ok := findClause(raw, "range="); ok {
		rng, err := parseRangeClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.Range = rng
	}

	if payload, offset, ok := findClause(raw, "group_by="); ok {
		gb, err := parseGroupByClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.GroupBy = gb
	}

	if payload, offset, ok := findClause(raw, "set="); ok {
		set, err := parseSetClause(payload, offset)
		if err != nil {
			return nil, err
		}
		q.Set = set
	}

	if payload, offset, ok := findClause(raw, "primary_key="); ok {
		p, err := pathmodel.Parse(payload)
		if err != nil {
			return nil, parseErrf(offset, "path", "%s", err.Error())
		}
		q.PrimaryKey = &p
	}

	if payload, _, ok := findClause(raw, "message="); ok {
		q.Message = unquoteMessage(payload)
	}

	q.Restore = findBareClause(raw, "restore")

	return q, nil
}

func unquoteMessage(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\'`, "'")
	}
	return s
}
