package queryparse

import (
	"strconv"
	"strings"

	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/queryast"
)

var selectFuncs = []queryast.AggregateFunc{
	queryast.FuncCount, queryast.FuncAvg, queryast.FuncSum,
	queryast.FuncMin, queryast.FuncMax, queryast.FuncMinTs, queryast.FuncMaxTs,
}

// stripFunction peels a `fn(...)` wrapper off a select/order term, if present.
func stripFunction(term string) (fn queryast.AggregateFunc, inner string, wrapped bool) {
	for _, f := range selectFuncs {
		prefix := string(f) + "("
		if strings.HasPrefix(term, prefix) && strings.HasSuffix(term, ")") {
			return f, term[len(prefix) : len(term)-1], true
		}
	}
	return queryast.FuncNone, term, false
}

// parseSelectTerm parses one comma-separated entry of a select= clause.
func parseSelectTerm(term string, pos int) (queryast.SelectTerm, error) {
	fn, inner, wrapped := stripFunction(term)
	if inner == "*" {
		if !wrapped || fn != queryast.FuncCount {
			return queryast.SelectTerm{}, parseErrf(pos, "path", "'*' is only valid inside count(*)")
		}
		return queryast.SelectTerm{Func: queryast.FuncCount, Star: true}, nil
	}
	p, err := pathmodel.Parse(inner)
	if err != nil {
		return queryast.SelectTerm{}, parseErrf(pos, "path", "%s", err.Error())
	}
	return queryast.SelectTerm{Func: fn, Path: p}, nil
}

func parseSelectClause(payload string, offset int) ([]queryast.SelectTerm, error) {
	terms := splitClause(payload)
	out := make([]queryast.SelectTerm, 0, len(terms))
	pos := offset
	for _, t := range terms {
		st, err := parseSelectTerm(t, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
		pos += len(t) + 1
	}
	return out, nil
}

func parseGroupByClause(payload string, offset int) ([]pathmodel.Path, error) {
	terms := splitClause(payload)
	out := make([]pathmodel.Path, 0, len(terms))
	pos := offset
	for _, t := range terms {
		p, err := pathmodel.Parse(t)
		if err != nil {
			return nil, parseErrf(pos, "path", "%s", err.Error())
		}
		out = append(out, p)
		pos += len(t) + 1
	}
	return out, nil
}

func parseSetClause(payload string, offset int) ([]string, error) {
	terms := splitClause(payload)
	out := make([]string, 0, len(terms))
	pos := offset
	for _, t := range terms {
		p, err := pathmodel.Parse(t)
		if err != nil {
			return nil, parseErrf(pos, "top-level key", "%s", err.Error())
		}
		if len(p.Components) != 1 || p.Components[0].Selector != pathmodel.SelectorNone {
			return nil, parseErrf(pos, "top-level key", "set= term %q must be a bare top-level key", t)
		}
		out = append(out, p.Components[0].Key)
		pos += len(t) + 1
	}
	return out, nil
}

func parseOrderClause(payload string, offset int) (*queryast.OrderTerm, error) {
	idx := strings.LastIndex(payload, ".")
	if idx < 0 {
		return nil, parseErrf(offset, "path.direction", "order= clause %q missing direction", payload)
	}
	termStr, dir := payload[:idx], payload[idx+1:]
	if dir != string(queryast.Asc) && dir != string(queryast.Desc) {
		return nil, parseErrf(offset+idx+1, "asc|desc", "order= direction %q must be asc or desc", dir)
	}
	term, err := parseSelectTerm(termStr, offset)
	if err != nil {
		return nil, err
	}
	return &queryast.OrderTerm{Term: term, Direction: queryast.OrderDirection(dir)}, nil
}

func parseRangeClause(payload string, offset int) (*queryast.RangeTerm, error) {
	parts := strings.Split(payload, ".")
	if len(parts) != 2 {
		return nil, parseErrf(offset, "start.end", "range= clause %q must be start.end", payload)
	}
	start, err := parseIntStrict(parts[0])
	if err != nil {
		return nil, parseErrf(offset, "integer", "range= start %q is not an integer", parts[0])
	}
	end, err := parseIntStrict(parts[1])
	if err != nil {
		return nil, parseErrf(offset+len(parts[0])+1, "integer", "range= end %q is not an integer", parts[1])
	}
	return &queryast.RangeTerm{Start: start, End: end}, nil
}

// parseIntStrict accepts only an unsigned run of decimal digits (no sign,
// no whitespace, unlike strconv.Atoi), delegating to strconv.Atoi once
// validated so an out-of-range value errors instead of silently wrapping.
func parseIntStrict(s string) (int, error) {
	if s == "" {
		return 0, errNotInt
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotInt
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errNotInt
	}
	return n, nil
}

var errNotInt = errorString("not an integer")

type errorString string

func (e errorString) Error() string { return string(e) }
