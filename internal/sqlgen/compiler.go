package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/queryast"
	"github.com/unioslo/squril/internal/squrilerr"
)

var identAllowList = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent validates name against the conservative identifier allow-list
// and quotes it for d, rejecting anything that doesn't match (§4.2).
func QuoteIdent(d dialect.Dialect, name string) (string, error) {
	if !identAllowList.MatchString(name) {
		return "", squrilerr.NewValidationError(fmt.Sprintf("identifier %q is not allowed", name), "identifier", "")
	}
	return d.QuoteIdent(name), nil
}

// Compiler compiles a validated queryast.Query into parameterised SQL for
// one dialect, against one schema-qualified table.
type Compiler struct {
	Dialect dialect.Dialect
	Schema  string
	Table   string
}

func (c Compiler) qualifiedTable() (string, error) {
	return QualifiedTable(c.Dialect, c.Schema, c.Table)
}

// QualifiedTable validates schema and table against the identifier
// allow-list, then asks d to join and quote them (§4.2, §6). Exported so the
// driver can name tables (including the derived "<table>_audit" audit table)
// without duplicating the allow-list logic.
func QualifiedTable(d dialect.Dialect, schema, table string) (string, error) {
	if schema != "" {
		if _, err := QuoteIdent(d, schema); err != nil {
			return "", err
		}
	}
	tableName := table
	if _, err := QuoteIdent(d, tableName); err != nil {
		return "", err
	}
	return d.QualifyTable(schema, table), nil
}

// CompileSelect compiles q into a SELECT statement, running
// queryast.Validate on q first.
func (c Compiler) CompileSelect(q *queryast.Query) (string, []any, error) {
	if err := queryast.Validate(q); err != nil {
		return "", nil, err
	}
	table, err := c.qualifiedTable()
	if err != nil {
		return "", nil, err
	}
	p := &params{d: c.Dialect}

	projection, err := compileProjection(c.Dialect, q)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, table)

	if q.Where != nil {
		whereSQL, err := compilePredicate(c.Dialect, "data", q.Where, p)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHERE %s", whereSQL)
	}

	if len(q.GroupBy) > 0 {
		groupExprs := make([]string, len(q.GroupBy))
		for i, gp := range q.GroupBy {
			expr, err := pathExpr(c.Dialect, "data", gp)
			if err != nil {
				return "", nil, err
			}
			groupExprs[i] = expr
		}
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(groupExprs, ", "))
	}

	if q.Order != nil {
		orderExpr, err := pathExpr(c.Dialect, "data", q.Order.Term.Path)
		if err != nil {
			return "", nil, err
		}
		if q.Order.Term.Func.IsTimestamp() {
			orderExpr = c.Dialect.CastTimestamp(orderExpr)
		}
		dir := "ASC"
		if q.Order.Direction == queryast.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", orderExpr, dir)
	}

	if q.Range != nil {
		limit := q.Range.End - q.Range.Start + 1
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", p.bind(int64(limit)), p.bind(int64(q.Range.Start)))
	}

	return b.String(), p.values, nil
}

func compileProjection(d dialect.Dialect, q *queryast.Query) (string, error) {
	if len(q.Select) == 0 {
		return "data", nil
	}
	exprs := make([]string, len(q.Select))
	for i, t := range q.Select {
		expr, err := compileSelectTerm(d, t)
		if err != nil {
			return "", err
		}
		exprs[i] = expr
	}
	return strings.Join(exprs, ", "), nil
}

func compileSelectTerm(d dialect.Dialect, t queryast.SelectTerm) (string, error) {
	if t.Star {
		return "COUNT(*)", nil
	}
	expr, err := pathExpr(d, "data", t.Path)
	if err != nil {
		return "", err
	}
	if t.Func.IsTimestamp() {
		expr = d.CastTimestamp(expr)
	}
	switch t.Func {
	case queryast.FuncNone:
		return expr, nil
	case queryast.FuncCount:
		return fmt.Sprintf("COUNT(%s)", expr), nil
	case queryast.FuncAvg:
		return fmt.Sprintf("AVG(%s)", expr), nil
	case queryast.FuncSum:
		return fmt.Sprintf("SUM(%s)", expr), nil
	case queryast.FuncMin, queryast.FuncMinTs:
		return fmt.Sprintf("MIN(%s)", expr), nil
	case queryast.FuncMax, queryast.FuncMaxTs:
		return fmt.Sprintf("MAX(%s)", expr), nil
	default:
		return "", fmt.Errorf("unknown select function %q", t.Func)
	}
}
