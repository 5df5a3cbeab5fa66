// Package queryast defines the abstract syntax tree produced by parsing a
// URI query string (package queryparse) and consumed by the SQL generator
// (package sqlgen). The AST is immutable once produced (§3).
package queryast

import "github.com/unioslo/squril/internal/pathmodel"

// AggregateFunc names one of the supported select-term functions.
type AggregateFunc string

const (
	FuncNone  AggregateFunc = ""
	FuncCount AggregateFunc = "count"
	FuncAvg   AggregateFunc = "avg"
	FuncSum   AggregateFunc = "sum"
	FuncMin   AggregateFunc = "min"
	FuncMax   AggregateFunc = "max"
	FuncMinTs AggregateFunc = "min_ts"
	FuncMaxTs AggregateFunc = "max_ts"
)

// IsTimestamp reports whether this function coerces its argument to a
// timestamp before aggregation (min_ts/max_ts).
func (f AggregateFunc) IsTimestamp() bool { return f == FuncMinTs || f == FuncMaxTs }

// IsAggregate reports whether this function is an aggregate at all.
func (f AggregateFunc) IsAggregate() bool { return f != FuncNone }

// SelectTerm is one comma-separated entry in a select= clause: a bare path,
// the literal "*" (legal only inside count(*)), or a function call wrapping
// a path.
type SelectTerm struct {
	Func AggregateFunc
	Path pathmodel.Path
	Star bool
}

// Op names a where-leaf comparison operator.
type Op string

const (
	OpEq   Op = "eq"
	OpGt   Op = "gt"
	OpGte  Op = "gte"
	OpLt   Op = "lt"
	OpLte  Op = "lte"
	OpNeq  Op = "neq"
	OpLike Op = "like"
	OpIlike Op = "ilike"
	OpIn   Op = "in"
	OpIs   Op = "is"
)

// Literal is a sealed interface over the literal value grammar: integer,
// float, null, bareword, single-quoted string, or a bracketed list (only
// legal as the right-hand side of `in`).
type Literal interface {
	literalNode()
}

// LitNull is the `null` literal.
type LitNull struct{}

func (LitNull) literalNode() {}

// LitString is a single-quoted string or bareword literal.
type LitString string

func (LitString) literalNode() {}

// LitInt is an unquoted integer literal.
type LitInt int64

func (LitInt) literalNode() {}

// LitFloat is an unquoted floating point literal.
type LitFloat float64

func (LitFloat) literalNode() {}

// LitBool is the `true`/`false` bareword literal.
type LitBool bool

func (LitBool) literalNode() {}

// LitList is the `in.[v1,v2,...]` bracketed literal list. Elements use the
// same literal grammar, minus nested lists.
type LitList []Literal

func (LitList) literalNode() {}

// WhereExpr is the sealed boolean-expression AST: a leaf comparison, or a
// left-folded conjunction/disjunction of two previously-parsed expressions.
// Combinator prefixes (`and:`, `or:`) are normalised at parse time into this
// shape; there is no implicit operator precedence (§9 design notes).
type WhereExpr interface {
	whereNode()
}

// Leaf is `path=op.literal`, optionally inverted by a `not.` prefix.
type Leaf struct {
	Path  pathmodel.Path
	Op    Op
	Not   bool
	Value Literal
}

func (Leaf) whereNode() {}

// Conj is a left-folded AND of Left and Right.
type Conj struct {
	Left, Right WhereExpr
}

func (Conj) whereNode() {}

// Disj is a left-folded OR of Left and Right.
type Disj struct {
	Left, Right WhereExpr
}

func (Disj) whereNode() {}

// OrderDirection is `asc` or `desc`.
type OrderDirection string

const (
	Asc  OrderDirection = "asc"
	Desc OrderDirection = "desc"
)

// OrderTerm is the parsed order= clause.
type OrderTerm struct {
	Term      SelectTerm
	Direction OrderDirection
}

// RangeTerm is the parsed range= clause: an inclusive [Start, End] window.
type RangeTerm struct {
	Start int
	End   int
}

// Query is the top-level AST produced by parsing one URI query string. It is
// immutable once produced; every field reflects at most one occurrence of
// its clause, since each clause appears at most once in a query (§4.1).
type Query struct {
	Select     []SelectTerm
	Where      WhereExpr
	Order      *OrderTerm
	Range      *RangeTerm
	GroupBy    []pathmodel.Path
	Set        []string
	PrimaryKey *pathmodel.Path
	Message    string
	Restore    bool

	// Raw is the original, unparsed query string, retained for audit rows
	// (§3: audit.query) and for error messages.
	Raw string
}

// HasAggregates reports whether any select term is an aggregate.
func (q Query) HasAggregates() bool {
	for _, t := range q.Select {
		if t.Func.IsAggregate() {
			return true
		}
	}
	return false
}

// HasNonAggregates reports whether any select term is a bare path (not an
// aggregate, not the bare "*").
func (q Query) HasNonAggregates() bool {
	for _, t := range q.Select {
		if !t.Func.IsAggregate() && !t.Star {
			return true
		}
	}
	return false
}
