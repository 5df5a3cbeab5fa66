package queryast

import "github.com/unioslo/squril/internal/squrilerr"

// Validate checks a parsed Query against the semantic rules in §7/§8 that
// the grammar alone cannot enforce: aggregate/non-aggregate mixing requires
// a covering group_by, a path may carry at most one wildcard selector, and a
// range window must not be inverted.
func Validate(q *Query) error {
	if err := validateSelect(q); err != nil {
		return err
	}
	if err := validateWildcards(q); err != nil {
		return err
	}
	if q.Range != nil && q.Range.End < q.Range.Start {
		return squrilerr.NewValidationError("range end precedes start", "range", "")
	}
	return nil
}

func validateSelect(q *Query) error {
	if !q.HasAggregates() || !q.HasNonAggregates() {
		return nil
	}
	covered := make(map[string]bool, len(q.GroupBy))
	for _, p := range q.GroupBy {
		covered[p.String()] = true
	}
	for _, t := range q.Select {
		if t.Func.IsAggregate() || t.Star {
			continue
		}
		if !covered[t.Path.String()] {
			return squrilerr.NewValidationError(
				"select mixes aggregate and non-aggregate terms without a covering group_by",
				"select", t.Path.String(),
			)
		}
	}
	return nil
}

func validateWildcards(q *Query) error {
	for _, t := range q.Select {
		if t.Path.WildcardCount() > 1 {
			return squrilerr.NewValidationError("path has more than one wildcard selector", "select", t.Path.String())
		}
	}
	for _, p := range q.GroupBy {
		if p.WildcardCount() > 1 {
			return squrilerr.NewValidationError("path has more than one wildcard selector", "group_by", p.String())
		}
	}
	return validateWhereWildcards(q.Where)
}

func validateWhereWildcards(expr WhereExpr) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case Leaf:
		if e.Path.WildcardCount() > 1 {
			return squrilerr.NewValidationError("path has more than one wildcard selector", "where", e.Path.String())
		}
		return nil
	case Conj:
		if err := validateWhereWildcards(e.Left); err != nil {
			return err
		}
		return validateWhereWildcards(e.Right)
	case Disj:
		if err := validateWhereWildcards(e.Left); err != nil {
			return err
		}
		return validateWhereWildcards(e.Right)
	default:
		return nil
	}
}
