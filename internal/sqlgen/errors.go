package sqlgen

import "github.com/unioslo/squril/internal/squrilerr"

func squrilerrMissingSet() error {
	return squrilerr.NewValidationError("update requires a non-empty set= clause", "set", "")
}

func squrilerrMassDelete() error {
	return squrilerr.NewValidationError("delete without where= requires explicit mass-delete confirmation", "where", "")
}
