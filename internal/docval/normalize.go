package docval

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeForCompare NFC-normalizes and case-folds a string so that
// ilike comparisons and primary-key uniqueness checks are Unicode-stable
// rather than merely ASCII-stable.
func NormalizeForCompare(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// NormalizeNFC NFC-normalizes a string without folding case, used when
// computing the dedup key for a restored primary key value.
func NormalizeNFC(s string) string {
	return norm.NFC.String(s)
}
