// Package queryparse lexes and parses a URI query string into a
// queryast.Query. The grammar is non-regular (nested path addressing with
// positional, wildcard, and subpath selectors, inside a comma-separated term
// list, inside a `&`-separated clause list) so parsing proceeds clause by
// clause, each clause splitting its own term list before parsing each term.
package queryparse

import (
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/squrilerr"
)

// splitClause splits a clause payload on top-level commas, treating commas
// inside a bracketed selector (e.g. `in.[a,b,c]` or `x[0|a,b]`) or inside a
// single-quoted string literal (e.g. `eq.'foo,bar'`) as part of the term
// rather than a separator. `\'` inside a literal is the escaped quote (§9
// literal grammar) and never closes the quote.
func splitClause(payload string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	inQuote := false
	escaped := false
	for _, r := range payload {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case inQuote:
			current.WriteRune(r)
			switch r {
			case '\\':
				escaped = true
			case '\'':
				inQuote = false
			}
		case r == '\'':
			inQuote = true
			current.WriteRune(r)
		case r == '[':
			depth++
			current.WriteRune(r)
		case r == ']':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case r == ',' && depth == 0:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	return parts
}

// findClause splits the full query string into `&`-separated clause
// fragments, then finds the one (if any) whose payload starts with prefix.
// Returns the payload with the prefix stripped, and whether it was found.
func findClause(raw, prefix string) (payload string, offset int, found bool) {
	fragments := strings.Split(raw, "&")
	pos := 0
	for _, frag := range fragments {
		if strings.HasPrefix(frag, prefix) {
			payload = strings.TrimPrefix(frag, prefix)
			offset = pos + len(prefix)
			return payload, offset, true
		}
		pos += len(frag) + 1 // account for the '&' separator
	}
	return "", 0, false
}

// findBareClause finds a bare flag clause (no `=`), e.g. `restore`.
func findBareClause(raw, name string) bool {
	for _, frag := range strings.Split(raw, "&") {
		if frag == name {
			return true
		}
	}
	return false
}

// knownClausePrefixes are the only recognised `key=` clause prefixes; a
// fragment matching none of them (and not the bare "restore" flag) is a
// parse error rather than a silently ignored extra.
var knownClausePrefixes = []string{
	"select=", "where=", "order=", "range=",
	"group_by=", "set=", "primary_key=", "message=",
}

// validateClauses rejects any `&`-separated fragment that isn't a recognised
// clause, so a caller's typo or unsupported clause never passes through
// unnoticed.
func validateClauses(raw string) error {
	fragments := strings.Split(raw, "&")
	pos := 0
	for _, frag := range fragments {
		switch {
		case frag == "":
		case frag == "restore":
		default:
			recognized := false
			for _, prefix := range knownClausePrefixes {
				if strings.HasPrefix(frag, prefix) {
					recognized = true
					break
				}
			}
			if !recognized {
				return parseErrf(pos, "clause", "unrecognized clause %q", frag)
			}
		}
		pos += len(frag) + 1
	}
	return nil
}

func parseErrf(pos int, expected, format string, args ...any) error {
	return squrilerr.NewParseError(fmt.Sprintf(format, args...), pos, expected)
}
