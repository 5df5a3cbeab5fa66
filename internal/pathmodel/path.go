// Package pathmodel implements the shared path grammar: a dotted sequence of
// components addressing a location inside a JSON document, with optional
// array-index and wildcard selectors and, after a `|`, a subpath evaluated
// relative to the selected element(s).
package pathmodel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SelectorKind distinguishes the three selector kinds a path component may
// carry: none (bare key), a specific array index, or every element ("[*]").
// An index or wildcard selector may also carry subpaths ("[N|sub]",
// "[*|sub]"), held in Component.SubPaths.
type SelectorKind int

const (
	// SelectorNone marks a bare key with no bracketed selector.
	SelectorNone SelectorKind = iota
	// SelectorIndex marks "[N]" or "[N|sub...]".
	SelectorIndex
	// SelectorWildcard marks "[*]" or "[*|sub...]".
	SelectorWildcard
)

// Component is one dot-separated element of a Path.
type Component struct {
	// Key is the object key this component addresses (quotes stripped).
	Key string

	// Selector is SelectorNone for a bare key.
	Selector SelectorKind

	// Index holds the array index for SelectorIndex; -1 otherwise.
	Index int

	// SubPaths holds the comma-separated subpath keys that followed "|",
	// empty when the component carries no subpath.
	SubPaths []string
}

// HasSubPath reports whether this component carries a "|subpath" clause.
func (c Component) HasSubPath() bool { return len(c.SubPaths) > 0 }

// Path is a parsed, validated path.
type Path struct {
	Components []Component
	Raw        string
}

// WildcardCount returns the number of SelectorWildcard components in the
// path. The generator rejects paths with more than one (§4.2: "multiple
// wildcards in one path are not supported").
func (p Path) WildcardCount() int {
	n := 0
	for _, c := range p.Components {
		if c.Selector == SelectorWildcard {
			n++
		}
	}
	return n
}

var (
	reBareKey          = regexp.MustCompile(`^[^\[\]]+$`)
	reArraySpecific    = regexp.MustCompile(`^.+\[[0-9]+\]$`)
	reArraySpecificSub = regexp.MustCompile(`^.+\[[0-9]+\|[^,\]]+(,[^,\]]+)*\]$`)
	reArrayWildcard    = regexp.MustCompile(`^.+\[\*\]$`)
	reArrayWildcardSub = regexp.MustCompile(`^.+\[\*\|[^,\]]+(,[^,\]]+)*\]$`)

	reIndexSub    = regexp.MustCompile(`^(.+)\[([0-9]+)\|(.+)\]$`)
	reIndexOnly   = regexp.MustCompile(`^(.+)\[([0-9]+)\]$`)
	reWildSub     = regexp.MustCompile(`^(.+)\[\*\|(.+)\]$`)
	reWildOnly    = regexp.MustCompile(`^(.+)\[\*\]$`)
)

// Parse parses a dotted path string into a Path. The empty path is illegal.
// Dot-splitting respects single-quoted identifiers, so a key containing a
// literal "." must be single-quoted: 'a.b'.c
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	parts, err := splitRespectingQuotes(raw)
	if err != nil {
		return Path{}, err
	}
	comps := make([]Component, 0, len(parts))
	for _, part := range parts {
		c, err := parseComponent(part)
		if err != nil {
			return Path{}, fmt.Errorf("path %q: %w", raw, err)
		}
		comps = append(comps, c)
	}
	return Path{Components: comps, Raw: raw}, nil
}

// splitRespectingQuotes splits on '.' except inside a single-quoted run, and
// strips one level of surrounding quotes (with \' as the escaped quote)
// from each emitted part's bare-key prefix.
func splitRespectingQuotes(s string) ([]string, error) {
	var out []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			cur.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '\'':
			inQuote = !inQuote
		case ch == '.' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in path %q", s)
	}
	out = append(out, cur.String())
	return out, nil
}

func parseComponent(element string) (Component, error) {
	if element == "" {
		return Component{}, fmt.Errorf("empty path component")
	}

	matches := 0
	var kind string

	if reBareKey.MatchString(element) {
		matches++
		kind = "key"
	}
	if reArraySpecific.MatchString(element) {
		matches++
		kind = "index"
	}
	if reArraySpecificSub.MatchString(element) {
		matches++
		kind = "index-sub"
	}
	if reArrayWildcard.MatchString(element) {
		matches++
		kind = "wild"
	}
	if reArrayWildcardSub.MatchString(element) {
		matches++
		kind = "wild-sub"
	}
	if matches == 0 {
		return Component{}, fmt.Errorf("could not parse path component %q", element)
	}
	if matches > 1 {
		return Component{}, fmt.Errorf("ambiguous path component %q", element)
	}

	switch kind {
	case "key":
		return Component{Key: element, Selector: SelectorNone, Index: -1}, nil
	case "index":
		m := reIndexOnly.FindStringSubmatch(element)
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return Component{}, fmt.Errorf("bad index in %q: %w", element, err)
		}
		return Component{Key: m[1], Selector: SelectorIndex, Index: idx}, nil
	case "index-sub":
		m := reIndexSub.FindStringSubmatch(element)
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return Component{}, fmt.Errorf("bad index in %q: %w", element, err)
		}
		return Component{Key: m[1], Selector: SelectorIndex, Index: idx, SubPaths: strings.Split(m[3], ",")}, nil
	case "wild":
		m := reWildOnly.FindStringSubmatch(element)
		return Component{Key: m[1], Selector: SelectorWildcard, Index: -1}, nil
	case "wild-sub":
		m := reWildSub.FindStringSubmatch(element)
		return Component{Key: m[1], Selector: SelectorWildcard, Index: -1, SubPaths: strings.Split(m[2], ",")}, nil
	}
	return Component{}, fmt.Errorf("unreachable path component %q", element)
}

// String renders the path back to its canonical URI form.
func (p Path) String() string {
	var parts []string
	for _, c := range p.Components {
		switch c.Selector {
		case SelectorNone:
			parts = append(parts, c.Key)
		case SelectorIndex:
			if c.HasSubPath() {
				parts = append(parts, fmt.Sprintf("%s[%d|%s]", c.Key, c.Index, strings.Join(c.SubPaths, ",")))
			} else {
				parts = append(parts, fmt.Sprintf("%s[%d]", c.Key, c.Index))
			}
		case SelectorWildcard:
			if c.HasSubPath() {
				parts = append(parts, fmt.Sprintf("%s[*|%s]", c.Key, strings.Join(c.SubPaths, ",")))
			} else {
				parts = append(parts, fmt.Sprintf("%s[*]", c.Key))
			}
		}
	}
	return strings.Join(parts, ".")
}
