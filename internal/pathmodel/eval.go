package pathmodel

import "github.com/unioslo/squril/internal/docval"

// Eval resolves a Path against a document, client-side. The store uses it to
// extract primary keys from stored documents, and tests use it to assert
// generator output against an independent evaluation of the same path (§8
// invariant: projection must agree with client-side path evaluation). Eval
// is pure: the same path against the same
// document always yields the same result, with docval.Null{} for any
// component that does not exist.
func Eval(p Path, doc docval.Value) docval.Value {
	cur := doc
	for _, c := range p.Components {
		obj, ok := cur.(docval.Object)
		if !ok {
			return docval.Null{}
		}
		field, present := obj[c.Key]
		if !present {
			return docval.Null{}
		}
		switch c.Selector {
		case SelectorNone:
			cur = field
		case SelectorIndex:
			arr, ok := field.(docval.Array)
			if !ok || c.Index < 0 || c.Index >= len(arr) {
				return docval.Null{}
			}
			elem := arr[c.Index]
			if c.HasSubPath() {
				cur = evalSubPaths(elem, c.SubPaths)
			} else {
				cur = elem
			}
		case SelectorWildcard:
			arr, ok := field.(docval.Array)
			if !ok {
				return docval.Null{}
			}
			out := make(docval.Array, len(arr))
			for i, elem := range arr {
				if c.HasSubPath() {
					out[i] = evalSubPaths(elem, c.SubPaths)
				} else {
					out[i] = elem
				}
			}
			return out
		}
	}
	return cur
}

// evalSubPaths resolves a comma list of bare subkeys against elem, returning
// a single value when there is exactly one subkey or an object keyed by
// subkey when there is more than one.
func evalSubPaths(elem docval.Value, subs []string) docval.Value {
	if len(subs) == 1 {
		return evalBareKey(elem, subs[0])
	}
	out := make(docval.Object, len(subs))
	for _, s := range subs {
		out[s] = evalBareKey(elem, s)
	}
	return out
}

func evalBareKey(v docval.Value, key string) docval.Value {
	obj, ok := v.(docval.Object)
	if !ok {
		return docval.Null{}
	}
	val, ok := obj[key]
	if !ok {
		return docval.Null{}
	}
	return val
}
