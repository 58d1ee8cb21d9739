package object

import "sync"

// Symbol is an interned property key. Interning means two Symbols for
// the same name compare equal as plain Go strings and share one Shape
// transition-table entry (spec.md §3.3's "hash map keyed by interned
// symbol"). Go's native string interning (identical strings already
// compare cheaply and map identically) makes a full separate interner
// unnecessary; Intern exists to give call sites one obvious spelling and
// a seam for later replacing the backing scheme.
type Symbol string

var internTable sync.Map // string -> Symbol

// Intern returns the canonical Symbol for s.
func Intern(s string) Symbol {
	if v, ok := internTable.Load(s); ok {
		return v.(Symbol)
	}
	sym := Symbol(s)
	internTable.Store(s, sym)
	return sym
}

// LengthSymbol is the well-known "length" property, looked up directly
// on Array/String cells without a shape transition (original_source's
// cell.rs special-cases it the same way in lookup_in_self).
const LengthSymbol Symbol = "length"
