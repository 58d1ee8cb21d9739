package object

import "sync"

// Shape describes one key->offset layout shared by every object created
// along the same property-insertion sequence (spec.md §3.3's "hidden
// class" model). Shapes form a tree rooted at an empty Shape; adding a
// property walks (or creates, memoized) a child edge keyed by the
// property's Symbol.
//
// Grounded on original_source/src/runtime/cell.rs's map/transition
// handling (the commented-out add_property_transition path) and the
// conventional V8-style transition table that code was evidently moving
// toward; Go's map+mutex replaces the Rust port's Arc<Structure>.
type Shape struct {
	parent   *Shape
	property Symbol // the property this Shape's offset was assigned for
	offset   int    // -1 for the root Shape
	depth    int    // number of properties from the root to this Shape

	mu          sync.Mutex
	transitions map[Symbol]*Shape
}

// RootShape returns a fresh empty Shape, the starting point for every
// newly created Object/Array/Function cell.
func RootShape() *Shape {
	return &Shape{offset: -1, depth: 0}
}

// Transition returns the child Shape reached by adding property sym,
// creating and memoizing it on first use so that two cells which insert
// the same properties in the same order end up sharing one Shape
// (spec.md §3.3: "transitions are memoized ... so that two objects
// created along the same insertion sequence share the same shape").
func (s *Shape) Transition(sym Symbol) (*Shape, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transitions == nil {
		s.transitions = make(map[Symbol]*Shape)
	}
	if child, ok := s.transitions[sym]; ok {
		return child, child.offset
	}
	child := &Shape{
		parent:   s,
		property: sym,
		offset:   s.depth,
		depth:    s.depth + 1,
	}
	s.transitions[sym] = child
	return child, child.offset
}

// Lookup walks s and its ancestors for sym's offset, returning
// (offset, true) if found. It walks the whole chain with no early exit;
// the chain is short enough that a plain walk is simplest and matches
// the Rust port's own linked walk.
func (s *Shape) Lookup(sym Symbol) (int, bool) {
	for t := s; t != nil; t = t.parent {
		if t.property == sym && t.offset >= 0 {
			return t.offset, true
		}
	}
	return 0, false
}

// NumProperties reports how many properties s's layout carries.
func (s *Shape) NumProperties() int { return s.depth }
