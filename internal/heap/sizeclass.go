package heap

// Size classes step by 16 bytes up to smallCutoff, then grow roughly
// exponentially up to LargeCutoff — the same two-regime scheme as
// original_source/src/heap/segregated_freelist.rs's size-class table,
// which trades a few wasted bytes on small, extremely common allocations
// for a compact class count on larger, rarer ones.
const (
	smallCutoff = 256
	smallStep   = 16
)

var sizeClasses = buildSizeClasses()

func buildSizeClasses() []int {
	var classes []int
	for s := smallStep; s <= smallCutoff; s += smallStep {
		classes = append(classes, s)
	}
	for s := smallCutoff * 2; s < LargeCutoff; s *= 2 {
		classes = append(classes, s)
	}
	return classes
}

// SizeClassFor returns the smallest size class that fits n bytes, and
// ok=false if n belongs in the overflow or precise-allocation path
// instead: n above the largest size class (4096 bytes), including every
// n >= LargeCutoff.
func SizeClassFor(n int) (class int, ok bool) {
	if n <= 0 {
		n = 1
	}
	if n >= LargeCutoff {
		return 0, false
	}
	for _, c := range sizeClasses {
		if n <= c {
			return c, true
		}
	}
	return 0, false
}

// NumSizeClasses reports how many distinct size classes the allocator
// tracks, for sizing the per-class allocator table.
func NumSizeClasses() int { return len(sizeClasses) }

// sizeClassIndex returns the index of class c within sizeClasses, or -1.
func sizeClassIndex(c int) int {
	for i, v := range sizeClasses {
		if v == c {
			return i
		}
	}
	return -1
}
