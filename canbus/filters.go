package canbus

// Typed and composable helpers for FrameFilter.

// ByID returns a filter that matches frames with the exact identifier.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return f.ID == id }
}

// ByIDs returns a filter that matches any of the provided identifiers.
func ByIDs(ids ...uint32) FrameFilter {
	m := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return func(f Frame) bool {
		_, ok := m[f.ID]
		return ok
	}
}

// ByMask matches when (frame.ID & mask) == (id & mask).
func ByMask(id uint32, mask uint32) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return (f.ID & mask) == want }
}

// StandardOnly matches standard (11-bit) identifiers.
func StandardOnly() FrameFilter {
	return func(f Frame) bool { return !f.Extended }
}

// ExtendedOnly matches extended (29-bit) identifiers.
func ExtendedOnly() FrameFilter {
	return func(f Frame) bool { return f.Extended }
}

// DataOnly matches non-RTR frames.
func DataOnly() FrameFilter {
	return func(f Frame) bool { return !f.RTR }
}

// LenAtLeast matches frames carrying at least n data bytes.
func LenAtLeast(n uint8) FrameFilter {
	return func(f Frame) bool { return f.Len >= n }
}

// And composes filters; the result matches when all match. Nil filters are
// ignored.
func And(filters ...FrameFilter) FrameFilter {
	return func(f Frame) bool {
		for _, fl := range filters {
			if fl != nil && !fl(f) {
				return false
			}
		}
		return true
	}
}

// Or composes two filters; the result matches when either matches.
func Or(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(f Frame) bool { return a(f) || b(f) }
	}
}
