// Package seqnum defines the types and methods for TCP sequence numbers so
// that they are always compared and manipulated using sequence number
// arithmetic, i.e., modulo-2^32 comparisons.
package seqnum

// Value represents the value of a sequence number
type Value uint32

// Size represents the size of a sequence number window, e.g. the number of
// bytes in a segment, or the number of bytes that fit in the send window
type Size uint32

// SizeFromLen converts a payload length into a Size
func SizeFromLen(l int) Size {
	return Size(l)
}

// LessThan checks if v is before w, i.e. v < w modulo 2^32
//
// Note that sequence numbers wrap around after reaching math.MaxUint32, so
// v < w is not the same as uint32(v) < uint32(w); instead we treat the
// difference as a signed 32-bit value and check its sign
func (v Value) LessThan(w Value) bool {
	return int32(v-w) < 0
}

// LessThanEq checks if v is before or at w, i.e. v <= w modulo 2^32
func (v Value) LessThanEq(w Value) bool {
	return v == w || v.LessThan(w)
}

// GreaterThan checks if v is after w, i.e. v > w modulo 2^32
func (v Value) GreaterThan(w Value) bool {
	return w.LessThan(v)
}

// GreaterThanEq checks if v is at or after w, i.e. v >= w modulo 2^32
func (v Value) GreaterThanEq(w Value) bool {
	return w.LessThanEq(v)
}

// InRange checks if v is in the range [a, b), i.e. a <= v < b, modulo 2^32
func (v Value) InRange(a, b Value) bool {
	return v.GreaterThanEq(a) && v.LessThan(b)
}

// InWindow checks if v is in the half-open window starting at a of the given
// size, i.e. a <= v < a+size, modulo 2^32. A zero-size window contains
// nothing
func (v Value) InWindow(a Value, size Size) bool {
	return v.InRange(a, a.Add(size))
}

// Add adds the given size to v and returns the result, wrapping modulo 2^32
func (v Value) Add(s Size) Value {
	return v + Value(s)
}

// Size returns the distance from v to w going forward, i.e. the size of the
// half-open window [v, w). Callers must ensure v <= w in sequence-number
// order; otherwise the result wraps around and is effectively meaningless
func (v Value) Size(w Value) Size {
	return Size(w - v)
}

// UpdateForward returns the value of v after w bytes have been consumed from
// a window starting at v, i.e. it is equivalent to v.Add(Size(w))
func (v Value) UpdateForward(w Size) Value {
	return v.Add(w)
}

// LessThan checks if s is smaller than s2
func (s Size) LessThan(s2 Size) bool {
	return s < s2
}

// WindowSize returns the number of bytes open in a window that starts at
// 'v' and whose right edge is 'end', clamping negative windows to zero
func WindowSize(v, end Value) Size {
	if end.LessThan(v) {
		return 0
	}
	return v.Size(end)
}
