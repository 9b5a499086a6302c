package domain

// patchState distinguishes the three shapes a partial-update field can take.
type patchState uint8

const (
	patchAbsent patchState = iota
	patchCleared
	patchSet
)

// Patch is one field of a partial update. The zero value is absent, meaning
// "leave the field alone". Clear means "reset the field", which is distinct
// from absent; Set carries a new value.
type Patch[T any] struct {
	state patchState
	value T
}

// Set returns a patch that replaces the field with v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{state: patchSet, value: v}
}

// Clear returns a patch that resets the field to its empty value.
func Clear[T any]() Patch[T] {
	return Patch[T]{state: patchCleared}
}

// Present reports whether the caller supplied the field at all (set or cleared).
func (p Patch[T]) Present() bool { return p.state != patchAbsent }

// Cleared reports whether the caller asked for the field to be reset.
func (p Patch[T]) Cleared() bool { return p.state == patchCleared }

// Get returns the new value and true when the patch carries one.
func (p Patch[T]) Get() (T, bool) {
	return p.value, p.state == patchSet
}

// Apply returns the patched value of current. Cleared fields become the zero value.
func (p Patch[T]) Apply(current T) T {
	switch p.state {
	case patchSet:
		return p.value
	case patchCleared:
		var zero T
		return zero
	default:
		return current
	}
}
