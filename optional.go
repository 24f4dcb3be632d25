package flowz

// Optional is a value that may be absent. FindFirst resolves to an Optional:
// present with the first element for a non-empty stream, absent for an empty
// one.
type Optional[T any] struct {
	value   T
	present bool
}

// OptionalOf returns a present Optional holding value.
func OptionalOf[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

// OptionalEmpty returns an absent Optional.
func OptionalEmpty[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the held value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// IsPresent reports whether a value is held.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// OrElse returns the held value when present, alt otherwise.
func (o Optional[T]) OrElse(alt T) T {
	if o.present {
		return o.value
	}
	return alt
}
