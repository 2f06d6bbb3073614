package inventory

import "fmt"

// Result holds either a collected value or the reason it is unavailable
type Result[T any] struct {
	Value T
	Err   error
}

// Or returns the value, or fallback when collection failed
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// capture runs one field source in isolation. A panic inside the source is
// turned into an error so it cannot abort the rest of the record.
func capture[T any](field string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("%s: panic: %v", field, r)}
		}
	}()

	v, err := fn()
	if err != nil {
		return Result[T]{Err: fmt.Errorf("%s: %w", field, err)}
	}
	return Result[T]{Value: v}
}
