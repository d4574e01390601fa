// Package lazy provides a value that is computed at most once.
package lazy

import "sync"

// Value holds the result of a computation performed on first read. The zero
// value is ready to use. A Value must not be copied after first use.
type Value[T any] struct {
	once sync.Once
	v    T
}

// Get returns the cached value, calling compute to produce it on the first
// call. Later calls ignore compute.
func (l *Value[T]) Get(compute func() T) T {
	l.once.Do(func() {
		l.v = compute()
	})
	return l.v
}
