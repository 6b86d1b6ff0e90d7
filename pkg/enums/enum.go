package enums

import (
	"fmt"
	"slices"
)

// values is the closed set of members of one string enum, in declaration order.
type values[T ~string] []T

func (v values[T]) has(x T) bool {
	return slices.Contains(v, x)
}

// parse matches raw exactly against the members.
func (v values[T]) parse(kind, raw string) (T, error) {
	if i := slices.Index(v, T(raw)); i >= 0 {
		return v[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

func (v values[T]) list() []T {
	return slices.Clone(v)
}
