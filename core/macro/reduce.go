package macro

import (
	"fmt"

	"github.com/dmitrymomot/orchestra/core/command"
)

// AllTrue is a ReduceFunc computing the logical AND of boolean nested
// results. A nested context that is not DONE, or whose result is not a bool,
// counts as false.
func AllTrue(nested []*command.Context) (any, error) {
	for _, nc := range nested {
		ok, done := command.ResultAs[bool](nc)
		if !done || !ok {
			return false, nil
		}
	}
	return true, nil
}

// ResultOf returns a ReduceFunc yielding the result of the nested context at
// index i, e.g. the nested command that created the macro's primary entity.
func ResultOf(i int) ReduceFunc {
	return func(nested []*command.Context) (any, error) {
		if i < 0 || i >= len(nested) {
			return nil, fmt.Errorf("%w: index %d out of %d", ErrNoResult, i, len(nested))
		}
		result, ok := nested[i].Result()
		if !ok {
			return nil, fmt.Errorf("%w: %s is %s", ErrNoResult, nested[i].Command().ID(), nested[i].State())
		}
		return result, nil
	}
}
