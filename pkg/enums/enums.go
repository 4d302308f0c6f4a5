package enums

import (
	"fmt"
	"slices"
)

// parse returns value as a T when it is one of valid.
func parse[T ~string](kind, value string, valid []T) (T, error) {
	if candidate := T(value); slices.Contains(valid, candidate) {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
