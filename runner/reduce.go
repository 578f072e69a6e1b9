package runner

import (
	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner/builder"
)

// identity returns the neutral element of a reduction
func identity[T mesh.Number](access builder.Access) T {
	switch access {
	case Min:
		return mesh.Highest[T]()
	case Max:
		return mesh.Lowest[T]()
	default:
		return 0
	}
}

func fillIdentity[T mesh.Number](values []T, access builder.Access) {
	id := identity[T](access)
	for i := range values {
		values[i] = id
	}
}

// combine folds src into dst component-wise
func combine[T mesh.Number](dst, src []T, access builder.Access) {
	switch access {
	case Min:
		for i, v := range src {
			dst[i] = min(dst[i], v)
		}
	case Max:
		for i, v := range src {
			dst[i] = max(dst[i], v)
		}
	case Inc:
		for i, v := range src {
			dst[i] += v
		}
	}
}
