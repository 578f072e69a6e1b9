package mesh

import "math"

// DataType represents the precision of per-element data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// Number is the set of element types a Dat may carry
type Number interface {
	float32 | float64 | int32 | int64
}

// SizeOfType returns the size in bytes of a data type
func SizeOfType(dt DataType) int64 {
	switch dt {
	case Float32, INT32:
		return 4
	case Float64, INT64:
		return 8
	default:
		return 8
	}
}

// TypeName returns the tag used in diagnostics for a given DataType
func TypeName(dt DataType) string {
	switch dt {
	case Float32:
		return "float"
	case Float64:
		return "double"
	case INT32:
		return "int"
	case INT64:
		return "long"
	default:
		return "unknown"
	}
}

// IsReal reports whether dt is a floating point type
func (dt DataType) IsReal() bool {
	return dt == Float32 || dt == Float64
}

func (dt DataType) String() string {
	return TypeName(dt)
}

// DataTypeOf returns the DataType tag for the element type T
func DataTypeOf[T Number]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return INT32
	case int64:
		return INT64
	}
	return 0
}

// Lowest returns the smallest value representable by T (-Inf for reals)
func Lowest[T Number]() T {
	switch DataTypeOf[T]() {
	case Float32, Float64:
		return T(math.Inf(-1))
	case INT32:
		var v int64 = math.MinInt32
		return T(v)
	default:
		var v int64 = math.MinInt64
		return T(v)
	}
}

// Highest returns the largest value representable by T (+Inf for reals)
func Highest[T Number]() T {
	switch DataTypeOf[T]() {
	case Float32, Float64:
		return T(math.Inf(1))
	case INT32:
		var v int64 = math.MaxInt32
		return T(v)
	default:
		var v int64 = math.MaxInt64
		return T(v)
	}
}
