package builder

import (
	"errors"
	"fmt"

	"github.com/notargets/meshloop/mesh"
)

// ErrConfig marks a loop configuration error. These are fatal: there is no
// safe partial plan to fall back on.
var ErrConfig = errors.New("loop configuration error")

// Access indicates how a loop argument is used by the kernel
type Access int

const (
	Read Access = iota
	Write
	RW
	Inc
	Min
	Max
)

// Map index sentinels
const (
	Direct = -1 // Dat indexed by the loop's own element
	All    = -2 // every map entry of the element, passed as a vector
)

func (a Access) String() string {
	switch a {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case RW:
		return "RW"
	case Inc:
		return "INC"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// ArgSpec is the type-erased description of one loop argument.
// Global arguments carry no Dat and no Map.
type ArgSpec struct {
	Dat      mesh.DatHandle
	Map      *mesh.Map
	Idx      int
	Access   Access
	Dim      int
	DataType mesh.DataType
	Global   bool
}

// IsIndirect reports whether the argument is addressed through a map
func (s *ArgSpec) IsIndirect() bool {
	return !s.Global && s.Map != nil
}

// IsDirect reports whether the argument is indexed by the loop element
func (s *ArgSpec) IsDirect() bool {
	return !s.Global && s.Map == nil
}

// Reads returns whether the kernel observes incoming values
func (s *ArgSpec) Reads() bool {
	return s.Access == Read || s.Access == RW
}

// Writes returns whether the argument's data is modified by the loop
func (s *ArgSpec) Writes() bool {
	return s.Access != Read
}

// Conflicts returns whether two elements reaching the same target through
// this argument race. WRITE is treated like INC: two writers racing on a
// target is a conflict whether or not they agree.
func (s *ArgSpec) Conflicts() bool {
	if !s.IsIndirect() {
		return false
	}
	switch s.Access {
	case Inc, Write, RW:
		return true
	default:
		return false
	}
}

// Arity returns how many targets the kernel sees per element
func (s *ArgSpec) Arity() int {
	if s.IsIndirect() && s.Idx == All {
		return s.Map.Arity()
	}
	return 1
}

// Bytes returns the size in bytes of one element's worth of data
func (s *ArgSpec) Bytes() int64 {
	return int64(s.Dim) * mesh.SizeOfType(s.DataType)
}

// Validate checks the argument against the loop set
func (s *ArgSpec) Validate(set *mesh.Set) error {
	if s.Dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfig, s.Dim)
	}
	if s.Global {
		switch s.Access {
		case Read, Inc, Min, Max:
			return nil
		default:
			return fmt.Errorf("%w: global argument cannot use %s", ErrConfig, s.Access)
		}
	}
	if s.Dat == nil {
		return fmt.Errorf("%w: argument has no dat", ErrConfig)
	}
	if s.Dat.Released() {
		return fmt.Errorf("%w: dat %q has been released", ErrConfig, s.Dat.Name())
	}
	if s.Dim != s.Dat.Dim() {
		return fmt.Errorf("%w: dat %q has dim %d, argument declares %d",
			ErrConfig, s.Dat.Name(), s.Dat.Dim(), s.Dim)
	}
	if s.DataType != s.Dat.DataType() {
		return fmt.Errorf("%w: dat %q holds %s, argument declares %s",
			ErrConfig, s.Dat.Name(), s.Dat.DataType(), s.DataType)
	}
	if s.Access == Min || s.Access == Max {
		return fmt.Errorf("%w: %s is only valid for global arguments (dat %q)",
			ErrConfig, s.Access, s.Dat.Name())
	}

	if s.Map == nil {
		if s.Dat.Set() != set {
			return fmt.Errorf("%w: direct dat %q is on set %s, loop runs over %s",
				ErrConfig, s.Dat.Name(), s.Dat.Set().Name(), set.Name())
		}
		return nil
	}

	if s.Map.From() != set {
		return fmt.Errorf("%w: map %q starts at set %s, loop runs over %s",
			ErrConfig, s.Map.Name(), s.Map.From().Name(), set.Name())
	}
	if s.Map.To() != s.Dat.Set() {
		return fmt.Errorf("%w: map %q targets set %s but dat %q is on %s",
			ErrConfig, s.Map.Name(), s.Map.To().Name(), s.Dat.Name(), s.Dat.Set().Name())
	}
	if s.Idx != All && (s.Idx < 0 || s.Idx >= s.Map.Arity()) {
		return fmt.Errorf("%w: map index %d outside arity %d of map %q",
			ErrConfig, s.Idx, s.Map.Arity(), s.Map.Name())
	}
	return nil
}
