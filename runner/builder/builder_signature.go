package builder

import (
	"fmt"
	"strings"

	"github.com/notargets/meshloop/mesh"
)

// Signature identifies a loop for plan reuse. Two invocations with equal
// signatures can share one plan.
type Signature struct {
	Loop     string
	SetID    int
	SetSize  int
	PartSize int
	Args     string
}

// GenerateSignature builds the plan key for a loop invocation
func GenerateSignature(loop string, set *mesh.Set, partSize int, args []ArgSpec) Signature {
	return Signature{
		Loop:     loop,
		SetID:    set.ID(),
		SetSize:  set.Size(),
		PartSize: partSize,
		Args:     GenerateArgSignature(args),
	}
}

// GenerateArgSignature encodes dat, map, index and access of every argument
func GenerateArgSignature(args []ArgSpec) string {
	parts := make([]string, len(args))
	for i := range args {
		a := &args[i]
		switch {
		case a.Global:
			parts[i] = fmt.Sprintf("gbl:%s:%d:%s", a.DataType, a.Dim, a.Access)
		case a.Map == nil:
			parts[i] = fmt.Sprintf("dat%d:id:%s", a.Dat.ID(), a.Access)
		default:
			parts[i] = fmt.Sprintf("dat%d:map%d[%d]:%s", a.Dat.ID(), a.Map.ID(), a.Idx, a.Access)
		}
	}
	return strings.Join(parts, ",")
}

// References reports whether the signature's arguments touch the dat
func (s Signature) References(datID int) bool {
	prefix := fmt.Sprintf("dat%d:", datID)
	for _, part := range strings.Split(s.Args, ",") {
		if strings.HasPrefix(part, prefix) {
			return true
		}
	}
	return false
}

func (s Signature) String() string {
	return fmt.Sprintf("%s@set%d[%d]/part%d(%s)", s.Loop, s.SetID, s.SetSize, s.PartSize, s.Args)
}
