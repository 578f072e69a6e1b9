// File: runner/memory_operations.go

package runner

import (
	"sync"

	"github.com/notargets/meshloop/mesh"
)

// scratchPools recycles block staging buffers, one pool per data type
type scratchPools struct {
	pools [mesh.INT64 + 1]sync.Pool
}

func getScratch[T mesh.Number](sp *scratchPools, n int) []T {
	p := &sp.pools[mesh.DataTypeOf[T]()]
	if v, ok := p.Get().(*[]T); ok && cap(*v) >= n {
		return (*v)[:n]
	}
	return make([]T, n)
}

func putScratch[T mesh.Number](sp *scratchPools, buf []T) {
	if cap(buf) == 0 {
		return
	}
	p := &sp.pools[mesh.DataTypeOf[T]()]
	p.Put(&buf)
}

// gather copies the dim values of each target into consecutive slots of buf
func gather[T mesh.Number](buf, data []T, targets []int, dim int) {
	if dim == 1 {
		for k, t := range targets {
			buf[k] = data[t]
		}
		return
	}
	for k, t := range targets {
		copy(buf[k*dim:(k+1)*dim], data[t*dim:(t+1)*dim])
	}
}

// scatter writes staged slots back to their targets
func scatter[T mesh.Number](data, buf []T, targets []int, dim int) {
	if dim == 1 {
		for k, t := range targets {
			data[t] = buf[k]
		}
		return
	}
	for k, t := range targets {
		copy(data[t*dim:(t+1)*dim], buf[k*dim:(k+1)*dim])
	}
}

// scatterAdd adds staged increments into their targets
func scatterAdd[T mesh.Number](data, buf []T, targets []int, dim int) {
	for k, t := range targets {
		dst := data[t*dim : (t+1)*dim]
		for i, v := range buf[k*dim : (k+1)*dim] {
			dst[i] += v
		}
	}
}
