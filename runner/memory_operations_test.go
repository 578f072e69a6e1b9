package runner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatherScatter(t *testing.T) {
	t.Run("Scalar", func(t *testing.T) {
		data := []float64{10, 11, 12, 13, 14}
		targets := []int{3, 0, 4}
		buf := make([]float64, len(targets))
		gather(buf, data, targets, 1)
		assert.Equal(t, []float64{13, 10, 14}, buf)

		buf[1] = -1
		scatter(data, buf, targets, 1)
		assert.Equal(t, []float64{-1, 11, 12, 13, 14}, data)

		scatterAdd(data, []float64{1, 2, 3}, targets, 1)
		assert.Equal(t, []float64{1, 11, 12, 14, 17}, data)
	})

	t.Run("Vector", func(t *testing.T) {
		data := []int32{0, 1, 10, 11, 20, 21}
		targets := []int{2, 1}
		buf := make([]int32, 2*len(targets))
		gather(buf, data, targets, 2)
		assert.Equal(t, []int32{20, 21, 10, 11}, buf)

		scatter(data, []int32{7, 8, 5, 6}, targets, 2)
		assert.Equal(t, []int32{0, 1, 5, 6, 7, 8}, data)

		scatterAdd(data, []int32{1, 1, 2, 2}, targets, 2)
		assert.Equal(t, []int32{0, 1, 7, 8, 8, 9}, data)
	})
}

func TestScratchPools(t *testing.T) {
	sp := &scratchPools{}
	buf := getScratch[float64](sp, 8)
	assert.Len(t, buf, 8)
	putScratch(sp, buf)

	// A recycled buffer is only reused when large enough
	small := getScratch[float64](sp, 4)
	assert.Len(t, small, 4)
	big := getScratch[float64](sp, 64)
	assert.Len(t, big, 64)

	// Pools are separate per type
	ints := getScratch[int64](sp, 3)
	assert.Len(t, ints, 3)
	putScratch(sp, ints)
	putScratch(sp, []float32(nil))
}

func TestReduceIdentity(t *testing.T) {
	assert.Equal(t, math.Inf(1), identity[float64](Min))
	assert.Equal(t, float32(math.Inf(-1)), identity[float32](Max))
	assert.Equal(t, int32(math.MaxInt32), identity[int32](Min))
	assert.Equal(t, int64(math.MinInt64), identity[int64](Max))
	assert.Zero(t, identity[float64](Inc))

	dst := []float64{1, 5}
	combine(dst, []float64{3, 2}, Min)
	assert.Equal(t, []float64{1, 2}, dst)
	combine(dst, []float64{3, 2}, Max)
	assert.Equal(t, []float64{3, 2}, dst)
	combine(dst, []float64{0.5, 0.25}, Inc)
	assert.Equal(t, []float64{3.5, 2.25}, dst)
}
