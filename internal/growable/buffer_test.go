package growable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferGrowsPastInitialCapacity(t *testing.T) {
	b := New[int32](2, 1.5, 0)
	for i := int32(0); i < 100; i++ {
		require.NoError(t, b.Append(i))
	}
	assert.EqualValues(t, 100, b.Len())
	assert.GreaterOrEqual(t, b.Cap(), int64(100))
	snap := b.Snapshot()
	require.Len(t, snap, 100)
	assert.EqualValues(t, 0, snap[0])
	assert.EqualValues(t, 99, snap[99])
}

func TestBufferAppendN(t *testing.T) {
	b := New[uint8](0, 0, 0)
	require.NoError(t, b.AppendN([]uint8{1, 2, 3}))
	assert.Equal(t, []uint8{1, 2, 3}, b.Snapshot())
}

func TestBufferRewind(t *testing.T) {
	b := New[int64](0, 0, 0)
	require.NoError(t, b.AppendN([]int64{1, 2, 3, 4}))
	require.NoError(t, b.Rewind(2))
	assert.Equal(t, []int64{1, 2}, b.Snapshot())
	assert.Error(t, b.Rewind(10))
}

func TestBufferLimit(t *testing.T) {
	b := New[int8](0, 0, 4)
	require.NoError(t, b.AppendN([]int8{1, 2, 3, 4}))
	err := b.Append(5)
	assert.Error(t, err)
	var limitErr *LimitError
	assert.ErrorAs(t, err, &limitErr)
}
