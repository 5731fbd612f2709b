package forthvm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputAppendBytesInt32(t *testing.T) {
	out := newOutput(DtypeInt32, 4, 1.5)
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:4], 10)
	binary.LittleEndian.PutUint32(raw[4:8], 20)
	require.NoError(t, out.appendBytes(raw, 2, binary.LittleEndian))
	assert.EqualValues(t, 2, out.Len())
	assert.Equal(t, []int32{10, 20}, Snapshot(out).([]int32))
}

func TestOutputAppendFromStack(t *testing.T) {
	out := newOutput(DtypeFloat64, 4, 1.5)
	require.NoError(t, out.appendFromStack(3))
	assert.EqualValues(t, 1, out.Len())
	assert.Equal(t, []float64{3}, Snapshot(out).([]float64))
}

func TestOutputRewind(t *testing.T) {
	out := newOutput(DtypeUint8, 4, 1.5)
	require.NoError(t, out.appendFromStack(1))
	require.NoError(t, out.appendFromStack(2))
	require.NoError(t, out.Rewind(1))
	assert.EqualValues(t, 1, out.Len())
}

func TestDtypeStringRoundTrips(t *testing.T) {
	for name, dt := range outputDtypeWords {
		assert.Equal(t, name, dt.String())
	}
}
