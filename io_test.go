package forthvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteInputReadAdvancesPosition(t *testing.T) {
	in := NewByteInput([]byte{1, 2, 3, 4})
	got, err := in.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Equal(t, int64(2), in.Pos())
	assert.False(t, in.End())

	got, err = in.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, got)
	assert.True(t, in.End())
}

func TestByteInputReadBeyondEnd(t *testing.T) {
	in := NewByteInput([]byte{1, 2})
	_, err := in.Read(3)
	assert.Equal(t, ErrReadBeyond, err)
}

func TestByteInputSeekAndSkip(t *testing.T) {
	in := NewByteInput([]byte{1, 2, 3, 4, 5})
	require.NoError(t, in.Seek(3))
	assert.Equal(t, int64(3), in.Pos())
	assert.Equal(t, ErrSeekBeyond, in.Seek(6))

	require.NoError(t, in.Skip(2))
	assert.True(t, in.End())
	assert.Equal(t, ErrSkipBeyond, in.Skip(1))
}
