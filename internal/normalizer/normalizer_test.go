package normalizer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS16RoundTrip(t *testing.T) {
	src := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	raw := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}

	floats, err := ToFloat32(raw, FormatS16, nil)
	require.NoError(t, err)
	require.Len(t, floats, len(src))

	back, err := FromFloat32(floats, FormatS16, nil)
	require.NoError(t, err)

	for i, v := range src {
		got := int16(binary.LittleEndian.Uint16(back[i*2:]))
		diff := int(v) - int(got)
		assert.LessOrEqual(t, abs(diff), 1, "sample %d: want ~%d got %d", i, v, got)
	}
}

func TestU8Conversion(t *testing.T) {
	floats, err := ToFloat32([]byte{128, 0, 255}, FormatU8, nil)
	require.NoError(t, err)
	require.Len(t, floats, 3)
	assert.InDelta(t, 0.0, floats[0], 1e-6)
	assert.InDelta(t, -1.0, floats[1], 1e-6)
	assert.InDelta(t, float64(127)/128, floats[2], 1e-6)
}

func TestF32Identity(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(0.5))
	floats, err := ToFloat32(raw, FormatF32, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), floats[0])
}

func TestS24SignExtension(t *testing.T) {
	// -1 in 24-bit two's complement: 0xFFFFFF little-endian.
	floats, err := ToFloat32([]byte{0xFF, 0xFF, 0xFF}, FormatS24, nil)
	require.NoError(t, err)
	assert.InDelta(t, -1.0/float64(1<<23), floats[0], 1e-9)
}

func TestToFloat32UnsupportedFormatErrors(t *testing.T) {
	_, err := ToFloat32([]byte{0}, Format(99), nil)
	assert.Error(t, err)
}

func TestDecimationRatioRequiresIntegerRatio(t *testing.T) {
	ratio, exact := DecimationRatio(96000, 48000)
	assert.True(t, exact)
	assert.Equal(t, 2, ratio)

	_, exact = DecimationRatio(44100, 48000)
	assert.False(t, exact)

	_, exact = DecimationRatio(96001, 48000)
	assert.False(t, exact)
}

func TestDecimateArithmeticMean(t *testing.T) {
	// mono, factor 2: pairs (0,2) and (4,6) average to 1 and 5.
	src := []float32{0, 2, 4, 6}
	out := Decimate(src, 1, 2, nil)
	require.Len(t, out, 2)
	assert.Equal(t, float32(1), out[0])
	assert.Equal(t, float32(5), out[1])
}

func TestDecimateDropsIncompleteTrailingWindow(t *testing.T) {
	src := []float32{1, 2, 3}
	out := Decimate(src, 1, 2, nil)
	assert.Len(t, out, 1)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
