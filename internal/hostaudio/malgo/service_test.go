package malgo

import (
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"

	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
)

func TestFormatConversionRoundTrip(t *testing.T) {
	formats := []hostaudio.SampleFormat{
		hostaudio.FormatU8,
		hostaudio.FormatS16,
		hostaudio.FormatS24,
		hostaudio.FormatS32,
		hostaudio.FormatF32,
	}
	for _, f := range formats {
		assert.Equal(t, f, fromMalgoFormat(toMalgoFormat(f)))
	}
}

func TestMalgoDirectionMapping(t *testing.T) {
	assert.Equal(t, malgo.Capture, malgoDirection(hostaudio.DirectionCapture))
	assert.Equal(t, malgo.Playback, malgoDirection(hostaudio.DirectionPlayback))
}

func TestHexToASCIIRoundTrip(t *testing.T) {
	decoded, err := hexToASCII("68656c6c6f")
	assert.NoError(t, err)
	assert.Equal(t, "hello", decoded)
}

func TestHexToASCIIRejectsInvalidHex(t *testing.T) {
	_, err := hexToASCII("not-hex")
	assert.Error(t, err)
}
