package engine

import (
	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	"github.com/Arnold-Curtis/AudioGlass/internal/normalizer"
)

// toNormalizerFormat translates a host-negotiated sample format into
// the normalizer package's own enum, keeping hostaudio and normalizer
// as independent leaf packages with no mutual dependency.
func toNormalizerFormat(f hostaudio.SampleFormat) normalizer.Format {
	switch f {
	case hostaudio.FormatU8:
		return normalizer.FormatU8
	case hostaudio.FormatS16:
		return normalizer.FormatS16
	case hostaudio.FormatS24:
		return normalizer.FormatS24
	case hostaudio.FormatS32:
		return normalizer.FormatS32
	default:
		return normalizer.FormatF32
	}
}
