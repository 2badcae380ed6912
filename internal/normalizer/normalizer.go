// Package normalizer implements the Sample Normalizer: stateless
// conversion between device-native PCM formats and the engine's
// internal float32 representation, plus integer-ratio decimation.
//
// Grounded on the conversion arithmetic in the teacher's
// sources/malgo/converter.go (ConvertToS16), generalized from a
// fixed S16 target to the float32 internal format this engine uses
// throughout the ring buffer and drift compensator.
package normalizer

import (
	"encoding/binary"
	"math"

	"github.com/Arnold-Curtis/AudioGlass/internal/errs"
)

// Format identifies a device-native sample format.
type Format int

const (
	FormatU8 Format = iota
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

// BytesPerSample returns the on-wire size of one sample in this format.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatS16:
		return "S16"
	case FormatS24:
		return "S24"
	case FormatS32:
		return "S32"
	case FormatF32:
		return "F32"
	default:
		return "unknown"
	}
}

// ToFloat32 converts a device-native interleaved byte buffer in the
// given format to interleaved internal float32 samples, appending to
// dst (which may be nil) and returning the result. It never allocates
// beyond what dst's growth requires, so callers on the hot path should
// pass a buffer with sufficient capacity to avoid any allocation.
func ToFloat32(src []byte, format Format, dst []float32) ([]float32, error) {
	bps := format.BytesPerSample()
	if bps == 0 {
		return dst, errs.New(nil).
			Component("normalizer").
			ForKind(errs.KindInvalidArgument).
			Context("format", int(format)).
			Build()
	}

	n := len(src) / bps
	for i := 0; i < n; i++ {
		off := i * bps
		dst = append(dst, sampleToFloat32(src[off:off+bps], format))
	}
	return dst, nil
}

func sampleToFloat32(b []byte, format Format) float32 {
	switch format {
	case FormatU8:
		return (float32(b[0]) - 128) / 128
	case FormatS16:
		v := int16(binary.LittleEndian.Uint16(b))
		return float32(v) / 32768
	case FormatS24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -0x1000000 // sign-extend from the top byte
		}
		return float32(v) / float32(1<<23)
	case FormatS32:
		v := int32(binary.LittleEndian.Uint32(b))
		return float32(v) / float32(1<<31)
	case FormatF32:
		bits := binary.LittleEndian.Uint32(b)
		return math.Float32frombits(bits)
	default:
		return 0
	}
}

// FromFloat32 converts internal float32 samples to a device-native
// interleaved byte buffer in the given format, writing into dst (which
// must have capacity for len(src)*format.BytesPerSample() bytes) and
// returning the written slice. Per the normalizer's contract, writeback
// rounds toward zero and truncates without saturating beyond the
// numeric range; the signal chain is unit-gain so this only matters for
// unusually hot sources.
func FromFloat32(src []float32, format Format, dst []byte) ([]byte, error) {
	bps := format.BytesPerSample()
	if bps == 0 {
		return nil, errs.New(nil).
			Component("normalizer").
			ForKind(errs.KindInvalidArgument).
			Context("format", int(format)).
			Build()
	}

	need := len(src) * bps
	if cap(dst) < need {
		dst = make([]byte, need)
	} else {
		dst = dst[:need]
	}

	for i, sample := range src {
		off := i * bps
		floatToSample(sample, format, dst[off:off+bps])
	}
	return dst, nil
}

func floatToSample(sample float32, format Format, out []byte) {
	switch format {
	case FormatU8:
		v := int32(sample*127) + 128
		out[0] = byte(v)
	case FormatS16:
		v := int16(sample * 32767)
		binary.LittleEndian.PutUint16(out, uint16(v))
	case FormatS24:
		v := int32(sample * float32((1<<23)-1))
		out[0] = byte(v)
		out[1] = byte(v >> 8)
		out[2] = byte(v >> 16)
	case FormatS32:
		v := int32(float64(sample) * float64((int64(1)<<31)-1))
		binary.LittleEndian.PutUint32(out, uint32(v))
	case FormatF32:
		binary.LittleEndian.PutUint32(out, math.Float32bits(sample))
	}
}

// DecimationRatio returns the integer decimation ratio to bring
// nativeRate down to internalRate, and whether that ratio is exact
// (required: non-integer mismatches are refused at engine start, not
// silently approximated).
func DecimationRatio(nativeRate, internalRate int) (ratio int, exact bool) {
	if nativeRate <= 0 || internalRate <= 0 || nativeRate < internalRate {
		return 1, nativeRate == internalRate
	}
	if nativeRate%internalRate != 0 {
		return 0, false
	}
	return nativeRate / internalRate, true
}

// Decimate downsamples src (interleaved float32, channels wide) by the
// integer factor k using an arithmetic mean over each k-frame window,
// appending complete output frames to dst. Frames left over at the end
// that don't fill a complete window are dropped; callers that need them
// carried to the next callback should retain the tail themselves.
func Decimate(src []float32, channels, k int, dst []float32) []float32 {
	if k <= 1 {
		return append(dst, src...)
	}
	frames := len(src) / channels
	windows := frames / k
	acc := make([]float32, channels)
	for w := 0; w < windows; w++ {
		for c := 0; c < channels; c++ {
			acc[c] = 0
		}
		base := w * k * channels
		for f := 0; f < k; f++ {
			for c := 0; c < channels; c++ {
				acc[c] += src[base+f*channels+c]
			}
		}
		for c := 0; c < channels; c++ {
			dst = append(dst, acc[c]/float32(k))
		}
	}
	return dst
}
