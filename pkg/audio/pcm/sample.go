package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

// Sample decodes a single sample of format f from the beginning of p
// into the [-1, 1] range.
func Sample(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case audio.PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / 8388608
	case audio.PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / 8388608
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case audio.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	val := int32(v)
	if val&0x800000 != 0 {
		val |= -16777216
	}
	return val
}

// PutSample encodes v into the beginning of p. Integer formats
// are saturated instead of wrapping around.
func PutSample(f audio.PCMFormat, p []byte, v float64) {
	switch f {
	case audio.PCMFormatU8:
		p[0] = byte(clampInt(math.Round(v*128+128), 0, 255))
	case audio.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS24LE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case audio.PCMFormatS24BE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case audio.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(clampInt64(v)))
	case audio.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(clampInt64(v)))
	case audio.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case audio.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func clampInt(v, lo, hi float64) int64 {
	return int64(math.Max(lo, math.Min(hi, v)))
}

func clampInt64(v float64) int64 {
	switch {
	case v >= 1:
		return math.MaxInt64
	case v <= -1:
		return math.MinInt64
	}
	return int64(v * 9223372036854775808)
}

// Decode converts a whole buffer of mono samples. The result is
// appended to dst[:0], so dst may be reused between calls.
func Decode(f audio.PCMFormat, dst []float64, src []byte) ([]float64, error) {
	sampleSize := int(f.Size())
	if sampleSize == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", f)
	}
	if len(src)%sampleSize != 0 {
		return nil, fmt.Errorf("the length of the input (%d) is not a multiple of the sample size (%d)", len(src), sampleSize)
	}
	dst = dst[:0]
	for len(src) > 0 {
		dst = append(dst, Sample(f, src))
		src = src[sampleSize:]
	}
	return dst, nil
}

// Encode converts a whole buffer of mono samples into dst, which
// must be exactly len(src)*f.Size() bytes long.
func Encode(f audio.PCMFormat, dst []byte, src []float64) error {
	sampleSize := int(f.Size())
	if sampleSize == 0 {
		return fmt.Errorf("unsupported PCM format: %v", f)
	}
	if len(dst) != len(src)*sampleSize {
		return fmt.Errorf("the output length is %d, but %d samples of %v need %d", len(dst), len(src), f, len(src)*sampleSize)
	}
	for idx, v := range src {
		PutSample(f, dst[idx*sampleSize:], v)
	}
	return nil
}
