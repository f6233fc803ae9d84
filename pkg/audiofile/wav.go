package audiofile

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

const wavFormatPCM = 1

func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("only integer PCM WAV files are supported, got audio format %d", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM buffer: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid amount of channels: %d", channels)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	scale := math.Ldexp(1, bitDepth-1)
	var offset float64
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = scale
	}
	result := &Buffer{
		SampleRate: audio.SampleRate(buf.Format.SampleRate),
		Samples:    make([]float64, len(buf.Data)/channels),
	}
	for idx := range result.Samples {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[idx*channels+ch]) - offset) / scale
		}
		result.Samples[idx] = sum / float64(channels)
	}
	return result, nil
}

// EncodeWAV writes a mono integer PCM WAV file of the given bit depth.
func EncodeWAV(w io.WriteSeeker, b *Buffer, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if b.SampleRate == 0 {
		return fmt.Errorf("the sample rate is not set")
	}

	scale := math.Ldexp(1, bitDepth-1)
	data := make([]int, len(b.Samples))
	for idx, v := range b.Samples {
		data[idx] = int(math.Max(-scale, math.Min(scale-1, math.Round(v*scale))))
	}

	encoder := wav.NewEncoder(w, int(b.SampleRate), bitDepth, 1, wavFormatPCM)
	err := encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(b.SampleRate),
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
