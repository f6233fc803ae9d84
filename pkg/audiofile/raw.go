package audiofile

import (
	"fmt"
	"io"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audio/pcm"
)

// DecodeRaw reads headerless interleaved PCM until EOF.
func DecodeRaw(r io.Reader, format RawFormat) (*Buffer, error) {
	converter, err := pcm.NewConverter(
		pcm.Format{
			Channels:   format.Channels,
			SampleRate: format.SampleRate,
			PCMFormat:  format.PCMFormat,
		},
		r,
		pcm.Format{
			Channels:   1,
			SampleRate: format.SampleRate,
			PCMFormat:  audio.PCMFormatFloat64LE,
		},
	)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(converter)
	if err != nil {
		return nil, fmt.Errorf("unable to read: %w", err)
	}
	samples, err := pcm.Decode(audio.PCMFormatFloat64LE, nil, data)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		SampleRate: format.SampleRate,
		Samples:    samples,
	}, nil
}

// EncodeRaw writes headerless mono PCM.
func EncodeRaw(w io.Writer, b *Buffer, format audio.PCMFormat) error {
	data := make([]byte, len(b.Samples)*int(format.Size()))
	if err := pcm.Encode(format, data, b.Samples); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("unable to write %d bytes: %w", len(data), err)
	}
	return nil
}
