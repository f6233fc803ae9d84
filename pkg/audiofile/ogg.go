package audiofile

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

func DecodeOgg(r io.Reader) (*Buffer, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	channels := oggReader.Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("invalid amount of channels: %d", channels)
	}

	result := &Buffer{
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
	}
	buf := make([]float32, 4096*channels)
	for {
		n, err := oggReader.Read(buf)
		for idx := 0; idx+channels <= n; idx += channels {
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += float64(buf[idx+ch])
			}
			result.Samples = append(result.Samples, sum/float64(channels))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return result, nil
			}
			return nil, fmt.Errorf("unable to decode: %w", err)
		}
	}
}
