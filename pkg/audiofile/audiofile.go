// Package audiofile loads and saves mono sample buffers. Multi-channel
// inputs are downmixed by averaging the channels.
package audiofile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

// Buffer is a mono signal with float samples in the [-1, 1] range.
type Buffer struct {
	SampleRate audio.SampleRate
	Samples    []float64
}

func (b *Buffer) Duration() time.Duration {
	return audio.EncodingPCM{SampleRate: b.SampleRate}.DurationForSamples(len(b.Samples))
}

// TrimTail drops the given duration from the end of the buffer.
func (b *Buffer) TrimTail(d time.Duration) {
	n := audio.EncodingPCM{SampleRate: b.SampleRate}.SamplesForDuration(d)
	b.Samples = b.Samples[:len(b.Samples)-min(n, len(b.Samples))]
}

func (b *Buffer) Float32() []float32 {
	result := make([]float32, len(b.Samples))
	for idx, v := range b.Samples {
		result[idx] = float32(v)
	}
	return result
}

func NewBufferFromFloat32(sampleRate audio.SampleRate, samples []float32) *Buffer {
	b := &Buffer{
		SampleRate: sampleRate,
		Samples:    make([]float64, len(samples)),
	}
	for idx, v := range samples {
		b.Samples[idx] = float64(v)
	}
	return b
}

type Container int

const (
	ContainerRaw = Container(iota)
	ContainerWAV
	ContainerOgg
)

func (c Container) String() string {
	switch c {
	case ContainerRaw:
		return "raw"
	case ContainerWAV:
		return "wav"
	case ContainerOgg:
		return "ogg"
	default:
		return fmt.Sprintf("unknown_container_%d", int(c))
	}
}

// ContainerByPath guesses the container by the file extension.
func ContainerByPath(path string) Container {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return ContainerWAV
	case ".ogg", ".oga":
		return ContainerOgg
	default:
		return ContainerRaw
	}
}

// RawFormat describes files without a header.
type RawFormat struct {
	PCMFormat  audio.PCMFormat
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

func DefaultRawFormat() RawFormat {
	return RawFormat{
		PCMFormat:  audio.PCMFormatFloat32LE,
		Channels:   1,
		SampleRate: 44100,
	}
}

// Load reads the file in the container matching its extension;
// raw is only used for files that are neither WAV nor Ogg.
func Load(path string, raw RawFormat) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	var b *Buffer
	switch c := ContainerByPath(path); c {
	case ContainerWAV:
		b, err = DecodeWAV(f)
	case ContainerOgg:
		b, err = DecodeOgg(f)
	default:
		b, err = DecodeRaw(f, raw)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	return b, nil
}

// Save writes a WAV file (16 bit PCM) if the extension says so, and
// raw samples in the given format otherwise.
func Save(path string, b *Buffer, raw audio.PCMFormat) (_err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()

	switch c := ContainerByPath(path); c {
	case ContainerWAV:
		err = EncodeWAV(f, b, 16)
	case ContainerRaw:
		err = EncodeRaw(f, b, raw)
	default:
		err = fmt.Errorf("saving in container '%s' is not supported", c)
	}
	if err != nil {
		return fmt.Errorf("unable to encode '%s': %w", path, err)
	}
	return nil
}
