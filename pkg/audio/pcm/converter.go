package pcm

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
	PCMFormat  audio.PCMFormat
}

// Converter is an io.Reader that converts interleaved PCM from one
// sample format and channel layout into another. It averages channels
// when downmixing to mono and duplicates the mono channel when upmixing.
//
// Sample rate conversion is not supported: both formats must have the
// same sample rate (or leave it unset).
type Converter struct {
	inReader  io.Reader
	inFormat  Format
	outFormat Format
	locker    sync.Mutex
	buffer    []byte
	pending   []byte
	inNumAvg  uint
	outRepeat uint
}

var _ io.Reader = (*Converter)(nil)

func NewConverter(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Converter, error) {
	c := &Converter{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
		inNumAvg:  1,
		outRepeat: 1,
	}
	if err := c.init(); err != nil {
		return nil, fmt.Errorf("unable to initialize a converter from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return c, nil
}

func (c *Converter) init() error {
	if c.inFormat.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported input PCM format %v", c.inFormat.PCMFormat)
	}
	if c.outFormat.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported output PCM format %v", c.outFormat.PCMFormat)
	}
	if c.inFormat.Channels == 0 || c.outFormat.Channels == 0 {
		return fmt.Errorf("the amount of channels must be positive")
	}
	if c.inFormat.SampleRate != 0 && c.outFormat.SampleRate != 0 && c.inFormat.SampleRate != c.outFormat.SampleRate {
		return fmt.Errorf("sample rate conversion is not supported: %d != %d", c.inFormat.SampleRate, c.outFormat.SampleRate)
	}
	if c.inFormat.Channels != c.outFormat.Channels {
		switch {
		case c.inFormat.Channels == 1:
			c.outRepeat = uint(c.outFormat.Channels)
		case c.outFormat.Channels == 1:
			c.inNumAvg = uint(c.inFormat.Channels)
		default:
			return fmt.Errorf("do not know how to convert %d channels to %d", c.inFormat.Channels, c.outFormat.Channels)
		}
	}
	return nil
}

func (c *Converter) Read(p []byte) (int, error) {
	c.locker.Lock()
	defer c.locker.Unlock()

	inSampleSize := c.inFormat.PCMFormat.Size()
	outSampleSize := c.outFormat.PCMFormat.Size()
	inChunkSize := inSampleSize * c.inNumAvg
	outChunkSize := outSampleSize * c.outRepeat

	maxChunks := uint(len(p)) / outChunkSize
	if maxChunks == 0 {
		return 0, fmt.Errorf("the provided output buffer is too short: %d < %d", len(p), outChunkSize)
	}

	bytesToRead := int(maxChunks * inChunkSize)
	if cap(c.buffer) < bytesToRead {
		c.buffer = make([]byte, bytesToRead)
	}
	c.buffer = c.buffer[:copy(c.buffer[:bytesToRead], c.pending)]
	c.pending = c.pending[:0]

	n, err := c.inReader.Read(c.buffer[len(c.buffer):bytesToRead])
	c.buffer = c.buffer[:len(c.buffer)+n]

	chunks := uint(len(c.buffer)) / inChunkSize
	if rest := c.buffer[chunks*inChunkSize:]; len(rest) > 0 {
		// keep a partial sample until the next Read
		c.pending = append(c.pending, rest...)
		if err == io.EOF {
			return 0, fmt.Errorf("the input ended in the middle of a sample: %d trailing bytes", len(rest))
		}
	}

	for chunkIdx := uint(0); chunkIdx < chunks; chunkIdx++ {
		src := c.buffer[chunkIdx*inChunkSize:]
		var sum float64
		for ch := uint(0); ch < c.inNumAvg; ch++ {
			sum += Sample(c.inFormat.PCMFormat, src[ch*inSampleSize:])
		}
		val := sum / float64(c.inNumAvg)
		for repeatIdx := uint(0); repeatIdx < c.outRepeat; repeatIdx++ {
			PutSample(c.outFormat.PCMFormat, p[chunkIdx*outChunkSize+repeatIdx*outSampleSize:], val)
		}
	}

	written := int(chunks * outChunkSize)
	if written > 0 && err == io.EOF {
		// report EOF on the next call, once the converted data is consumed
		err = nil
	}
	return written, err
}
