// Package spectralgate exposes a spectralgate.Gate with a learned noise
// profile as a streaming noisesuppression.NoiseSuppression.
package spectralgate

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audio/pcm"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppression"
	"github.com/xaionaro-go/spectralgate/pkg/spectralgate"
)

// SpectralGate processes mono PCM of the given format one hop at a
// time. The output lags behind the input by Latency samples.
type SpectralGate struct {
	locker   sync.Mutex
	gate     *spectralgate.Gate
	streamer *spectralgate.Streamer
	encoding audio.EncodingPCM
	input    []float64
	output   []float64
	closed   bool
}

var _ noisesuppression.NoiseSuppression = (*SpectralGate)(nil)

// New takes ownership of the gate: closing SpectralGate closes the gate.
func New(
	ctx context.Context,
	gate *spectralgate.Gate,
	format audio.PCMFormat,
) (_ret *SpectralGate, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	if format.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", format)
	}
	if !gate.HasNoiseProfile() {
		logger.Warnf(ctx, "the gate has no noise profile yet")
	}
	streamer, err := gate.NewStreamer()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a streamer: %w", err)
	}
	hop := streamer.BlockSize()
	return &SpectralGate{
		gate:     gate,
		streamer: streamer,
		encoding: audio.EncodingPCM{
			PCMFormat:  format,
			SampleRate: gate.Config().SampleRate,
		},
		input:  make([]float64, hop),
		output: make([]float64, hop),
	}, nil
}

func (s *SpectralGate) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return spectralgate.ErrClosed
	}
	s.closed = true
	return s.gate.Close()
}

func (s *SpectralGate) Encoding(context.Context) (audio.Encoding, error) {
	return s.encoding, nil
}

func (s *SpectralGate) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

func (s *SpectralGate) ChunkSize() uint {
	return uint(len(s.input)) * s.encoding.BytesPerSample()
}

// Latency is the amount of samples the output lags behind the input.
func (s *SpectralGate) Latency() int {
	return s.streamer.Latency()
}

// SuppressNoise returns the share of the chunk's spectral energy that
// rose above the noise floor as the confidence.
func (s *SpectralGate) SuppressNoise(
	ctx context.Context,
	input []byte,
	output []byte,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise")
	defer func() { logger.Tracef(ctx, "/SuppressNoise: %v %v", _ret, _err) }()

	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return 0, spectralgate.ErrClosed
	}

	chunkSize := int(s.ChunkSize())
	if len(input) != chunkSize {
		return 0, fmt.Errorf("expected an input chunk of %d bytes, got %d", chunkSize, len(input))
	}
	if len(output) < chunkSize {
		return 0, fmt.Errorf("the output buffer is too short: %d < %d", len(output), chunkSize)
	}

	format := s.encoding.PCMFormat
	if _, err := pcm.Decode(format, s.input, input); err != nil {
		return 0, fmt.Errorf("unable to decode the input: %w", err)
	}
	stats, err := s.streamer.Process(ctx, s.input, s.output)
	if err != nil {
		return 0, fmt.Errorf("unable to process: %w", err)
	}
	if err := pcm.Encode(format, output[:chunkSize], s.output); err != nil {
		return 0, fmt.Errorf("unable to encode the output: %w", err)
	}
	return stats.MaxRetention, nil
}

// Flush returns the Latency samples still held back and resets the
// processing, so that the next chunk starts a new stream.
func (s *SpectralGate) Flush(ctx context.Context) ([]byte, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return nil, spectralgate.ErrClosed
	}
	tail := s.streamer.Flush(ctx)
	result := make([]byte, len(tail)*int(s.encoding.BytesPerSample()))
	if err := pcm.Encode(s.encoding.PCMFormat, result, tail); err != nil {
		return nil, fmt.Errorf("unable to encode the tail: %w", err)
	}
	return result, nil
}
