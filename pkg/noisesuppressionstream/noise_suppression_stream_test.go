package noisesuppressionstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audio/pcm"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppression"
	sgsuppression "github.com/xaionaro-go/spectralgate/pkg/noisesuppression/implementations/spectralgate"
	"github.com/xaionaro-go/spectralgate/pkg/spectralgate"
)

func TestNoiseSuppressionStreamDummy(t *testing.T) {
	ctx := context.Background()
	encoding := audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 8000}

	for name, input := range map[string][]byte{
		"empty":         {},
		"whole_chunks":  bytes.Repeat([]byte{1, 2, 3, 4}, 1000),
		"partial_chunk": append(bytes.Repeat([]byte{5, 6, 7, 8}, 999), 9, 10),
	} {
		t.Run(name, func(t *testing.T) {
			ns := noisesuppression.NewDummy(encoding, 1, 4)
			s, err := NewNoiseSuppressionStream(ctx, iotest.HalfReader(bytes.NewReader(input)), ns, 16, 8)
			require.NoError(t, err)
			defer s.Close()

			output, err := io.ReadAll(s)
			require.NoError(t, err)
			require.Equal(t, len(input), len(output))
			if len(input) > 0 {
				require.Equal(t, input, output)
			}
		})
	}
}

type slowSuppression struct {
	*noisesuppression.Dummy
	delay time.Duration
}

func (s slowSuppression) SuppressNoise(ctx context.Context, input, output []byte) (float64, error) {
	time.Sleep(s.delay)
	return s.Dummy.SuppressNoise(ctx, input, output)
}

func TestNoiseSuppressionStreamBackpressure(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelFn()
	encoding := audio.EncodingPCM{PCMFormat: audio.PCMFormatU8, SampleRate: 8000}

	input := make([]byte, 400)
	for i := range input {
		input[i] = byte(i)
	}

	for name, bufSizes := range map[string][2]uint{
		"both_small":   {6, 6},
		"input_small":  {6, 64},
		"output_small": {64, 6},
	} {
		t.Run(name, func(t *testing.T) {
			ns := slowSuppression{
				Dummy: noisesuppression.NewDummy(encoding, 1, 4),
				delay: time.Millisecond,
			}
			s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), ns, bufSizes[0], bufSizes[1])
			require.NoError(t, err)
			defer s.Close()

			output, err := io.ReadAll(s)
			require.NoError(t, err)
			require.Equal(t, input, output)
		})
	}
}

func TestNoiseSuppressionStreamErrors(t *testing.T) {
	ctx := context.Background()
	encoding := audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 8000}

	t.Run("no_chunk_size", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(encoding, 1, 0), 16, 16)
		require.Error(t, err)
	})

	t.Run("unaligned_chunk_size", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(encoding, 1, 3), 16, 16)
		require.Error(t, err)
	})

	t.Run("small_buffers", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(encoding, 1, 32), 16, 16)
		require.Error(t, err)
	})

	t.Run("reader_error", func(t *testing.T) {
		someErr := errors.New("some error")
		input := io.MultiReader(bytes.NewReader(make([]byte, 64)), iotest.ErrReader(someErr))
		s, err := NewNoiseSuppressionStream(ctx, input, noisesuppression.NewDummy(encoding, 1, 4), 16, 16)
		require.NoError(t, err)
		defer s.Close()
		_, err = io.ReadAll(s)
		require.ErrorIs(t, err, someErr)
	})

	t.Run("truncated_sample", func(t *testing.T) {
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader([]byte{1, 2, 3}), noisesuppression.NewDummy(encoding, 1, 4), 16, 16)
		require.NoError(t, err)
		defer s.Close()
		_, err = io.ReadAll(s)
		require.Error(t, err)
	})
}

func TestNoiseSuppressionStreamSpectralGate(t *testing.T) {
	ctx := context.Background()
	const sampleRate = 16000

	cfg := spectralgate.DefaultConfig(sampleRate)
	cfg.FrameSize = 512
	cfg.HopSize = 128
	g, err := spectralgate.New(ctx, cfg)
	require.NoError(t, err)
	ns, err := sgsuppression.New(ctx, g, audio.PCMFormatFloat32LE)
	require.NoError(t, err)

	samples := make([]float64, 128*50)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*300*float64(i)/sampleRate)
	}
	input := make([]byte, len(samples)*4)
	require.NoError(t, pcm.Encode(audio.PCMFormatFloat32LE, input, samples))

	s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), ns, 4096, 4096)
	require.NoError(t, err)
	defer s.Close()

	output, err := io.ReadAll(s)
	require.NoError(t, err)
	latency := ns.Latency()
	require.Len(t, output, len(input)+latency*4)

	result, err := pcm.Decode(audio.PCMFormatFloat32LE, nil, output)
	require.NoError(t, err)

	// without a noise profile every bin is kept, so the middle is
	// the input delayed by the latency
	for i := 2 * latency; i < len(samples); i++ {
		require.InDelta(t, samples[i-latency], result[i], 1e-2, "sample %d", i)
	}
}
