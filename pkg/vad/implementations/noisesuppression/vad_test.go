package noisesuppression

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audio/pcm"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppression"
	sgsuppression "github.com/xaionaro-go/spectralgate/pkg/noisesuppression/implementations/spectralgate"
	"github.com/xaionaro-go/spectralgate/pkg/spectralgate"
)

const sampleRate = 16000

func newGateVAD(t *testing.T, rng *rand.Rand) *VAD {
	ctx := context.Background()
	cfg := spectralgate.VoiceConfig(sampleRate)
	cfg.FrameSize = 512
	cfg.HopSize = 128
	g, err := spectralgate.New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, g.LearnNoiseProfile(ctx, noise(rng, sampleRate)))

	ns, err := sgsuppression.New(ctx, g, audio.PCMFormatFloat32LE)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Close() })

	v, err := NewVAD(ctx, ns, 32*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint64(512*4), v.ChunkSize)
	require.Equal(t, 32*time.Millisecond, v.ChunkDuration)
	return v
}

func noise(rng *rand.Rand, length int) []float64 {
	result := make([]float64, length)
	for i := range result {
		result[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return result
}

func encode(t *testing.T, samples []float64) []byte {
	result := make([]byte, len(samples)*4)
	require.NoError(t, pcm.Encode(audio.PCMFormatFloat32LE, result, samples))
	return result
}

func TestVADFindsTone(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	v := newGateVAD(t, rng)

	samples := noise(rng, 2*sampleRate)
	for i := sampleRate; i < len(samples); i++ {
		samples[i] += 0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}

	maxConfidence, pos, err := v.FindNextVoice(ctx, encode(t, samples), 0.9, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Greater(t, maxConfidence, 0.9)
	assert.InDelta(t, float64(time.Second), float64(pos), float64(40*time.Millisecond))
}

func TestVADNoiseOnly(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	v := newGateVAD(t, rng)

	maxConfidence, pos, err := v.FindNextVoice(ctx, encode(t, noise(rng, sampleRate)), 0.9, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, maxConfidence, 0.9)
	assert.Equal(t, time.Duration(-1), pos)

	_, pos, err = v.FindNextVoice(ctx, nil, 0.9, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), pos)
}

func TestVADDummy(t *testing.T) {
	ctx := context.Background()
	ns := noisesuppression.NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 8000}, 1, 160)
	v, err := NewVAD(ctx, ns, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint64(800), v.ChunkSize)
	require.Equal(t, 50*time.Millisecond, v.ChunkDuration)

	_, pos, err := v.FindNextVoice(ctx, make([]byte, 8000), 0.5, 120*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), pos)

	_, err = NewVAD(ctx, noisesuppression.NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE}, 1, 160), time.Second)
	require.Error(t, err)
}
