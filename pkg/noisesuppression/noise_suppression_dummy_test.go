package noisesuppression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

func TestDummy(t *testing.T) {
	ctx := context.Background()
	d := NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 8000}, 1, 4)
	require.Equal(t, uint(4), d.ChunkSize())

	out := make([]byte, 4)
	confidence, err := d.SuppressNoise(ctx, []byte{1, 2, 3, 4}, out)
	require.NoError(t, err)
	require.Equal(t, 1.0, confidence)
	require.Equal(t, []byte{1, 2, 3, 4}, out)

	_, err = d.SuppressNoise(ctx, []byte{1, 2, 3, 4}, out[:2])
	require.Error(t, err)
	require.NoError(t, d.Close())
}
