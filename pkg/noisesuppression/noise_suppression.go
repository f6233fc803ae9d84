package noisesuppression

import (
	"context"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

// NoiseSuppression cleans PCM in chunks of exactly ChunkSize bytes.
type NoiseSuppression interface {
	audio.AbstractAnalyzer

	// ChunkSize is the amount of bytes SuppressNoise consumes and
	// produces per call.
	ChunkSize() uint

	// SuppressNoise writes the cleaned version of input into output and
	// returns the confidence (in [0, 1]) that the chunk contains
	// anything but noise.
	SuppressNoise(ctx context.Context, input []byte, output []byte) (float64, error)
}
