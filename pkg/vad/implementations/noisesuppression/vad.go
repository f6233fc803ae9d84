// Package noisesuppression implements a VAD on top of any noise
// suppression: the confidence reported by the suppression for each
// chunk is the confidence that the chunk carries a signal.
package noisesuppression

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppression"
	"github.com/xaionaro-go/spectralgate/pkg/vad"
)

type VAD struct {
	noisesuppression.NoiseSuppression
	ChunkSize     uint64
	ChunkDuration time.Duration
	Buffer        []byte
}

var _ vad.VAD = (*VAD)(nil)

// NewVAD groups the chunks of the noise suppression into analysis
// chunks of about preferredGranularity.
func NewVAD(
	ctx context.Context,
	noiseSuppression noisesuppression.NoiseSuppression,
	preferredGranularity time.Duration,
) (*VAD, error) {
	chunkSize := uint64(noiseSuppression.ChunkSize())
	if chunkSize == 0 {
		return nil, fmt.Errorf("the noise suppression has no chunk size")
	}
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels: %w", err)
	}
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding: %w", err)
	}
	encodingPCM, ok := encoding.(audio.EncodingPCM)
	if !ok {
		return nil, fmt.Errorf("noise suppression encoding is not PCM: %T", encoding)
	}
	if encodingPCM.SampleRate == 0 {
		return nil, fmt.Errorf("the sample rate is not set")
	}

	preferredChunkSize := encoding.BytesForDuration(preferredGranularity) * uint64(channels)
	subChunks := max((preferredChunkSize+chunkSize/2)/chunkSize, 1)
	chosenChunkSize := subChunks * chunkSize
	chosenChunkSamples := chosenChunkSize / uint64(encoding.BytesPerSample()) / uint64(channels)
	chosenChunkDuration := encodingPCM.DurationForSamples(int(chosenChunkSamples))
	logger.Debugf(ctx, "resulting chunkSize:%d and chunkDuration:%v", chosenChunkSize, chosenChunkDuration)

	return &VAD{
		NoiseSuppression: noiseSuppression,
		ChunkSize:        chosenChunkSize,
		ChunkDuration:    chosenChunkDuration,
		Buffer:           make([]byte, noiseSuppression.ChunkSize()),
	}, nil
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (_maxConfidence float64, _pos time.Duration, _err error) {
	logger.Tracef(ctx, "FindNextVoice: %d bytes", len(samples))
	defer func() { logger.Tracef(ctx, "/FindNextVoice: %d bytes: %v %v %v", len(samples), _maxConfidence, _pos, _err) }()

	var maxConfidence float64
	runStart := time.Duration(-1)
	subChunkSize := len(v.Buffer)
	for pos := 0; len(samples) >= int(v.ChunkSize); pos++ {
		chunk := samples[:v.ChunkSize]
		samples = samples[v.ChunkSize:]

		// a chunk counts as voice if any of its sub-chunks does
		var chunkConfidence float64
		for len(chunk) > 0 {
			confidence, err := v.NoiseSuppression.SuppressNoise(ctx, chunk[:subChunkSize], v.Buffer)
			if err != nil {
				return maxConfidence, -1, fmt.Errorf("unable to analyze the chunk #%d: %w", pos, err)
			}
			chunkConfidence = max(chunkConfidence, confidence)
			chunk = chunk[subChunkSize:]
		}
		maxConfidence = max(maxConfidence, chunkConfidence)

		if chunkConfidence < confidenceThreshold {
			runStart = -1
			continue
		}
		chunkEnd := v.ChunkDuration * time.Duration(pos+1)
		if runStart < 0 {
			runStart = chunkEnd - v.ChunkDuration
		}
		if chunkEnd-runStart >= minDuration {
			return maxConfidence, runStart, nil
		}
	}
	return maxConfidence, -1, nil
}
