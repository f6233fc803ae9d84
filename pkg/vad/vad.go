package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

// VAD finds where a signal (as opposed to background noise) starts.
type VAD interface {
	audio.AbstractAnalyzer

	// FindNextVoice returns the maximal confidence met in samples and
	// the offset of the first stretch of at least minDuration where the
	// confidence stays at or above confidenceThreshold, or -1 if there
	// is none.
	FindNextVoice(
		_ context.Context,
		samples []byte,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)
}
