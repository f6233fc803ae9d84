// Package spectralgate implements spectral gating noise reduction:
// a per-frequency noise floor is learned from a noise-only recording,
// and then every short-time spectrum bin of a signal that does not
// rise above that floor is attenuated.
package spectralgate

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	_ "github.com/xaionaro-go/spectralgate/pkg/transform/implementations/fourier"
	_ "github.com/xaionaro-go/spectralgate/pkg/transform/implementations/godsp"
	_ "github.com/xaionaro-go/spectralgate/pkg/transform/implementations/gonum"
)

// Gate is a spectral gate with its learned noise threshold.
//
// A Gate is not safe for concurrent use: LearnNoiseProfile must return
// before ProcessSignal (or a Streamer of the Gate) observes the profile.
type Gate struct {
	config    Config
	window    []float64
	divisor   float64
	threshold []float64
	learned   bool
	frame     *frame
	closed    bool
}

func New(
	ctx context.Context,
	cfg Config,
) (_ret *Gate, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = cfg.FrameSize
	}

	window := hannWindow(cfg.WindowSize)
	f, err := newFrame(cfg, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	g := &Gate{
		config:    cfg,
		window:    window,
		divisor:   normalizationDivisor(cfg, window),
		threshold: make([]float64, cfg.Bins()),
		frame:     f,
	}
	logger.Debugf(ctx, "frame size: %d, hop size: %d, window size: %d, bins: %d, normalization divisor: %f",
		cfg.FrameSize, cfg.HopSize, cfg.WindowSize, cfg.Bins(), g.divisor)
	return g, nil
}

func NewDefault(
	ctx context.Context,
	sampleRate audio.SampleRate,
) (*Gate, error) {
	return New(ctx, DefaultConfig(sampleRate))
}

func (g *Gate) Config() Config {
	return g.config
}

func (g *Gate) Close() error {
	if g.closed {
		return ErrClosed
	}
	g.closed = true
	g.frame = nil
	g.window = nil
	g.threshold = nil
	return nil
}

// HasNoiseProfile reports whether LearnNoiseProfile has succeeded at
// least once.
func (g *Gate) HasNoiseProfile() bool {
	return g.learned
}

// NoiseThreshold returns a copy of the per-bin noise threshold.
func (g *Gate) NoiseThreshold() []float64 {
	return append([]float64(nil), g.threshold...)
}

// LearnNoiseProfile replaces the noise threshold by the one derived
// from the given noise-only samples. On error the previous threshold
// is kept.
func (g *Gate) LearnNoiseProfile(
	ctx context.Context,
	noise []float64,
) (_err error) {
	logger.Tracef(ctx, "LearnNoiseProfile: %d samples", len(noise))
	defer func() { logger.Tracef(ctx, "/LearnNoiseProfile: %d samples: %v", len(noise), _err) }()

	if g.closed {
		return ErrClosed
	}
	cfg := g.config
	numFrames := cfg.NumFrames(len(noise))
	if numFrames == 0 {
		return fmt.Errorf("%w: got %d noise samples, need at least %d", ErrInsufficientData, len(noise), cfg.FrameSize)
	}

	sum := make([]float64, cfg.Bins())
	sumSq := make([]float64, cfg.Bins())
	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		if err := g.frame.analyze(noise[frameIdx*cfg.HopSize:]); err != nil {
			return fmt.Errorf("unable to transform noise frame #%d: %w", frameIdx, err)
		}
		for idx, c := range g.frame.bins {
			mag := cmplx.Abs(c)
			sum[idx] += mag
			sumSq[idx] += mag * mag
		}
	}

	n := float64(numFrames)
	for idx := range g.threshold {
		mean := sum[idx] / n
		variance := max(sumSq[idx]/n-mean*mean, 0)
		g.threshold[idx] = mean + cfg.StdThreshold*math.Sqrt(variance)
	}
	g.learned = true
	logger.Debugf(ctx, "learned the noise profile from %d frames", numFrames)
	return nil
}

// LearnNoiseProfileFloat32 is LearnNoiseProfile for float32 samples.
func (g *Gate) LearnNoiseProfileFloat32(
	ctx context.Context,
	noise []float32,
) error {
	return g.LearnNoiseProfile(ctx, float32sToFloat64s(noise))
}

// ProcessSignal writes the gated version of input into output, which
// must have the same length. Samples past the last whole frame are
// left zero.
func (g *Gate) ProcessSignal(
	ctx context.Context,
	input []float64,
	output []float64,
) (_ret Stats, _err error) {
	logger.Tracef(ctx, "ProcessSignal: %d samples", len(input))
	defer func() { logger.Tracef(ctx, "/ProcessSignal: %d samples: %v %v", len(input), _ret, _err) }()

	if g.closed {
		return Stats{}, ErrClosed
	}
	if len(output) != len(input) {
		return Stats{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(output), len(input))
	}
	cfg := g.config
	numFrames := cfg.NumFrames(len(input))
	if numFrames == 0 {
		return Stats{}, fmt.Errorf("%w: got %d samples, need at least %d", ErrInsufficientData, len(input), cfg.FrameSize)
	}
	if !g.learned {
		logger.Warnf(ctx, "processing a signal without a learned noise profile: every bin is going to be classified as signal")
	}

	clear(output)
	params := g.gateParams()
	var stats Stats
	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		start := frameIdx * cfg.HopSize
		frameStats, err := g.frame.process(input[start:], params)
		if err != nil {
			return stats, fmt.Errorf("unable to process frame #%d: %w", frameIdx, err)
		}
		stats.Add(frameStats)
		g.frame.accumulate(output[start:])
	}
	for idx := range output {
		output[idx] /= g.divisor
	}
	stats.Covered = cfg.FrameSize + (numFrames-1)*cfg.HopSize
	return stats, nil
}

// ProcessSignalFloat32 is ProcessSignal for float32 samples.
func (g *Gate) ProcessSignalFloat32(
	ctx context.Context,
	input []float32,
	output []float32,
) (Stats, error) {
	if len(output) != len(input) {
		return Stats{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(output), len(input))
	}
	output64 := make([]float64, len(output))
	stats, err := g.ProcessSignal(ctx, float32sToFloat64s(input), output64)
	if err != nil {
		return stats, err
	}
	for idx, v := range output64 {
		output[idx] = float32(v)
	}
	return stats, nil
}

func (g *Gate) gateParams() gateParams {
	return gateParams{
		threshold:    g.threshold,
		propDecrease: g.config.PropDecrease,
		hardClip:     g.config.HardClip,
	}
}

func float32sToFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for idx, v := range in {
		out[idx] = float64(v)
	}
	return out
}
