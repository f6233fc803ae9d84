package spectralgate

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Streamer gates an unbounded signal block by block using the noise
// threshold of its Gate. Every HopSize samples of input produce
// HopSize samples of output, delayed by Latency samples: output sample
// j corresponds to input sample j-Latency. If FrameSize is a multiple
// of HopSize, then from output sample 2*Latency on it is identical to what ProcessSignal produces for the
// concatenated input; before that ProcessSignal has fewer overlapping
// frames to add.
//
// A Streamer has its own scratch space, so several Streamers of one
// Gate may run concurrently, as long as nobody re-learns the profile
// meanwhile. A single Streamer is not safe for concurrent use.
type Streamer struct {
	gate    *Gate
	frame   *frame
	history []float64
	overlap []float64
	warned  bool
}

func (g *Gate) NewStreamer() (*Streamer, error) {
	if g.closed {
		return nil, ErrClosed
	}
	f, err := newFrame(g.config, g.window)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the frame: %w", err)
	}
	return &Streamer{
		gate:    g,
		frame:   f,
		history: make([]float64, g.config.FrameSize),
		overlap: make([]float64, g.config.FrameSize),
	}, nil
}

// Latency is the amount of samples the output lags behind the input.
func (s *Streamer) Latency() int {
	return s.gate.config.FrameSize - s.gate.config.HopSize
}

// BlockSize is the granularity Process accepts buffers in.
func (s *Streamer) BlockSize() int {
	return s.gate.config.HopSize
}

// Reset forgets all the input received so far.
func (s *Streamer) Reset() {
	clear(s.history)
	clear(s.overlap)
}

// Process consumes input and writes the same amount of samples into
// output. The length must be a multiple of BlockSize.
func (s *Streamer) Process(
	ctx context.Context,
	input []float64,
	output []float64,
) (_ret Stats, _err error) {
	logger.Tracef(ctx, "Process: %d samples", len(input))
	defer func() { logger.Tracef(ctx, "/Process: %d samples: %v %v", len(input), _ret, _err) }()

	if s.gate.closed {
		return Stats{}, ErrClosed
	}
	if len(output) != len(input) {
		return Stats{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(output), len(input))
	}
	hop := s.gate.config.HopSize
	if len(input)%hop != 0 {
		return Stats{}, fmt.Errorf("%w: %d %% %d != 0", ErrUnaligned, len(input), hop)
	}
	if !s.gate.learned && !s.warned {
		logger.Warnf(ctx, "streaming without a learned noise profile: every bin is going to be classified as signal")
		s.warned = true
	}

	params := s.gate.gateParams()
	divisor := s.gate.divisor
	tail := len(s.history) - hop
	var stats Stats
	for pos := 0; pos < len(input); pos += hop {
		copy(s.history, s.history[hop:])
		copy(s.history[tail:], input[pos:pos+hop])

		frameStats, err := s.frame.process(s.history, params)
		if err != nil {
			return stats, fmt.Errorf("unable to process the block at %d: %w", pos, err)
		}
		stats.Add(frameStats)
		s.frame.accumulate(s.overlap)

		for idx := 0; idx < hop; idx++ {
			output[pos+idx] = s.overlap[idx] / divisor
		}
		copy(s.overlap, s.overlap[hop:])
		clear(s.overlap[tail:])
	}
	stats.Covered = len(output)
	return stats, nil
}

// Flush returns the Latency samples still pending in the overlap
// accumulator and resets the Streamer.
func (s *Streamer) Flush(ctx context.Context) []float64 {
	logger.Tracef(ctx, "Flush")
	defer logger.Tracef(ctx, "/Flush")

	result := make([]float64, s.Latency())
	for idx := range result {
		result[idx] = s.overlap[idx] / s.gate.divisor
	}
	s.Reset()
	return result
}
