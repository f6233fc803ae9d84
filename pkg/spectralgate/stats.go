package spectralgate

import (
	"fmt"
)

// Stats describes what a processing call did.
type Stats struct {
	// Frames is the amount of frames transformed.
	Frames int

	// SignalBins is the amount of bins classified as signal.
	SignalBins int

	// TotalBins is Frames times the amount of bins per frame.
	TotalBins int

	// Covered is the amount of output samples that received
	// a contribution of at least one frame.
	Covered int

	// MaxRetention is the largest per-frame share of spectral energy
	// kept as signal, in [0, 1]. Silent frames count as 0.
	MaxRetention float64
}

// SignalRatio is the share of bins classified as signal.
func (s Stats) SignalRatio() float64 {
	if s.TotalBins == 0 {
		return 0
	}
	return float64(s.SignalBins) / float64(s.TotalBins)
}

// Add accumulates the stats of another call, as if both calls were one.
func (s *Stats) Add(other Stats) {
	s.Frames += other.Frames
	s.SignalBins += other.SignalBins
	s.TotalBins += other.TotalBins
	s.Covered += other.Covered
	s.MaxRetention = max(s.MaxRetention, other.MaxRetention)
}

func (s Stats) String() string {
	return fmt.Sprintf("frames:%d signal-bins:%d/%d covered:%d max-retention:%.3f",
		s.Frames, s.SignalBins, s.TotalBins, s.Covered, s.MaxRetention)
}
