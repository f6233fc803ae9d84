package spectralgate

import (
	"math"
)

// hannWindow returns the symmetric Hann window of the given size:
// zero at both ends, 1.0 in the middle.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func normalizationDivisor(cfg Config, window []float64) float64 {
	switch cfg.Normalization {
	case NormalizationOverlapFactor:
		return float64(cfg.FrameSize) / float64(cfg.HopSize) / 2
	default:
		var energy float64
		for _, v := range window {
			energy += v * v
		}
		return energy / float64(cfg.HopSize)
	}
}
