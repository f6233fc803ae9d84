package spectralgate

import (
	"math"
	"math/cmplx"
	"math/rand"
)

func sine(freq, amplitude float64, sampleRate int, length int) []float64 {
	result := make([]float64, length)
	for i := range result {
		result[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return result
}

func dither(rng *rand.Rand, amplitude float64, length int) []float64 {
	result := make([]float64, length)
	for i := range result {
		result[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return result
}

func rms(samples []float64) float64 {
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// toneAmplitude estimates the amplitude of the given frequency in samples.
func toneAmplitude(samples []float64, freq float64, sampleRate int) float64 {
	var sum complex128
	for i, v := range samples {
		sum += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return 2 * cmplx.Abs(sum) / float64(len(samples))
}
