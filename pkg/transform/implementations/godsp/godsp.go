// Package godsp implements transform.Transform on top of
// github.com/mjibson/go-dsp.
package godsp

import (
	"github.com/mjibson/go-dsp/fft"

	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

func init() {
	transform.Register(transform.KindGoDSP, func(size int) (transform.Transform, error) {
		return New(size), nil
	})
}

type Transform struct {
	size int
	full []complex128
}

var _ transform.Transform = (*Transform)(nil)

func New(size int) *Transform {
	return &Transform{
		size: size,
		full: make([]complex128, size),
	}
}

func (t *Transform) Size() int {
	return t.size
}

func (t *Transform) Forward(dst []complex128, seq []float64) error {
	if err := transform.CheckSizes(t.size, len(seq), len(dst)); err != nil {
		return err
	}
	copy(dst, fft.FFTReal(seq))
	return nil
}

func (t *Transform) Inverse(dst []float64, coeff []complex128) error {
	if err := transform.CheckSizes(t.size, len(dst), len(coeff)); err != nil {
		return err
	}
	transform.HermitianFull(t.full, coeff)
	// go-dsp normalizes the inverse by 1/N
	scale := float64(t.size)
	for i, c := range fft.IFFT(t.full) {
		dst[i] = real(c) * scale
	}
	return nil
}
