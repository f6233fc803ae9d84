// Package gonum implements transform.Transform on top of
// gonum's real FFT.
package gonum

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

func init() {
	transform.Register(transform.KindGonum, func(size int) (transform.Transform, error) {
		return New(size), nil
	})
}

type Transform struct {
	fft *fourier.FFT
}

var _ transform.Transform = (*Transform)(nil)

func New(size int) *Transform {
	return &Transform{fft: fourier.NewFFT(size)}
}

func (t *Transform) Size() int {
	return t.fft.Len()
}

func (t *Transform) Forward(dst []complex128, seq []float64) error {
	if err := transform.CheckSizes(t.Size(), len(seq), len(dst)); err != nil {
		return err
	}
	t.fft.Coefficients(dst, seq)
	return nil
}

func (t *Transform) Inverse(dst []float64, coeff []complex128) error {
	if err := transform.CheckSizes(t.Size(), len(dst), len(coeff)); err != nil {
		return err
	}
	t.fft.Sequence(dst, coeff)
	return nil
}
