// Package fourier implements transform.Transform on top of
// github.com/brettbuddin/fourier. Only power-of-two sizes of at least
// MinSize are supported.
package fourier

import (
	"fmt"

	"github.com/brettbuddin/fourier"

	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

func init() {
	transform.Register(transform.KindFourier, func(size int) (transform.Transform, error) {
		return New(size)
	})
}

// MinSize is the smallest supported size: the library leaves
// 2-point sequences untransformed.
const MinSize = 4

type Transform struct {
	size    int
	scratch []complex128
}

var _ transform.Transform = (*Transform)(nil)

func New(size int) (*Transform, error) {
	if size < MinSize || size&(size-1) != 0 {
		return nil, fmt.Errorf("the size must be a power of two of at least %d, got %d", MinSize, size)
	}
	return &Transform{
		size:    size,
		scratch: make([]complex128, size),
	}, nil
}

func (t *Transform) Size() int {
	return t.size
}

func (t *Transform) Forward(dst []complex128, seq []float64) error {
	if err := transform.CheckSizes(t.size, len(seq), len(dst)); err != nil {
		return err
	}
	for i, v := range seq {
		t.scratch[i] = complex(v, 0)
	}
	if err := fourier.Forward(t.scratch); err != nil {
		return fmt.Errorf("forward FFT failed: %w", err)
	}
	copy(dst, t.scratch)
	return nil
}

// Inverse uses the identity IDFT(X) = conj(DFT(conj(X))), and since
// the result is real the outer conjugation is dropped.
func (t *Transform) Inverse(dst []float64, coeff []complex128) error {
	if err := transform.CheckSizes(t.size, len(dst), len(coeff)); err != nil {
		return err
	}
	transform.HermitianFull(t.scratch, coeff)
	t.scratch[0] = complex(real(t.scratch[0]), 0)
	t.scratch[t.size/2] = complex(real(t.scratch[t.size/2]), 0)
	for i, c := range t.scratch {
		t.scratch[i] = complex(real(c), -imag(c))
	}
	if err := fourier.Forward(t.scratch); err != nil {
		return fmt.Errorf("inverse FFT failed: %w", err)
	}
	for i := range dst {
		dst[i] = real(t.scratch[i])
	}
	return nil
}
