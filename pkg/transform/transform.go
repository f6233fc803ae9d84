// Package transform defines the real-input discrete Fourier transform
// used by the spectral gate and a registry of its implementations.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Transform is a planned real DFT of a fixed size.
//
// Forward writes Size()/2+1 coefficients of seq into dst.
// Inverse reconstructs Size() real samples from the Size()/2+1
// Hermitian-half coefficients. The inverse is not normalized:
// Inverse(Forward(x)) == x * Size().
//
// Implementations are not safe for concurrent use.
type Transform interface {
	Size() int
	Forward(dst []complex128, seq []float64) error
	Inverse(dst []float64, coeff []complex128) error
}

type Kind string

const (
	KindUndefined = Kind("")
	KindGonum     = Kind("gonum")
	KindFourier   = Kind("fourier")
	KindGoDSP     = Kind("godsp")
)

// DefaultKind is the implementation used when none is requested.
const DefaultKind = KindGonum

func (k Kind) String() string {
	if k == KindUndefined {
		return string(DefaultKind)
	}
	return string(k)
}

// Set implements pflag.Value.
func (k *Kind) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Kind(s) {
	case KindGonum, KindFourier, KindGoDSP:
		*k = Kind(s)
		return nil
	}
	return fmt.Errorf("unknown transform kind '%s', known kinds: %s", s, strings.Join(kindsStrings(), ", "))
}

// Type implements pflag.Value.
func (*Kind) Type() string {
	return "transform"
}

type Factory func(size int) (Transform, error)

var (
	registryLocker sync.Mutex
	registry       = map[Kind]Factory{}
)

// Register makes an implementation available via New. It panics
// if the kind is already registered.
func Register(kind Kind, factory Factory) {
	registryLocker.Lock()
	defer registryLocker.Unlock()
	if _, ok := registry[kind]; ok {
		panic(fmt.Sprintf("transform kind '%s' is already registered", kind))
	}
	registry[kind] = factory
}

// New plans a transform of the given size.
func New(kind Kind, size int) (Transform, error) {
	if kind == KindUndefined {
		kind = DefaultKind
	}
	if size < 2 {
		return nil, fmt.Errorf("the transform size must be at least 2, got %d", size)
	}
	registryLocker.Lock()
	factory, ok := registry[kind]
	registryLocker.Unlock()
	if !ok {
		return nil, fmt.Errorf("transform kind '%s' is not registered (registered: %v)", kind, Kinds())
	}
	t, err := factory(size)
	if err != nil {
		return nil, fmt.Errorf("unable to plan a '%s' transform of size %d: %w", kind, size, err)
	}
	return t, nil
}

// Kinds returns the registered kinds, sorted.
func Kinds() []Kind {
	registryLocker.Lock()
	defer registryLocker.Unlock()
	result := make([]Kind, 0, len(registry))
	for kind := range registry {
		result = append(result, kind)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func kindsStrings() []string {
	var result []string
	for _, kind := range Kinds() {
		result = append(result, string(kind))
	}
	return result
}

// CheckSizes validates the buffers passed to Forward and Inverse.
func CheckSizes(size, samples, coeffs int) error {
	if samples != size {
		return fmt.Errorf("expected %d real samples, got %d", size, samples)
	}
	if coeffs != size/2+1 {
		return fmt.Errorf("expected %d coefficients, got %d", size/2+1, coeffs)
	}
	return nil
}

// HermitianFull expands the Size()/2+1 coefficients into the full
// conjugate-symmetric spectrum of a real sequence.
func HermitianFull(dst []complex128, half []complex128) {
	n := len(dst)
	copy(dst, half)
	for k := len(half); k < n; k++ {
		c := half[n-k]
		dst[k] = complex(real(c), -imag(c))
	}
}
