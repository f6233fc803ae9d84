package spectralgate

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

// frame is the scratch space of one frame: the time-domain samples and
// their spectrum, bound to one transform plan.
type frame struct {
	window  []float64
	plan    transform.Transform
	samples []float64
	bins    []complex128
}

func newFrame(cfg Config, window []float64) (*frame, error) {
	plan, err := transform.New(cfg.Transform, cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("unable to plan the transform: %w", err)
	}
	return &frame{
		window:  window,
		plan:    plan,
		samples: make([]float64, cfg.FrameSize),
		bins:    make([]complex128, cfg.Bins()),
	}, nil
}

// analyze windows len(window) samples of src, zero-pads them to the
// frame size and transforms them into f.bins.
func (f *frame) analyze(src []float64) error {
	for i, w := range f.window {
		f.samples[i] = src[i] * w
	}
	clear(f.samples[len(f.window):])
	return f.plan.Forward(f.bins, f.samples)
}

type gateParams struct {
	threshold    []float64
	propDecrease float64
	hardClip     bool
}

func (p gateParams) noiseGain() float64 {
	if p.hardClip {
		return 0
	}
	return p.propDecrease
}

// gate scales the magnitude of every noise bin keeping its phase.
// It returns the amount of bins kept as signal and the share of
// energy retained.
func (f *frame) gate(p gateParams) (int, float64) {
	var (
		signalBins      int
		total, retained float64
	)
	noiseGain := p.noiseGain()
	for idx, c := range f.bins {
		mag := cmplx.Abs(c)
		energy := mag * mag
		total += energy

		if mag > p.threshold[idx] {
			signalBins++
			retained += energy
			continue
		}
		retained += energy * noiseGain * noiseGain
		if noiseGain != 1 {
			f.bins[idx] = cmplx.Rect(mag*noiseGain, cmplx.Phase(c))
		}
	}
	if total == 0 || math.IsNaN(total) {
		return signalBins, 0
	}
	return signalBins, retained / total
}

// synthesize transforms f.bins back and windows the result, scaled
// so that it can be accumulated directly.
func (f *frame) synthesize() error {
	if err := f.plan.Inverse(f.samples, f.bins); err != nil {
		return err
	}
	scale := 1 / float64(len(f.samples))
	for i, w := range f.window {
		f.samples[i] *= w * scale
	}
	for i := len(f.window); i < len(f.samples); i++ {
		f.samples[i] *= scale
	}
	return nil
}

// accumulate adds the synthesized frame into dst, clipping at its end.
func (f *frame) accumulate(dst []float64) {
	n := min(len(dst), len(f.samples))
	for i := 0; i < n; i++ {
		dst[i] += f.samples[i]
	}
}

// process runs one frame of src through analysis, gating and
// synthesis; the result is left in f.samples.
func (f *frame) process(src []float64, p gateParams) (Stats, error) {
	if err := f.analyze(src); err != nil {
		return Stats{}, err
	}
	signalBins, retention := f.gate(p)
	if err := f.synthesize(); err != nil {
		return Stats{}, err
	}
	return Stats{
		Frames:       1,
		SignalBins:   signalBins,
		TotalBins:    len(f.bins),
		MaxRetention: retention,
	}, nil
}
