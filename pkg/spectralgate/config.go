package spectralgate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

const (
	DefaultFrameSize    = 1024
	DefaultHopSize      = 256
	DefaultStdThreshold = 1.5
	DefaultPropDecrease = 1.0

	minFourierFrameSize = 4
)

// Normalization selects the divisor applied to the overlap-added output.
type Normalization string

const (
	NormalizationUndefined = Normalization("")

	// NormalizationWindowEnergy divides by sum(window^2)/HopSize, which is
	// the steady-state gain of overlap-adding frames windowed twice.
	NormalizationWindowEnergy = Normalization("window-energy")

	// NormalizationOverlapFactor divides by (FrameSize/HopSize)/2, the
	// reference behaviour of the classic spectral gate: use it to get
	// output matching that implementation. With a Hann window and
	// HopSize = FrameSize/4 the output is about 0.75 of the input level.
	NormalizationOverlapFactor = Normalization("overlap-factor")
)

func (n Normalization) String() string {
	if n == NormalizationUndefined {
		return string(NormalizationWindowEnergy)
	}
	return string(n)
}

// Set implements pflag.Value.
func (n *Normalization) Set(s string) error {
	switch v := Normalization(strings.ToLower(strings.TrimSpace(s))); v {
	case NormalizationWindowEnergy, NormalizationOverlapFactor:
		*n = v
		return nil
	}
	return fmt.Errorf("unknown normalization '%s', expected '%s' or '%s'", s, NormalizationWindowEnergy, NormalizationOverlapFactor)
}

// Type implements pflag.Value.
func (*Normalization) Type() string {
	return "normalization"
}

// Config is the configuration of a Gate. It is copied by New and never
// changes afterwards.
type Config struct {
	// FrameSize is the amount of samples transformed at once.
	FrameSize int `yaml:"frame_size"`

	// HopSize is the stride between consecutive frames.
	HopSize int `yaml:"hop_size"`

	// WindowSize is the length of the Hann window. Zero means FrameSize.
	WindowSize int `yaml:"window_size,omitempty"`

	// StdThreshold is the amount of standard deviations above the mean
	// noise magnitude a bin must exceed to be kept as signal.
	StdThreshold float64 `yaml:"std_threshold"`

	// PropDecrease is the gain applied to noise bins.
	PropDecrease float64 `yaml:"prop_decrease"`

	// HardClip forces the gain of noise bins to zero.
	HardClip bool `yaml:"hard_clip"`

	SampleRate    audio.SampleRate `yaml:"sample_rate,omitempty"`
	Transform     transform.Kind   `yaml:"transform,omitempty"`
	Normalization Normalization    `yaml:"normalization,omitempty"`
}

func DefaultConfig(sampleRate audio.SampleRate) Config {
	return Config{
		FrameSize:     DefaultFrameSize,
		HopSize:       DefaultHopSize,
		StdThreshold:  DefaultStdThreshold,
		PropDecrease:  DefaultPropDecrease,
		SampleRate:    sampleRate,
		Transform:     transform.DefaultKind,
		Normalization: NormalizationWindowEnergy,
	}
}

// VoiceConfig is the preset used for voice recordings: only bins well
// above the noise floor survive, everything else is removed.
func VoiceConfig(sampleRate audio.SampleRate) Config {
	cfg := DefaultConfig(sampleRate)
	cfg.StdThreshold = 2.5
	cfg.PropDecrease = 0
	cfg.HardClip = true
	return cfg
}

// EffectiveWindowSize returns WindowSize with the zero value resolved.
func (cfg Config) EffectiveWindowSize() int {
	if cfg.WindowSize == 0 {
		return cfg.FrameSize
	}
	return cfg.WindowSize
}

// Bins is the amount of non-negative frequency bins of a frame.
func (cfg Config) Bins() int {
	return cfg.FrameSize/2 + 1
}

// NumFrames returns how many whole frames fit into a buffer of the given
// length, or 0 if not even one does.
func (cfg Config) NumFrames(length int) int {
	if cfg.FrameSize <= 0 || cfg.HopSize <= 0 || length < cfg.FrameSize {
		return 0
	}
	return 1 + (length-cfg.FrameSize)/cfg.HopSize
}

// Validate returns an error wrapping ErrInvalidConfig and listing every
// violated constraint.
func (cfg Config) Validate() error {
	var result *multierror.Error
	if cfg.FrameSize < 2 {
		result = multierror.Append(result, fmt.Errorf("frame size must be at least 2, got %d", cfg.FrameSize))
	}
	if cfg.HopSize <= 0 || cfg.HopSize > cfg.FrameSize {
		result = multierror.Append(result, fmt.Errorf("hop size must be in (0, %d], got %d", cfg.FrameSize, cfg.HopSize))
	}
	if w := cfg.EffectiveWindowSize(); w < 2 || w > cfg.FrameSize {
		result = multierror.Append(result, fmt.Errorf("window size must be in [2, %d], got %d", cfg.FrameSize, w))
	}
	if math.IsNaN(cfg.StdThreshold) || math.IsInf(cfg.StdThreshold, 0) || cfg.StdThreshold < 0 {
		result = multierror.Append(result, fmt.Errorf("std threshold must be a finite non-negative number, got %v", cfg.StdThreshold))
	}
	if math.IsNaN(cfg.PropDecrease) || cfg.PropDecrease < 0 || cfg.PropDecrease > 1 {
		result = multierror.Append(result, fmt.Errorf("prop decrease must be in [0, 1], got %v", cfg.PropDecrease))
	}
	switch cfg.Transform {
	case transform.KindUndefined, transform.KindGonum, transform.KindGoDSP:
	case transform.KindFourier:
		if cfg.FrameSize < minFourierFrameSize || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
			result = multierror.Append(result, fmt.Errorf("transform '%s' requires a power-of-two frame size of at least %d, got %d", cfg.Transform, minFourierFrameSize, cfg.FrameSize))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown transform '%s'", cfg.Transform))
	}
	switch cfg.Normalization {
	case NormalizationUndefined, NormalizationWindowEnergy, NormalizationOverlapFactor:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown normalization '%s'", cfg.Normalization))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseConfig decodes a YAML document on top of base: the fields the
// document does not mention keep their values from base.
func ParseConfig(data []byte, base Config) (Config, error) {
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, fmt.Errorf("unable to parse the config: %w", err)
	}
	return cfg, nil
}

func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	cfg, err := ParseConfig(data, base)
	if err != nil {
		return base, fmt.Errorf("unable to load the config file '%s': %w", path, err)
	}
	return cfg, nil
}

// Bytes serializes the config into YAML.
func (cfg Config) Bytes() []byte {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return b
}
