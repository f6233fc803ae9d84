package spectralgate

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

const (
	PresetDefault = "default"
	PresetVoice   = "voice"
)

// Flags are the command line options shared by the tools building a Gate.
// Options explicitly given on the command line override the config file,
// which overrides the preset.
type Flags struct {
	flagSet *pflag.FlagSet

	ConfigPath    string
	Preset        string
	FrameSize     int
	HopSize       int
	WindowSize    int
	StdThreshold  float64
	PropDecrease  float64
	HardClip      bool
	Transform     transform.Kind
	Normalization Normalization
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{
		flagSet:       fs,
		Transform:     transform.DefaultKind,
		Normalization: NormalizationWindowEnergy,
	}
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML file with the gate configuration")
	fs.StringVar(&f.Preset, "preset", PresetDefault, fmt.Sprintf("the base configuration: '%s' or '%s'", PresetDefault, PresetVoice))
	fs.IntVar(&f.FrameSize, "frame-size", DefaultFrameSize, "the amount of samples transformed at once")
	fs.IntVar(&f.HopSize, "hop-size", DefaultHopSize, "the stride between consecutive frames")
	fs.IntVar(&f.WindowSize, "window-size", 0, "the length of the Hann window (0 means --frame-size)")
	fs.Float64Var(&f.StdThreshold, "std-threshold", DefaultStdThreshold, "how many standard deviations above the mean noise magnitude a bin must be to be kept")
	fs.Float64Var(&f.PropDecrease, "prop-decrease", DefaultPropDecrease, "the gain applied to noise bins")
	fs.BoolVar(&f.HardClip, "hard-clip", false, "remove noise bins completely")
	fs.Var(&f.Transform, "transform", fmt.Sprintf("the Fourier transform implementation: %v", transform.Kinds()))
	fs.Var(&f.Normalization, "normalization", fmt.Sprintf("the output normalization: '%s' or '%s'", NormalizationWindowEnergy, NormalizationOverlapFactor))
	return f
}

// Config builds and validates the resulting configuration.
func (f *Flags) Config(sampleRate audio.SampleRate) (Config, error) {
	var cfg Config
	switch f.Preset {
	case PresetDefault, "":
		cfg = DefaultConfig(sampleRate)
	case PresetVoice:
		cfg = VoiceConfig(sampleRate)
	default:
		return Config{}, fmt.Errorf("unknown preset '%s'", f.Preset)
	}

	if f.ConfigPath != "" {
		var err error
		cfg, err = LoadConfig(f.ConfigPath, cfg)
		if err != nil {
			return Config{}, err
		}
		if cfg.SampleRate != 0 && sampleRate != 0 && cfg.SampleRate != sampleRate {
			return Config{}, fmt.Errorf("the config is for sample rate %d, but the audio is %d", cfg.SampleRate, sampleRate)
		}
	}
	if sampleRate != 0 {
		cfg.SampleRate = sampleRate
	}

	changed := f.flagSet.Changed
	if changed("frame-size") {
		cfg.FrameSize = f.FrameSize
	}
	if changed("hop-size") {
		cfg.HopSize = f.HopSize
	}
	if changed("window-size") {
		cfg.WindowSize = f.WindowSize
	}
	if changed("std-threshold") {
		cfg.StdThreshold = f.StdThreshold
	}
	if changed("prop-decrease") {
		cfg.PropDecrease = f.PropDecrease
	}
	if changed("hard-clip") {
		cfg.HardClip = f.HardClip
	}
	if changed("transform") {
		cfg.Transform = f.Transform
	}
	if changed("normalization") {
		cfg.Normalization = f.Normalization
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
