package spectralgate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spectralgate/pkg/transform"
)

func TestFlags(t *testing.T) {
	parse := func(t *testing.T, args ...string) *Flags {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		f := RegisterFlags(fs)
		require.NoError(t, fs.Parse(args))
		return f
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := parse(t).Config(44100)
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(44100), cfg)
	})

	t.Run("voice_preset", func(t *testing.T) {
		cfg, err := parse(t, "--preset", PresetVoice).Config(48000)
		require.NoError(t, err)
		require.Equal(t, VoiceConfig(48000), cfg)
	})

	t.Run("unknown_preset", func(t *testing.T) {
		_, err := parse(t, "--preset", "music").Config(48000)
		require.Error(t, err)
	})

	t.Run("flags_override_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("frame_size: 2048\nhop_size: 512\nhard_clip: true\n"), 0o644))

		cfg, err := parse(t,
			"--config", path,
			"--hop-size", "1024",
			"--transform", "godsp",
			"--normalization", "overlap-factor",
		).Config(44100)
		require.NoError(t, err)
		require.Equal(t, 2048, cfg.FrameSize)
		require.Equal(t, 1024, cfg.HopSize)
		require.True(t, cfg.HardClip)
		require.Equal(t, transform.KindGoDSP, cfg.Transform)
		require.Equal(t, NormalizationOverlapFactor, cfg.Normalization)
		require.Equal(t, DefaultStdThreshold, cfg.StdThreshold)
	})

	t.Run("sample_rate_mismatch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sample_rate: 16000\n"), 0o644))
		_, err := parse(t, "--config", path).Config(44100)
		require.Error(t, err)
	})

	t.Run("invalid_result", func(t *testing.T) {
		_, err := parse(t, "--hop-size", "4096").Config(44100)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}
