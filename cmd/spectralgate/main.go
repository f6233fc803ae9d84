package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audiofile"
	"github.com/xaionaro-go/spectralgate/pkg/noiseprofile"
	"github.com/xaionaro-go/spectralgate/pkg/spectralgate"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	gateFlags := spectralgate.RegisterFlags(pflag.CommandLine)

	rawFormat := audiofile.DefaultRawFormat()
	pflag.Var(&rawFormat.PCMFormat, "format", "the sample format of raw (headerless) input files")
	sampleRate := pflag.Uint32("sample-rate", uint32(rawFormat.SampleRate), "the sample rate of raw input files")
	channels := pflag.Uint32("channels", uint32(rawFormat.Channels), "the amount of interleaved channels of raw input files (they are downmixed to mono)")
	outputFormat := audio.PCMFormatUndefined
	pflag.Var(&outputFormat, "output-format", "the sample format of raw output files (default: the same as --format)")

	noisePath := pflag.String("noise", "", "a file with noise only to learn the noise profile from")
	noiseFromInput := pflag.Duration("noise-from-input", 0, "learn the noise profile from the given leading part of the input")
	noiseProfilePath := pflag.String("noise-profile", "", "a saved noise profile to learn from if no other noise source is given (default: ~/Voice/.noise_profile.dat, if exists)")
	saveNoiseProfile := pflag.Bool("save-noise-profile", false, "save the noise used for learning into the --noise-profile file")
	trimTail := pflag.Duration("trim-tail", 0, "drop the given duration from the end of the input (e.g. the click of the stop key)")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}
	rawFormat.SampleRate = audio.SampleRate(*sampleRate)
	rawFormat.Channels = audio.Channel(*channels)
	if outputFormat == audio.PCMFormatUndefined {
		outputFormat = rawFormat.PCMFormat
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	input, err := audiofile.Load(pflag.Arg(0), rawFormat)
	assertNoError(err)
	input.TrimTail(*trimTail)
	logger.Infof(ctx, "loaded %d samples (%v) at %d Hz", len(input.Samples), input.Duration(), input.SampleRate)

	cfg, err := gateFlags.Config(input.SampleRate)
	assertNoError(err)
	logger.Debugf(ctx, "config:\n%s", cfg.Bytes())

	if *noiseProfilePath == "" {
		*noiseProfilePath, err = noiseprofile.DefaultPath()
		assertNoError(err)
	}
	noise, err := loadNoise(ctx, input, *noisePath, *noiseFromInput, *noiseProfilePath)
	assertNoError(err)
	if noise != nil && *saveNoiseProfile {
		assertNoError(noiseprofile.Save(*noiseProfilePath, noise.Float32()))
		logger.Infof(ctx, "saved the noise profile to '%s'", *noiseProfilePath)
	}

	gate, err := spectralgate.New(ctx, cfg)
	assertNoError(err)
	if noise != nil {
		assertNoError(gate.LearnNoiseProfile(ctx, noise.Samples))
	}

	output := &audiofile.Buffer{
		SampleRate: input.SampleRate,
		Samples:    make([]float64, len(input.Samples)),
	}
	startTS := time.Now()
	stats, err := gate.ProcessSignal(ctx, input.Samples, output.Samples)
	assertNoError(err)
	logger.Infof(ctx, "processed in %v: %s (signal ratio %.3f)", time.Since(startTS), stats, stats.SignalRatio())

	assertNoError(saveOutput(ctx, pflag.Arg(1), output, outputFormat, gate))
}

func loadNoise(
	ctx context.Context,
	input *audiofile.Buffer,
	noisePath string,
	noiseFromInput time.Duration,
	noiseProfilePath string,
) (*audiofile.Buffer, error) {
	switch {
	case noisePath != "":
		noise, err := audiofile.Load(noisePath, audiofile.RawFormat{
			PCMFormat:  audio.PCMFormatFloat32LE,
			Channels:   1,
			SampleRate: input.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to load the noise: %w", err)
		}
		if noise.SampleRate != input.SampleRate {
			return nil, fmt.Errorf("the noise sample rate %d differs from the input sample rate %d", noise.SampleRate, input.SampleRate)
		}
		logger.Infof(ctx, "learning the noise profile from '%s' (%v)", noisePath, noise.Duration())
		return noise, nil
	case noiseFromInput > 0:
		n := audio.EncodingPCM{SampleRate: input.SampleRate}.SamplesForDuration(noiseFromInput)
		if n > len(input.Samples) {
			return nil, fmt.Errorf("the input (%v) is shorter than the requested noise duration %v", input.Duration(), noiseFromInput)
		}
		logger.Infof(ctx, "learning the noise profile from the first %v of the input", noiseFromInput)
		return &audiofile.Buffer{
			SampleRate: input.SampleRate,
			Samples:    input.Samples[:n],
		}, nil
	}

	samples, err := noiseprofile.Load(noiseProfilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warnf(ctx, "no noise source given and '%s' does not exist: the signal is going to be passed through", noiseProfilePath)
			return nil, nil
		}
		return nil, fmt.Errorf("unable to load the noise profile: %w", err)
	}
	logger.Infof(ctx, "learning the noise profile from '%s' (%d samples)", noiseProfilePath, len(samples))
	return audiofile.NewBufferFromFloat32(input.SampleRate, samples), nil
}

func saveOutput(
	ctx context.Context,
	path string,
	output *audiofile.Buffer,
	format audio.PCMFormat,
	gate *spectralgate.Gate,
) (_err error) {
	defer func() {
		var mErr *multierror.Error
		if _err != nil {
			mErr = multierror.Append(mErr, _err)
		}
		if err := gate.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the gate: %w", err))
		}
		_err = mErr.ErrorOrNil()
	}()

	if audiofile.ContainerByPath(path) != audiofile.ContainerRaw {
		return audiofile.Save(path, output, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	wc := datacounter.NewWriterCounter(f)
	err = audiofile.EncodeRaw(wc, output, format)
	logger.Infof(ctx, "written %d bytes of %s to '%s'", wc.Count(), format, path)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("unable to close '%s': %w", path, closeErr)
	}
	return err
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
