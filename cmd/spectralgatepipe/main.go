package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/audio/pcm"
	"github.com/xaionaro-go/spectralgate/pkg/audiofile"
	sgsuppression "github.com/xaionaro-go/spectralgate/pkg/noisesuppression/implementations/spectralgate"
	"github.com/xaionaro-go/spectralgate/pkg/noiseprofile"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppressionstream"
	"github.com/xaionaro-go/spectralgate/pkg/spectralgate"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	gateFlags := spectralgate.RegisterFlags(pflag.CommandLine)

	inputFormat := audio.PCMFormatFloat32LE
	pflag.Var(&inputFormat, "format", "the sample format of the standard input")
	outputFormat := audio.PCMFormatUndefined
	pflag.Var(&outputFormat, "output-format", "the sample format of the standard output (default: the same as --format)")
	sampleRate := pflag.Uint32("sample-rate", 44100, "the sample rate of the standard input")
	channels := pflag.Uint32("channels", 1, "the amount of interleaved channels of the standard input (the output is always mono)")
	learnDuration := pflag.Duration("learn", time.Second, "learn the noise profile from the given leading part of the input (0 means using --noise-profile)")
	noiseProfilePath := pflag.String("noise-profile", "", "the noise profile file (default: ~/Voice/.noise_profile.dat)")
	saveNoiseProfile := pflag.Bool("save-noise-profile", false, "save the learned noise into the --noise-profile file")
	compensateLatency := pflag.Bool("compensate-latency", true, "drop the leading silence caused by the processing latency")
	bufferDuration := pflag.Duration("buffer", 500*time.Millisecond, "the size of the input and output buffers")
	pflag.Parse()

	if outputFormat == audio.PCMFormatUndefined {
		outputFormat = inputFormat
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

	cfg, err := gateFlags.Config(audio.SampleRate(*sampleRate))
	assertNoError(err)
	logger.Debugf(ctx, "config:\n%s", cfg.Bytes())

	if *noiseProfilePath == "" {
		*noiseProfilePath, err = noiseprofile.DefaultPath()
		assertNoError(err)
	}

	input, err := pcm.NewConverter(
		pcm.Format{
			Channels:   audio.Channel(*channels),
			SampleRate: cfg.SampleRate,
			PCMFormat:  inputFormat,
		},
		os.Stdin,
		pcm.Format{
			Channels:   1,
			SampleRate: cfg.SampleRate,
			PCMFormat:  outputFormat,
		},
	)
	assertNoError(err)

	gate, err := spectralgate.New(ctx, cfg)
	assertNoError(err)

	encoding := audio.EncodingPCM{PCMFormat: outputFormat, SampleRate: cfg.SampleRate}
	noise, err := obtainNoise(ctx, input, encoding, *learnDuration, *noiseProfilePath)
	assertNoError(err)
	if noise != nil {
		assertNoError(gate.LearnNoiseProfile(ctx, noise))
		if *saveNoiseProfile {
			noiseBuf := &audiofile.Buffer{SampleRate: cfg.SampleRate, Samples: noise}
			assertNoError(noiseprofile.Save(*noiseProfilePath, noiseBuf.Float32()))
			logger.Infof(ctx, "saved the noise profile to '%s'", *noiseProfilePath)
		}
	}

	ns, err := sgsuppression.New(ctx, gate, outputFormat)
	assertNoError(err)
	logger.Infof(ctx, "latency: %v", encoding.DurationForSamples(ns.Latency()))

	bufSize := max(uint(encoding.BytesForDuration(*bufferDuration)), ns.ChunkSize())
	stream, err := noisesuppressionstream.NewNoiseSuppressionStream(ctx, input, ns, bufSize, bufSize)
	assertNoError(err)
	defer func() {
		assertNoError(stream.Close())
	}()

	if *compensateLatency {
		_, err := io.CopyN(io.Discard, stream, int64(ns.Latency())*int64(encoding.BytesPerSample()))
		if err != nil && !errors.Is(err, io.EOF) {
			assertNoError(fmt.Errorf("unable to skip the latency: %w", err))
		}
	}

	wc := datacounter.NewWriterCounter(os.Stdout)
	observability.Go(ctx, func(ctx context.Context) {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d", wc.Count())
			}
		}
	})

	_, err = io.Copy(wc, stream)
	assertNoError(err)
	logger.Infof(ctx, "done, written %d bytes", wc.Count())
}

func obtainNoise(
	ctx context.Context,
	input io.Reader,
	encoding audio.EncodingPCM,
	learnDuration time.Duration,
	noiseProfilePath string,
) ([]float64, error) {
	if learnDuration > 0 {
		buf := make([]byte, encoding.BytesForDuration(learnDuration))
		if _, err := io.ReadFull(input, buf); err != nil {
			return nil, fmt.Errorf("unable to read %v of noise from the input: %w", learnDuration, err)
		}
		noise, err := pcm.Decode(encoding.PCMFormat, nil, buf)
		if err != nil {
			return nil, fmt.Errorf("unable to decode the noise: %w", err)
		}
		logger.Infof(ctx, "learning the noise profile from the first %v of the input", learnDuration)
		return noise, nil
	}

	samples, err := noiseprofile.Load(noiseProfilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warnf(ctx, "'%s' does not exist: the signal is going to be passed through", noiseProfilePath)
			return nil, nil
		}
		return nil, fmt.Errorf("unable to load the noise profile: %w", err)
	}
	logger.Infof(ctx, "learning the noise profile from '%s' (%d samples)", noiseProfilePath, len(samples))
	return audiofile.NewBufferFromFloat32(encoding.SampleRate, samples).Samples, nil
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
