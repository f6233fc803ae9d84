package noisesuppressionstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
	"github.com/xaionaro-go/spectralgate/pkg/noisesuppression"
)

// Flusher is implemented by noise suppressions that hold back some of
// the audio (for example because of frame overlap). Flush returns the
// held back audio at the end of the stream.
type Flusher interface {
	Flush(ctx context.Context) ([]byte, error)
}

// NoiseSuppressionStream is an io.Reader returning the noise-suppressed
// version of the audio read from the input. Reading, suppressing and
// consuming the result run concurrently, decoupled by ring buffers.
//
// If the input ends in the middle of a chunk, the chunk is padded with
// silence for suppression, and only the real part is returned.
type NoiseSuppressionStream struct {
	noisesuppression.NoiseSuppression
	encoding   audio.Encoding
	channels   audio.Channel
	chunkSize  uint
	readCtx    context.Context
	cancelFunc context.CancelFunc

	inputBufferLocker sync.Mutex
	inputBuffer       *circular.Buffer
	inputEOF          bool

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	outputEOF          bool
	resultError        error

	readProgressedCh                   chan struct{}
	noiseSuppressionInputProgressedCh  chan struct{}
	noiseSuppressionOutputProgressedCh chan struct{}
	outputProgressedCh                 chan struct{}
}

var _ io.ReadCloser = (*NoiseSuppressionStream)(nil)

func NewNoiseSuppressionStream(
	ctx context.Context,
	input io.Reader,
	noiseSuppression noisesuppression.NoiseSuppression,
	inputBufferSize uint,
	outputBufferSize uint,
) (*NoiseSuppressionStream, error) {
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding of the noise suppression: %w", err)
	}
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels of the noise suppression: %w", err)
	}
	chunkSize := noiseSuppression.ChunkSize()
	if chunkSize == 0 {
		return nil, fmt.Errorf("the noise suppression has no chunk size")
	}
	sampleSize := encoding.BytesPerSample() * uint(channels)
	if sampleSize == 0 || chunkSize%sampleSize != 0 {
		return nil, fmt.Errorf("the chunk size %d is not a multiple of the sample size %d", chunkSize, sampleSize)
	}
	if inputBufferSize < chunkSize || outputBufferSize < chunkSize {
		return nil, fmt.Errorf("the buffers (%d and %d bytes) must fit at least one chunk (%d bytes)", inputBufferSize, outputBufferSize, chunkSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &NoiseSuppressionStream{
		NoiseSuppression: noiseSuppression,
		encoding:         encoding,
		channels:         channels,
		chunkSize:        chunkSize,
		readCtx:          ctx,
		cancelFunc:       cancelFunc,
		inputBuffer:      circular.NewBuffer(int(inputBufferSize)),
		outputBuffer:     circular.NewBuffer(int(outputBufferSize)),

		readProgressedCh:                   make(chan struct{}),
		noiseSuppressionInputProgressedCh:  make(chan struct{}),
		noiseSuppressionOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:                 make(chan struct{}),
	}
	readBufSize := min(65536, inputBufferSize)
	observability.Go(ctx, func(ctx context.Context) {
		if err := s.readerLoop(ctx, input, readBufSize); err != nil {
			s.setError(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		if err := s.noiseSuppressionLoop(ctx); err != nil {
			s.setError(fmt.Errorf("got an error from the noise suppressor loop: %w", err))
		}
	})
	return s, nil
}

// signal wakes up everybody waiting on *ch; the caller must hold
// the lock guarding ch.
func signal(ch *chan struct{}) {
	oldCh := *ch
	*ch = make(chan struct{})
	close(oldCh)
}

func (s *NoiseSuppressionStream) setError(err error) {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
	s.cancelFunc()
	signal(&s.noiseSuppressionOutputProgressedCh)
}

func (s *NoiseSuppressionStream) readerLoop(
	ctx context.Context,
	input io.Reader,
	readBufSize uint,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop: %v", _err) }()

	readBuf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Tracef(ctx, "readerLoop: Read()")
		n, readErr := input.Read(readBuf)
		logger.Tracef(ctx, "/readerLoop: Read(): %v %v", n, readErr)
		if n < 0 || n > len(readBuf) {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("unable to read the input: %w", readErr)
		}

		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			data := readBuf[:n]
			for len(data) > 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
				w, err := s.inputBuffer.Write(data)
				if w < 0 || w > len(data) {
					return fmt.Errorf("received invalid value of written bytes: %d", w)
				}
				data = data[w:]
				if w > 0 {
					signal(&s.readProgressedCh)
				}
				if err != nil {
					if errors.Is(err, circular.ErrNoSpace) {
						s.waitForNoiseSuppressionInputProgressed(ctx)
						continue
					}
					return fmt.Errorf("unable to write to the circular buffer: %w", err)
				}
			}
			if errors.Is(readErr, io.EOF) {
				s.inputEOF = true
			}
			signal(&s.readProgressedCh)
			return nil
		}(); err != nil {
			return err
		}
		if readErr != nil {
			return nil
		}
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionInputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionInputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionInputProgressed")

	ch := s.noiseSuppressionInputProgressedCh
	s.inputBufferLocker.Unlock()
	defer s.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// receiveChunk fills buf from the input ring buffer. It returns less
// than len(buf) only at the end of the input.
func (s *NoiseSuppressionStream) receiveChunk(ctx context.Context, buf []byte) (int, error) {
	receivedCount := 0
	for {
		var (
			waitCh chan struct{}
			eof    bool
			n      int
		)
		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			var err error
			n, err = s.inputBuffer.Read(buf[receivedCount:])
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("unable to read from the circular buffer: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("received a negative count: %d", n)
			}
			receivedCount += n
			eof = s.inputEOF
			waitCh = s.readProgressedCh
			if n > 0 {
				signal(&s.noiseSuppressionInputProgressedCh)
			}
			return nil
		}(); err != nil {
			return receivedCount, err
		}
		if receivedCount == len(buf) {
			return receivedCount, nil
		}
		if eof {
			if n == 0 {
				return receivedCount, nil
			}
			// the ring buffer may return less than it has at a wrap
			continue
		}
		select {
		case <-ctx.Done():
			return receivedCount, ctx.Err()
		case <-waitCh:
		}
	}
}

func (s *NoiseSuppressionStream) noiseSuppressionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "noiseSuppressionLoop")
	defer func() { logger.Tracef(ctx, "/noiseSuppressionLoop: %v", _err) }()

	sampleSize := int(s.encoding.BytesPerSample() * uint(s.channels))
	logger.Debugf(ctx, "chunkSize: %d", s.chunkSize)

	inputBuf := make([]byte, s.chunkSize)
	outputBuf := make([]byte, s.chunkSize)
	for {
		n, err := s.receiveChunk(ctx, inputBuf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if n%sampleSize != 0 {
			return fmt.Errorf("the input ended in the middle of a sample: %d %% %d != 0", n, sampleSize)
		}
		clear(inputBuf[n:])

		logger.Tracef(ctx, "s.NoiseSuppression.SuppressNoise")
		_, err = s.NoiseSuppression.SuppressNoise(ctx, inputBuf, outputBuf)
		logger.Tracef(ctx, "/s.NoiseSuppression.SuppressNoise: %v", err)
		if err != nil {
			return fmt.Errorf("unable to noise-suppress: %w", err)
		}
		if err := s.writeOutput(ctx, outputBuf[:n]); err != nil {
			return err
		}
		if n < len(inputBuf) {
			break
		}
	}

	if flusher, ok := s.NoiseSuppression.(Flusher); ok {
		tail, err := flusher.Flush(ctx)
		if err != nil {
			return fmt.Errorf("unable to flush the noise suppression: %w", err)
		}
		if err := s.writeOutput(ctx, tail); err != nil {
			return err
		}
	}

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	s.outputEOF = true
	signal(&s.noiseSuppressionOutputProgressedCh)
	return nil
}

func (s *NoiseSuppressionStream) writeOutput(ctx context.Context, data []byte) error {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, err := s.outputBuffer.Write(data)
		if w < 0 || w > len(data) {
			return fmt.Errorf("received invalid value of written bytes: %d", w)
		}
		data = data[w:]
		if w > 0 {
			signal(&s.noiseSuppressionOutputProgressedCh)
		}
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForOutput(ctx)
				continue
			}
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
	}
	return nil
}

func (s *NoiseSuppressionStream) waitForOutput(ctx context.Context) {
	logger.Tracef(ctx, "waitForOutput")
	defer logger.Tracef(ctx, "/waitForOutput")

	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

func (s *NoiseSuppressionStream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		if s.resultError != nil {
			return 0, s.resultError
		}
		n, err := s.outputBuffer.Read(p)
		if n > 0 {
			signal(&s.outputProgressedCh)
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if s.outputEOF {
			return 0, io.EOF
		}
		if err := s.readCtx.Err(); err != nil {
			return 0, err
		}
		s.waitForNoiseSuppressionOutputProgressed(s.readCtx)
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionOutputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionOutputProgressed")

	ch := s.noiseSuppressionOutputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// Close stops the processing and closes the noise suppression. A Read
// of the input that is already in progress is not interrupted.
func (s *NoiseSuppressionStream) Close() error {
	s.cancelFunc()
	return s.NoiseSuppression.Close()
}
