// Package noiseprofile stores the raw noise samples a noise profile is
// learned from, so that later runs can skip recording the noise again.
//
// The file is a native-endian uint64 amount of samples followed by that
// many native-endian float32 samples.
package noiseprofile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// MaxSamples limits how much a corrupted header can make Read allocate.
	MaxSamples = 1 << 30

	defaultDir  = "Voice"
	defaultName = ".noise_profile.dat"
)

var ErrTruncated = errors.New("the noise profile is truncated")

// DefaultPath is the location used when no path is given: a hidden file
// in the "Voice" directory of the user's home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get the home directory: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultName), nil
}

func Write(w io.Writer, samples []float32) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.NativeEndian, uint64(len(samples))); err != nil {
		return fmt.Errorf("unable to write the header: %w", err)
	}
	if err := binary.Write(bw, binary.NativeEndian, samples); err != nil {
		return fmt.Errorf("unable to write %d samples: %w", len(samples), err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("unable to flush: %w", err)
	}
	return nil
}

func Read(r io.Reader) ([]float32, error) {
	br := bufio.NewReader(r)
	var count uint64
	if err := binary.Read(br, binary.NativeEndian, &count); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: no header", ErrTruncated)
		}
		return nil, fmt.Errorf("unable to read the header: %w", err)
	}
	if count > MaxSamples {
		return nil, fmt.Errorf("the noise profile claims %d samples, which is more than the limit %d", count, MaxSamples)
	}
	samples := make([]float32, count)
	if err := binary.Read(br, binary.NativeEndian, samples); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: expected %d samples", ErrTruncated, count)
		}
		return nil, fmt.Errorf("unable to read %d samples: %w", count, err)
	}
	return samples, nil
}

// Save writes the samples into the file, creating its directory if needed.
func Save(path string, samples []float32) (_err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create the directory for '%s': %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()
	if err := Write(f, samples); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

func Load(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()
	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	return samples, nil
}
